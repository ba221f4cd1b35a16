// SPDX-License-Identifier: MPL-2.0

package hubmod

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// WriteExternalManifest synthesizes the sole file of an external-reference
// module: a module.cue of kind "external" pointing at the given source. The
// manifest is the module's entire content; no code is generated.
func WriteExternalManifest(dir, name, version string, src Source) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "name:    %q\n", name)
	fmt.Fprintf(&sb, "version: %q\n", version)
	sb.WriteString("kind:    \"external\"\n")
	sb.WriteString("source: {\n")
	fmt.Fprintf(&sb, "\tname:  %q\n", src.Name)
	fmt.Fprintf(&sb, "\tclass: %q\n", src.Class)
	fmt.Fprintf(&sb, "\tpath:  %q\n", src.Path)
	sb.WriteString("}\n")

	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write external manifest at %s: %w", path, err)
	}
	return nil
}
