// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides the shared schema-validated CUE decode flow used
// by the module manifest and config loaders:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify with the schema definition
//  3. Validate (concrete) and decode to a Go struct
package cueutil

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// MaxFileBytes caps the size of user-provided CUE input. Manifests and
// config files are small; anything larger is rejected before compilation.
const MaxFileBytes = 1 << 20

// Decode unifies data with the definition defPath in schema and decodes the
// result into T. filename is used in error messages only.
func Decode[T any](schema, data []byte, defPath, filename string) (*T, error) {
	if filename == "" {
		filename = "<input>"
	}
	if len(data) > MaxFileBytes {
		return nil, fmt.Errorf("%s: file too large (%d bytes, max %d)", filename, len(data), MaxFileBytes)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(filename))
	if userValue.Err() != nil {
		return nil, FormatError(userValue.Err(), filename)
	}

	schemaRoot := schemaValue.LookupPath(cue.ParsePath(defPath))
	if schemaRoot.Err() != nil {
		return nil, fmt.Errorf("internal error: schema definition %s not found: %w", defPath, schemaRoot.Err())
	}

	unified := schemaRoot.Unify(userValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, FormatError(err, filename)
	}

	var result T
	if err := unified.Decode(&result); err != nil {
		return nil, FormatError(err, filename)
	}

	return &result, nil
}

// FormatError flattens a CUE error list into a single message carrying the
// offending paths, keeping diagnostics on one line per problem.
func FormatError(err error, filename string) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("%s: %w", filename, err)
	}

	var sb strings.Builder
	for i, e := range errs {
		if i > 0 {
			sb.WriteString("; ")
		}
		if path := strings.Join(e.Path(), "."); path != "" {
			sb.WriteString(path)
			sb.WriteString(": ")
		}
		format, args := e.Msg()
		fmt.Fprintf(&sb, format, args...)
	}

	return fmt.Errorf("%s: %s", filename, sb.String())
}
