// SPDX-License-Identifier: MPL-2.0

package xarchive

import (
	"archive/tar"
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

// writeTarGz builds a small tar.gz archive with the given name->content
// entries, all nested under a "demo_module" root directory.
func writeTarGz(t *testing.T, dir string, files map[string]string) string {
	t.Helper()

	archivePath := filepath.Join(dir, "demo_module.tar.gz")
	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	if err := tw.WriteHeader(&tar.Header{
		Name:     "demo_module/",
		Typeflag: tar.TypeDir,
		Mode:     0o755,
	}); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := tw.WriteHeader(&tar.Header{
			Name:     "demo_module/" + name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(content)),
		}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return archivePath
}

func TestUnarchiveTarGz(t *testing.T) {
	archivePath := writeTarGz(t, t.TempDir(), map[string]string{
		"module.cue":     `name: "demo-module"`,
		"assets/data.txt": "hello",
	})

	destDir := t.TempDir()
	var calls int
	var lastDone, lastTotal int64
	err := Unarchive(archivePath, destDir, func(done, total int64) {
		calls++
		lastDone, lastTotal = done, total
	})
	if err != nil {
		t.Fatalf("Unarchive() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(destDir, "demo_module", "assets", "data.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Errorf("extracted content = %q, want %q", got, "hello")
	}
	if calls == 0 {
		t.Error("progress callback never invoked")
	}
	if lastDone != lastTotal {
		t.Errorf("final progress = (%d, %d), want done == total", lastDone, lastTotal)
	}

	root, err := TopLevelEntry(destDir)
	if err != nil {
		t.Fatalf("TopLevelEntry() error = %v", err)
	}
	if root != "demo_module" {
		t.Errorf("TopLevelEntry() = %q, want demo_module", root)
	}
}

func TestUnarchiveZip(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "demo_module.zip")
	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create("demo_module/module.cue")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(`name: "demo-module"`)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	destDir := t.TempDir()
	if err := Unarchive(archivePath, destDir, nil); err != nil {
		t.Fatalf("Unarchive() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(destDir, "demo_module", "module.cue")); err != nil {
		t.Errorf("extracted file missing: %v", err)
	}
}

func TestUnarchiveRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.tar.gz")
	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{
		Name:     "../escape.txt",
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     4,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte("boom")); err != nil {
		t.Fatal(err)
	}
	tw.Close()
	gz.Close()
	f.Close()

	if err := Unarchive(archivePath, t.TempDir(), nil); err == nil {
		t.Fatal("Unarchive() accepted a path-traversal entry, want error")
	}
}

func TestUnarchiveUnsupportedFormat(t *testing.T) {
	err := Unarchive("module.rar", t.TempDir(), nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Unarchive() error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestTopLevelEntryErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := TopLevelEntry(dir); !errors.Is(err, ErrNoSingleRoot) {
		t.Errorf("TopLevelEntry(empty) error = %v, want ErrNoSingleRoot", err)
	}

	for _, name := range []string{"a", "b"} {
		if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := TopLevelEntry(dir); !errors.Is(err, ErrNoSingleRoot) {
		t.Errorf("TopLevelEntry(two entries) error = %v, want ErrNoSingleRoot", err)
	}
}
