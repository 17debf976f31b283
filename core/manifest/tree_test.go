package manifest

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pydist/pydist/core/errors"
)

func writeTar(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := tar.NewWriter(&buf)
	for name, content := range members {
		header := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		if err := writer.WriteHeader(header); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if _, err := writer.Write([]byte(content)); err != nil {
			t.Fatalf("write body: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	return buf.Bytes()
}

func TestTreeFromTar(t *testing.T) {
	data := writeTar(t, map[string]string{
		"build/Python/ceval.o":      "o1",
		"build/Modules/zlibmodule.o": "o2",
	})
	tree, err := TreeFromTar(data)
	if err != nil {
		t.Fatalf("from tar: %v", err)
	}
	want := []string{"build/Modules/zlibmodule.o", "build/Python/ceval.o"}
	if !reflect.DeepEqual(tree.Paths(), want) {
		t.Fatalf("paths = %v", tree.Paths())
	}
	if !tree.Has("build/Python/ceval.o") {
		t.Fatal("missing path")
	}
}

func TestTreeFromTarRejectsGarbage(t *testing.T) {
	_, err := TreeFromTar([]byte("this is not a tar stream and is long enough to fail"))
	if err == nil {
		t.Fatal("expected integrity failure")
	}
	if errors.CategoryOf(err) != errors.CategoryArchiveIntegrity {
		t.Fatalf("category = %q", errors.CategoryOf(err))
	}
}

func TestTreeFromDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "build", "Modules")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "zlibmodule.o"), []byte("o"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tree, err := TreeFromDirectory(dir)
	if err != nil {
		t.Fatalf("from directory: %v", err)
	}
	if !tree.Has("build/Modules/zlibmodule.o") {
		t.Fatalf("paths = %v", tree.Paths())
	}
}
