package catalog

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pydist/pydist/core/errors"
)

func TestLoadConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := Load([]byte(sampleCatalog)); err != nil {
				t.Errorf("load: %v", err)
			}
		}()
	}
	wg.Wait()
}

const sampleCatalog = `
_sqlite3:
  sources:
    - _sqlite/connection.c
    - _sqlite/module.c
  includes-deps:
    - sqlite3
  links:
    - sqlite3
  build-mode: shared
_scproxy:
  sources:
    - _scproxy.c
  required-targets:
    - .*-apple-darwin
  frameworks:
    - CoreFoundation
    - SystemConfiguration
_posixsubprocess:
  sources:
    - _posixsubprocess.c
array:
  sources:
    - arraymodule.c
  minimum-python-version: "3.13"
_testcapi:
  sources:
    - _testcapimodule.c
  disabled-targets:
    - x86_64-unknown-linux-musl
_locale:
  config-c-only: true
`

func TestLoadValidCatalog(t *testing.T) {
	loaded, err := Load([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Len() != 6 {
		t.Fatalf("expected 6 entries, got %d", loaded.Len())
	}

	spec, ok := loaded.Get("_sqlite3")
	if !ok {
		t.Fatal("missing _sqlite3")
	}
	if spec.BuildMode != "shared" {
		t.Fatalf("build mode = %q", spec.BuildMode)
	}
	if len(spec.Links) != 1 || spec.Links[0] != "sqlite3" {
		t.Fatalf("links = %v", spec.Links)
	}

	spec, ok = loaded.Get("array")
	if !ok {
		t.Fatal("missing array")
	}
	if spec.BuildMode != "static" {
		t.Fatalf("default build mode = %q, want static", spec.BuildMode)
	}
	if spec.MinimumPythonVersion != "3.13" {
		t.Fatalf("minimum version = %q", spec.MinimumPythonVersion)
	}
}

func TestNamesAreSorted(t *testing.T) {
	loaded, err := Load([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	names := loaded.Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names not sorted: %v", names)
		}
	}
}

func TestLoadRejectsUnknownKey(t *testing.T) {
	_, err := Load([]byte("array:\n  srcs:\n    - arraymodule.c\n"))
	if err == nil {
		t.Fatal("expected unknown key rejection")
	}
	if errors.CategoryOf(err) != errors.CategorySchemaViolation {
		t.Fatalf("category = %q", errors.CategoryOf(err))
	}
}

func TestLoadRejectsBadBuildMode(t *testing.T) {
	_, err := Load([]byte("array:\n  build-mode: dynamic\n"))
	if err == nil {
		t.Fatal("expected build-mode rejection")
	}
}

func TestLoadRejectsBrokenTargetPattern(t *testing.T) {
	_, err := Load([]byte("array:\n  disabled-targets:\n    - \"(unclosed\"\n"))
	if err == nil {
		t.Fatal("expected broken pattern rejection")
	}
	if errors.CategoryOf(err) != errors.CategorySchemaViolation {
		t.Fatalf("category = %q", errors.CategoryOf(err))
	}
}

func TestLoadRejectsConfigCOnlyWithSources(t *testing.T) {
	_, err := Load([]byte("_locale:\n  config-c-only: true\n  sources:\n    - _localemodule.c\n"))
	if err == nil {
		t.Fatal("expected config-c-only with sources rejection")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load([]byte("array: [unterminated"))
	if err == nil {
		t.Fatal("expected parse failure")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extension-modules.yml")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if _, ok := loaded.Get("_scproxy"); !ok {
		t.Fatal("missing _scproxy")
	}

	_, err = LoadFile(filepath.Join(dir, "missing.yml"))
	if err == nil {
		t.Fatal("expected read failure")
	}
	if errors.CategoryOf(err) != errors.CategoryIOFailure {
		t.Fatalf("category = %q", errors.CategoryOf(err))
	}
}
