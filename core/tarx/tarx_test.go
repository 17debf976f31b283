package tarx

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/pydist/pydist/core/errors"
	"github.com/pydist/pydist/core/schema/v1/distribution"
)

type fixtureMember struct {
	name    string
	mode    int64
	mtime   time.Time
	uid     int
	content string
	dir     bool
}

func buildTar(t *testing.T, members []fixtureMember) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := tar.NewWriter(&buf)
	for _, m := range members {
		header := &tar.Header{
			Name:    m.name,
			Mode:    m.mode,
			ModTime: m.mtime,
			Uid:     m.uid,
			Gid:     m.uid,
			Uname:   "builder",
			Gname:   "staff",
		}
		if m.dir {
			header.Typeflag = tar.TypeDir
		} else {
			header.Size = int64(len(m.content))
		}
		if err := writer.WriteHeader(header); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if !m.dir {
			if _, err := writer.Write([]byte(m.content)); err != nil {
				t.Fatalf("write body: %v", err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

func readMembers(t *testing.T, data []byte) []*tar.Header {
	t.Helper()
	var headers []*tar.Header
	reader := tar.NewReader(bytes.NewReader(data))
	for {
		header, err := reader.Next()
		if err == io.EOF {
			return headers
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		headers = append(headers, header)
	}
}

func TestNormalizeRewritesMetadata(t *testing.T) {
	input := buildTar(t, []fixtureMember{
		{name: "python/", mode: 0o755, mtime: time.Now(), dir: true},
		{name: "python/install/bin/python3", mode: 0o700, mtime: time.Now(), uid: 501, content: "#!elf"},
		{name: "python/PYTHON.json", mode: 0o644, mtime: time.Now(), uid: 501, content: "{}"},
	})
	output, err := Normalize(input, distribution.ManifestFileName)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	headers := readMembers(t, output)
	if len(headers) != 2 {
		t.Fatalf("expected directory entry dropped, got %d members", len(headers))
	}
	if headers[0].Name != "python/PYTHON.json" {
		t.Fatalf("metadata member not first: %s", headers[0].Name)
	}
	for _, header := range headers {
		if header.ModTime.Unix() != DefaultMTime {
			t.Fatalf("mtime = %v", header.ModTime)
		}
		if header.Uid != 0 || header.Gid != 0 || header.Uname != "root" || header.Gname != "root" {
			t.Fatalf("ownership not rewritten: %+v", header)
		}
		if header.Mode&0o060 != 0o060 {
			t.Fatalf("group rw missing: %o", header.Mode)
		}
	}
	exe := headers[1]
	if exe.Name != "python/install/bin/python3" {
		t.Fatalf("unexpected member order: %s", exe.Name)
	}
	if exe.Mode&0o010 == 0 {
		t.Fatalf("owner-execute did not propagate to group: %o", exe.Mode)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	input := buildTar(t, []fixtureMember{
		{name: "b.txt", mode: 0o644, mtime: time.Now(), uid: 501, content: "bb"},
		{name: "a.txt", mode: 0o600, mtime: time.Now(), uid: 501, content: "aa"},
	})
	once, err := Normalize(input, distribution.ManifestFileName)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	twice, err := Normalize(once, distribution.ManifestFileName)
	if err != nil {
		t.Fatalf("re-normalize: %v", err)
	}
	if !bytes.Equal(once, twice) {
		t.Fatal("normalize is not idempotent")
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	first := buildTar(t, []fixtureMember{
		{name: "a.txt", mode: 0o644, mtime: time.Unix(1000, 0), uid: 1, content: "aa"},
		{name: "b.txt", mode: 0o644, mtime: time.Unix(2000, 0), uid: 2, content: "bb"},
	})
	second := buildTar(t, []fixtureMember{
		{name: "b.txt", mode: 0o644, mtime: time.Unix(3000, 0), uid: 3, content: "bb"},
		{name: "a.txt", mode: 0o644, mtime: time.Unix(4000, 0), uid: 4, content: "aa"},
	})
	normFirst, err := Normalize(first, distribution.ManifestFileName)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	normSecond, err := Normalize(second, distribution.ManifestFileName)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !bytes.Equal(normFirst, normSecond) {
		t.Fatal("logically identical archives normalize differently")
	}
}

func TestNormalizePreservesContent(t *testing.T) {
	input := buildTar(t, []fixtureMember{
		{name: "data.bin", mode: 0o644, mtime: time.Now(), content: "payload bytes"},
	})
	output, err := Normalize(input, distribution.ManifestFileName)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	reader := tar.NewReader(bytes.NewReader(output))
	header, err := reader.Next()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if header.Name != "data.bin" {
		t.Fatalf("name = %q", header.Name)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read content: %v", err)
	}
	if string(content) != "payload bytes" {
		t.Fatalf("content = %q", content)
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	_, err := Normalize([]byte("definitely not a tar archive, but long enough to try"), distribution.ManifestFileName)
	if err == nil {
		t.Fatal("expected integrity error")
	}
	if errors.CategoryOf(err) != errors.CategoryArchiveIntegrity {
		t.Fatalf("category = %q", errors.CategoryOf(err))
	}
}

func TestFromDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "file.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "top.txt"), []byte("y"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := FromDirectory(dir, "python")
	if err != nil {
		t.Fatalf("from directory: %v", err)
	}
	var names []string
	for _, header := range readMembers(t, data) {
		names = append(names, header.Name)
	}
	want := []string{"python/sub/file.txt", "python/top.txt"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
}
