// Package tarx canonicalizes distribution archives. Normalization is
// idempotent and deterministic: two archives built from the same logical
// member set, in any order and at any time, normalize to identical bytes.
package tarx

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pydist/pydist/core/errors"
)

// DefaultMTime is the fixed member timestamp, 2024-01-01T00:00:00Z.
const DefaultMTime = 1704067200

type member struct {
	header *tar.Header
	data   []byte
}

// Normalize canonicalizes an uncompressed tar stream. Directory entries are
// dropped, the metadata member sorts first so consumers can read it from
// the front of the archive, and ownership, timestamps, and group mode bits
// are rewritten to fixed values.
func Normalize(data []byte, metadataMember string) ([]byte, error) {
	var members []member
	reader := tar.NewReader(bytes.NewReader(data))
	for {
		header, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(fmt.Errorf("read archive: %w", err), errors.CategoryArchiveIntegrity, "archive_decode", "the input is not a readable tar stream")
		}
		if header.Typeflag == tar.TypeDir {
			continue
		}
		var content []byte
		if header.Size > 0 {
			content, err = io.ReadAll(reader)
			if err != nil {
				return nil, errors.Wrap(fmt.Errorf("read archive member %s: %w", header.Name, err), errors.CategoryArchiveIntegrity, "archive_member", "")
			}
		}
		members = append(members, member{header: header, data: content})
	}

	sort.SliceStable(members, func(i, j int) bool {
		return memberSortKey(members[i].header.Name, metadataMember) < memberSortKey(members[j].header.Name, metadataMember)
	})

	var out bytes.Buffer
	writer := tar.NewWriter(&out)
	for _, m := range members {
		header := m.header
		// PAX records take priority over the named header fields; clear
		// them so the assignments below cannot be shadowed.
		header.PAXRecords = nil
		header.ModTime = time.Unix(DefaultMTime, 0).UTC()
		header.AccessTime = time.Time{}
		header.ChangeTime = time.Time{}
		header.Uid = 0
		header.Gid = 0
		header.Uname = "root"
		header.Gname = "root"
		header.Mode |= 0o600 | 0o060
		if header.Mode&0o100 != 0 {
			header.Mode |= 0o010
		}
		header.Format = tar.FormatPAX
		if err := writer.WriteHeader(header); err != nil {
			return nil, errors.Wrap(fmt.Errorf("write archive member %s: %w", header.Name, err), errors.CategoryArchiveIntegrity, "archive_encode", "")
		}
		if len(m.data) > 0 {
			if _, err := writer.Write(m.data); err != nil {
				return nil, errors.Wrap(fmt.Errorf("write archive member %s: %w", header.Name, err), errors.CategoryArchiveIntegrity, "archive_encode", "")
			}
		}
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(fmt.Errorf("finish archive: %w", err), errors.CategoryArchiveIntegrity, "archive_encode", "")
	}
	return out.Bytes(), nil
}

func memberSortKey(name, metadataMember string) string {
	if name == metadataMember {
		return "0 " + name
	}
	return "1 " + name
}

// FromDirectory builds an unnormalized tar stream from a sorted directory
// walk, with paths recorded relative to base, optionally under prefix.
func FromDirectory(base, prefix string) ([]byte, error) {
	var out bytes.Buffer
	writer := tar.NewWriter(&out)
	err := filepath.WalkDir(base, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if prefix != "" {
			rel = prefix + "/" + rel
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = rel
		if err := writer.WriteHeader(header); err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		_, err = writer.Write(content)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(fmt.Errorf("archive directory: %w", err), errors.CategoryIOFailure, "archive_walk", "check that the source directory is readable")
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(fmt.Errorf("finish archive: %w", err), errors.CategoryIOFailure, "archive_close", "")
	}
	return out.Bytes(), nil
}
