package manifest

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pydist/pydist/core/errors"
)

// ArtifactTree is the compiled output tree as a flat path set, rooted at
// the distribution directory (paths like "build/Modules/zlibmodule.o").
// It is a read-only input to the manifest builder.
type ArtifactTree struct {
	paths map[string]struct{}
}

// NewArtifactTree builds a tree from explicit paths; used by tests.
func NewArtifactTree(paths []string) *ArtifactTree {
	tree := &ArtifactTree{paths: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		tree.paths[filepath.ToSlash(p)] = struct{}{}
	}
	return tree
}

// TreeFromTar reads member paths from an uncompressed tar stream.
func TreeFromTar(data []byte) (*ArtifactTree, error) {
	tree := &ArtifactTree{paths: map[string]struct{}{}}
	reader := tar.NewReader(bytes.NewReader(data))
	for {
		header, err := reader.Next()
		if err == io.EOF {
			return tree, nil
		}
		if err != nil {
			return nil, errors.Wrap(fmt.Errorf("read artifact archive: %w", err), errors.CategoryArchiveIntegrity, "artifact_tar", "the artifact archive is not a readable tar stream")
		}
		if header.Typeflag == tar.TypeDir {
			continue
		}
		tree.paths[strings.TrimPrefix(header.Name, "./")] = struct{}{}
	}
}

// TreeFromDirectory walks a directory, recording paths relative to root.
func TreeFromDirectory(root string) (*ArtifactTree, error) {
	tree := &ArtifactTree{paths: map[string]struct{}{}}
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		tree.paths[filepath.ToSlash(rel)] = struct{}{}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(fmt.Errorf("walk artifacts: %w", err), errors.CategoryIOFailure, "artifact_walk", "check that the artifact directory exists")
		}
		return nil, errors.Wrap(fmt.Errorf("walk artifacts: %w", err), errors.CategoryIOFailure, "artifact_walk", "")
	}
	return tree, nil
}

// Has reports whether the tree contains path.
func (t *ArtifactTree) Has(path string) bool {
	_, ok := t.paths[path]
	return ok
}

// Paths returns every path in sorted order.
func (t *ArtifactTree) Paths() []string {
	paths := make([]string, 0, len(t.paths))
	for p := range t.paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
