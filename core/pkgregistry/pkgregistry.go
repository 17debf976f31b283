// Package pkgregistry carries license provenance for the upstream packages
// a distribution may link against. The registry is embedded: license
// attribution must not depend on network or filesystem state at manifest
// time.
package pkgregistry

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-yaml"
)

// Package is one upstream package's metadata. LibraryNames are the bare
// linker names the package provides; reverse lookup from a link entry goes
// through them.
type Package struct {
	Name                string   `yaml:"-"`
	Version             string   `yaml:"version"`
	LibraryNames        []string `yaml:"library-names"`
	Licenses            []string `yaml:"licenses"`
	LicenseFile         string   `yaml:"license-file"`
	LicensePublicDomain bool     `yaml:"license-public-domain"`
}

// Registry maps package names and library names to package metadata.
type Registry struct {
	packages  map[string]Package
	byLibrary map[string]string
}

//go:embed packages.yml
var packagesYAML []byte

var (
	globalOnce sync.Once
	global     *Registry
	globalErr  error
)

// Global returns the embedded registry, loading it on first use.
func Global() (*Registry, error) {
	globalOnce.Do(func() {
		global, globalErr = Load(packagesYAML)
	})
	return global, globalErr
}

// Load parses a registry document. Duplicate library names across packages
// are rejected: reverse lookup must be unambiguous.
func Load(data []byte) (*Registry, error) {
	raw := map[string]Package{}
	if err := yaml.UnmarshalWithOptions(data, &raw, yaml.Strict()); err != nil {
		return nil, fmt.Errorf("parse package registry: %w", err)
	}
	registry := &Registry{
		packages:  make(map[string]Package, len(raw)),
		byLibrary: map[string]string{},
	}
	for name, pkg := range raw {
		pkg.Name = name
		registry.packages[name] = pkg
		for _, library := range pkg.LibraryNames {
			if other, dup := registry.byLibrary[library]; dup {
				return nil, fmt.Errorf("library %q claimed by both %s and %s", library, other, name)
			}
			registry.byLibrary[library] = name
		}
	}
	return registry, nil
}

// Get returns the package registered under name.
func (r *Registry) Get(name string) (Package, bool) {
	pkg, ok := r.packages[name]
	return pkg, ok
}

// FindByLibrary resolves a bare linker name to its owning package.
func (r *Registry) FindByLibrary(library string) (Package, bool) {
	name, ok := r.byLibrary[library]
	if !ok {
		return Package{}, false
	}
	return r.packages[name], true
}

// Names returns all package names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.packages))
	for name := range r.packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
