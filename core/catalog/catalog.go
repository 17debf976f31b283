// Package catalog loads the declarative extension-module catalog. A catalog
// document passes three gates before use: JSON Schema validation, strict
// YAML decoding, and target-pattern compilation. Anything that survives all
// three is safe for every downstream consumer to read without re-checking.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/kaptinlin/jsonschema"

	"github.com/pydist/pydist/core/errors"
	"github.com/pydist/pydist/core/schema/validate"
	"github.com/pydist/pydist/core/schema/v1/extensions"
	"github.com/pydist/pydist/core/targets"
)

// Catalog is an immutable name-keyed set of module specs.
type Catalog struct {
	modules map[string]extensions.ModuleSpec
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func catalogSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, err := validate.Compile(extensions.CatalogSchema)
		if err != nil {
			schemaErr = errors.Wrap(err, errors.CategoryInternalFailure, "catalog_schema_compile", "embedded catalog schema is broken; this is a build defect")
			return
		}
		compiledSchema = schema
	})
	return compiledSchema, schemaErr
}

// Load parses and validates a catalog document.
func Load(data []byte) (*Catalog, error) {
	schema, err := catalogSchema()
	if err != nil {
		return nil, err
	}
	jsonData, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, errors.Wrap(fmt.Errorf("parse catalog yaml: %w", err), errors.CategorySchemaViolation, "catalog_parse", "the catalog is not well-formed YAML")
	}
	if err := validate.ValidateJSON(schema, jsonData); err != nil {
		return nil, errors.Wrap(fmt.Errorf("catalog: %w", err), errors.CategorySchemaViolation, "catalog_schema", "fix the offending catalog entries; unknown keys are rejected")
	}

	modules := map[string]extensions.ModuleSpec{}
	if err := yaml.UnmarshalWithOptions(data, &modules, yaml.Strict()); err != nil {
		return nil, errors.Wrap(fmt.Errorf("decode catalog: %w", err), errors.CategorySchemaViolation, "catalog_decode", "the catalog contains keys outside the module spec")
	}

	for name, spec := range modules {
		if err := checkSpec(name, spec); err != nil {
			return nil, errors.Wrap(err, errors.CategorySchemaViolation, "catalog_spec", "fix the named catalog entry")
		}
		if spec.BuildMode == "" {
			spec.BuildMode = extensions.BuildModeStatic
			modules[name] = spec
		}
	}
	return &Catalog{modules: modules}, nil
}

// LoadFile reads and loads a catalog document from disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(fmt.Errorf("read catalog: %w", err), errors.CategoryIOFailure, "catalog_read", "check that the catalog path exists and is readable")
	}
	return Load(data)
}

// Get returns the spec for name.
func (c *Catalog) Get(name string) (extensions.ModuleSpec, bool) {
	spec, ok := c.modules[name]
	return spec, ok
}

// Names returns all module names in sorted order. Deterministic iteration
// order is what keeps every synthesized artifact byte-stable.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.modules))
	for name := range c.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.modules)
}

func checkSpec(name string, spec extensions.ModuleSpec) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("catalog entry with empty name")
	}
	patternLists := [][]string{
		spec.DisabledTargets,
		spec.RequiredTargets,
	}
	for _, source := range spec.SourcesConditional {
		patternLists = append(patternLists, source.Targets)
	}
	for _, define := range spec.DefinesConditional {
		patternLists = append(patternLists, define.Targets)
	}
	for _, include := range spec.IncludesConditional {
		patternLists = append(patternLists, include.Targets)
	}
	for _, link := range spec.LinksConditional {
		patternLists = append(patternLists, link.Targets)
	}
	for _, linker := range spec.LinkerArgs {
		patternLists = append(patternLists, linker.Targets)
	}
	for _, enable := range spec.SetupEnabledConditional {
		patternLists = append(patternLists, enable.Targets)
	}
	for _, patterns := range patternLists {
		if err := targets.ValidTargetPatterns(patterns); err != nil {
			return fmt.Errorf("module %s: %w", name, err)
		}
	}
	if spec.ConfigCOnly && len(spec.Sources) > 0 {
		return fmt.Errorf("module %s: config-c-only entries carry no sources", name)
	}
	return nil
}
