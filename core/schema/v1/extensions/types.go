// Package extensions defines the typed form of the declarative extension
// module catalog. The catalog is the single source of truth for how each
// extension is built; unknown keys are rejected at load time rather than
// validated ad hoc at use sites.
package extensions

// ConditionalSource is a source file gated by target patterns and/or a
// runtime version range. Absent targets means the source applies on every
// target.
type ConditionalSource struct {
	Source               string   `yaml:"source" json:"source"`
	Targets              []string `yaml:"targets,omitempty" json:"targets,omitempty"`
	MinimumPythonVersion string   `yaml:"minimum-python-version,omitempty" json:"minimum-python-version,omitempty"`
	MaximumPythonVersion string   `yaml:"maximum-python-version,omitempty" json:"maximum-python-version,omitempty"`
}

type ConditionalDefine struct {
	Define               string   `yaml:"define" json:"define"`
	Targets              []string `yaml:"targets,omitempty" json:"targets,omitempty"`
	MinimumPythonVersion string   `yaml:"minimum-python-version,omitempty" json:"minimum-python-version,omitempty"`
}

type ConditionalInclude struct {
	Path    string   `yaml:"path" json:"path"`
	Targets []string `yaml:"targets,omitempty" json:"targets,omitempty"`
}

type ConditionalLink struct {
	Name    string   `yaml:"name" json:"name"`
	Targets []string `yaml:"targets,omitempty" json:"targets,omitempty"`
}

// LinkerArgs is a raw linker argument passthrough, applied only on matching
// targets. Args are appended to the directive verbatim.
type LinkerArgs struct {
	Args    []string `yaml:"args" json:"args"`
	Targets []string `yaml:"targets" json:"targets"`
}

// ConditionalEnable marks a module as already enabled by the runtime's own
// native configuration, limited to matching targets or versions.
type ConditionalEnable struct {
	Targets              []string `yaml:"targets,omitempty" json:"targets,omitempty"`
	MinimumPythonVersion string   `yaml:"minimum-python-version,omitempty" json:"minimum-python-version,omitempty"`
}

const (
	BuildModeStatic = "static"
	BuildModeShared = "shared"
)

// ModuleSpec is one catalog entry. The key set is closed; loading fails on
// anything outside it. Instances are immutable once loaded.
type ModuleSpec struct {
	Sources                 []string             `yaml:"sources,omitempty" json:"sources,omitempty"`
	SourcesConditional      []ConditionalSource  `yaml:"sources-conditional,omitempty" json:"sources-conditional,omitempty"`
	Defines                 []string             `yaml:"defines,omitempty" json:"defines,omitempty"`
	DefinesConditional      []ConditionalDefine  `yaml:"defines-conditional,omitempty" json:"defines-conditional,omitempty"`
	Includes                []string             `yaml:"includes,omitempty" json:"includes,omitempty"`
	IncludesConditional     []ConditionalInclude `yaml:"includes-conditional,omitempty" json:"includes-conditional,omitempty"`
	IncludesDeps            []string             `yaml:"includes-deps,omitempty" json:"includes-deps,omitempty"`
	Links                   []string             `yaml:"links,omitempty" json:"links,omitempty"`
	LinksConditional        []ConditionalLink    `yaml:"links-conditional,omitempty" json:"links-conditional,omitempty"`
	LinkerArgs              []LinkerArgs         `yaml:"linker-args,omitempty" json:"linker-args,omitempty"`
	Frameworks              []string             `yaml:"frameworks,omitempty" json:"frameworks,omitempty"`
	BuildMode               string               `yaml:"build-mode,omitempty" json:"build-mode,omitempty"`
	DisabledTargets         []string             `yaml:"disabled-targets,omitempty" json:"disabled-targets,omitempty"`
	RequiredTargets         []string             `yaml:"required-targets,omitempty" json:"required-targets,omitempty"`
	MinimumPythonVersion    string               `yaml:"minimum-python-version,omitempty" json:"minimum-python-version,omitempty"`
	MaximumPythonVersion    string               `yaml:"maximum-python-version,omitempty" json:"maximum-python-version,omitempty"`
	SetupEnabled            bool                 `yaml:"setup-enabled,omitempty" json:"setup-enabled,omitempty"`
	SetupEnabledConditional []ConditionalEnable  `yaml:"setup-enabled-conditional,omitempty" json:"setup-enabled-conditional,omitempty"`
	ConfigCOnly             bool                 `yaml:"config-c-only,omitempty" json:"config-c-only,omitempty"`
}
