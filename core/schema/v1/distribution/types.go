// Package distribution defines the structured manifest describing a finished
// distribution's build artifacts, link dependencies, and license provenance.
// It is serialized once, canonically, as the terminal output of a build cell.
package distribution

const (
	// ManifestVersion is the manifest schema version.
	ManifestVersion = "1"

	// ManifestFileName is the archive member consumers read first; the
	// packager sorts it to the front of the archive.
	ManifestFileName = "python/PYTHON.json"
)

// LinkEntry describes one link dependency of an object set. Exactly one of
// System, Framework, PathStatic, or PathDynamic is set.
type LinkEntry struct {
	Name        string `json:"name"`
	System      bool   `json:"system,omitempty"`
	Framework   bool   `json:"framework,omitempty"`
	PathStatic  string `json:"path_static,omitempty"`
	PathDynamic string `json:"path_dynamic,omitempty"`
}

// ExtensionBuild is the build record for one extension variant. Records are
// produced fresh per build and never mutated afterwards.
type ExtensionBuild struct {
	InCore              bool        `json:"in_core"`
	InitFn              string      `json:"init_fn"`
	Links               []LinkEntry `json:"links"`
	Objs                []string    `json:"objs"`
	Required            bool        `json:"required"`
	Variant             string      `json:"variant"`
	Licenses            []string    `json:"licenses,omitempty"`
	LicensePaths        []string    `json:"license_paths,omitempty"`
	LicensePublicDomain *bool       `json:"license_public_domain,omitempty"`
	StaticLib           string      `json:"static_lib,omitempty"`
	SharedLib           string      `json:"shared_lib,omitempty"`
}

// CoreBuild describes the core runtime objects and their link dependencies.
type CoreBuild struct {
	Objs      []string    `json:"objs"`
	Links     []LinkEntry `json:"links"`
	StaticLib string      `json:"static_lib,omitempty"`
	SharedLib string      `json:"shared_lib,omitempty"`
}

type BuildInfo struct {
	Core       CoreBuild                   `json:"core"`
	Extensions map[string][]ExtensionBuild `json:"extensions"`
}

// Manifest is the aggregate root emitted as PYTHON.json.
type Manifest struct {
	Version          string    `json:"version"`
	TargetTriple     string    `json:"target_triple"`
	BuildOptions     string    `json:"build_options"`
	PythonVersion    string    `json:"python_version"`
	ObjectFileFormat string    `json:"object_file_format"`
	BuildInfo        BuildInfo `json:"build_info"`
	CRTFeatures      []string  `json:"crt_features"`
	Licenses         []string  `json:"licenses,omitempty"`
	LicensePath      string    `json:"license_path,omitempty"`
}

// BuildVars is the small side document of build variables the runtime's own
// build reports back (a boundary input; produced by the external native
// build front-end, consumed by the manifest builder).
type BuildVars struct {
	ABISuffix        string   `json:"abi_suffix"`
	ObjectFileFormat string   `json:"object_file_format"`
	CoreLinkFlags    []string `json:"core_link_flags"`
	CRTFeatures      []string `json:"crt_features"`
	StaticBuild      bool     `json:"static_build"`
	CoreStaticLib    string   `json:"core_static_lib,omitempty"`
	CoreSharedLib    string   `json:"core_shared_lib,omitempty"`
}
