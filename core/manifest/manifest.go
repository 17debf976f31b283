// Package manifest scans the compiled artifact tree and resolves it, with
// the synthesized directives, into the distribution manifest. The scan is
// single-threaded and side-effect-free: the tree is read-only and every
// record is built fresh.
package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/pydist/pydist/core/errors"
	"github.com/pydist/pydist/core/jcs"
	"github.com/pydist/pydist/core/pkgregistry"
	"github.com/pydist/pydist/core/schema/v1/distribution"
	"github.com/pydist/pydist/core/setupfile"
	"github.com/pydist/pydist/core/synth"
	"github.com/pydist/pydist/core/targets"
)

// requiredExtensions is the fixed set of extensions the runtime cannot
// start without.
var requiredExtensions = map[string]struct{}{
	"_codecs":      {},
	"_io":          {},
	"_signal":      {},
	"_thread":      {},
	"_tracemalloc": {},
	"_weakref":     {},
	"faulthandler": {},
	"posix":        {},
}

// coreDirs are the build subdirectories whose objects always belong to the
// core runtime rather than any extension.
var coreDirs = map[string]struct{}{
	"Objects": {},
	"Parser":  {},
	"Python":  {},
}

// Per-platform allow-lists of bare system libraries the core binary may
// link. Anything outside these indicates an unvetted dynamic dependency.
var linuxCoreLibraries = map[string]struct{}{
	"anl": {}, "c": {}, "crypt": {}, "dl": {}, "m": {},
	"nsl": {}, "pthread": {}, "resolv": {}, "rt": {}, "util": {},
}

var appleCoreLibraries = map[string]struct{}{
	"dl": {}, "m": {}, "pthread": {},
}

var appleCoreFrameworks = map[string]struct{}{
	"System": {},
}

// Request carries everything the builder needs for one build cell.
// NativeLines are the enabled directives from the runtime's own directive
// file; the drift checker has already reconciled them against the catalog.
type Request struct {
	Triple        string
	PythonVersion string
	Options       targets.BuildOptions
	Tree          *ArtifactTree
	Directives    []synth.Directive
	NativeLines   []*setupfile.Line
	Inittab       map[string]string
	Vars          distribution.BuildVars
}

// Build scans the artifact tree and produces the distribution manifest.
func Build(req Request, logger *log.Logger) (*distribution.Manifest, error) {
	registry, err := pkgregistry.Global()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternalFailure, "registry_load", "")
	}

	coreObjs, candidates := partitionObjects(req.Tree)
	archives := archiveNames(req.Tree)

	extensions := map[string][]distribution.ExtensionBuild{}

	appendRecord := func(owner, variant string, objs []string, links, frameworks []string) error {
		if variant == "" {
			variant = setupfile.DefaultVariant
		}
		record := distribution.ExtensionBuild{
			InCore:  false,
			InitFn:  "PyInit_" + owner,
			Variant: variant,
			Links:   []distribution.LinkEntry{},
			Objs:    []string{},
		}
		sort.Strings(objs)
		for _, obj := range objs {
			full := "build/" + obj
			if _, ok := candidates[full]; !ok {
				continue
			}
			delete(candidates, full)
			record.Objs = append(record.Objs, full)
			logger.Debug("claimed object", "extension", owner, "object", full)
		}
		sorted := append([]string(nil), frameworks...)
		sort.Strings(sorted)
		for _, framework := range sorted {
			record.Links = append(record.Links, distribution.LinkEntry{Name: framework, Framework: true})
		}
		names := append([]string(nil), links...)
		sort.Strings(names)
		for _, name := range names {
			if _, local := archives[name]; local {
				record.Links = append(record.Links, distribution.LinkEntry{
					Name:       name,
					PathStatic: "build/lib/lib" + name + ".a",
				})
			} else {
				record.Links = append(record.Links, distribution.LinkEntry{Name: name, System: true})
			}
		}
		if err := attachLicenses(&record, registry); err != nil {
			return errors.Wrap(
				fmt.Errorf("extension %s: %w", owner, err),
				errors.CategoryMissingLicense, "extension_license",
				"register the library in the package registry or drop the local link")
		}
		extensions[owner] = append(extensions[owner], record)
		return nil
	}

	for _, line := range req.NativeLines {
		if err := appendRecord(line.Extension, line.Variant, append([]string(nil), line.Objects...), line.Links, line.Frameworks); err != nil {
			return nil, err
		}
	}
	for _, directive := range req.Directives {
		if directive.Passthrough {
			continue
		}
		if err := appendRecord(directive.Owner, directive.Variant, append([]string(nil), directive.Objects...), directive.Links, directive.Frameworks); err != nil {
			return nil, err
		}
	}

	// Modules baked into the core via the native init table get in-core
	// records so consumers can still register their init functions.
	for _, name := range sortedKeys(req.Inittab) {
		extensions[name] = append(extensions[name], distribution.ExtensionBuild{
			InCore:  true,
			InitFn:  req.Inittab[name],
			Links:   []distribution.LinkEntry{},
			Objs:    []string{},
			Variant: setupfile.DefaultVariant,
		})
	}

	for name, records := range extensions {
		_, required := requiredExtensions[name]
		for i := range records {
			records[i].Required = required
		}
	}

	// Unclaimed candidates are objects shared by the core build, not owned
	// by any single extension.
	for _, obj := range sortedKeys(candidates) {
		coreObjs = append(coreObjs, obj)
	}
	sort.Strings(coreObjs)

	coreLinks, err := coreLinkEntries(req.Triple, req.Vars.CoreLinkFlags, archives)
	if err != nil {
		return nil, err
	}

	cpython, ok := registry.Get("cpython")
	if !ok {
		return nil, errors.Wrap(
			fmt.Errorf("package registry has no cpython entry"),
			errors.CategoryInternalFailure, "registry_cpython",
			"the embedded registry must attribute the runtime's own license")
	}
	manifest := &distribution.Manifest{
		Version:          distribution.ManifestVersion,
		TargetTriple:     req.Triple,
		BuildOptions:     req.Options.String(),
		PythonVersion:    req.PythonVersion,
		ObjectFileFormat: req.Vars.ObjectFileFormat,
		BuildInfo: distribution.BuildInfo{
			Core: distribution.CoreBuild{
				Objs:      coreObjs,
				Links:     coreLinks,
				StaticLib: req.Vars.CoreStaticLib,
				SharedLib: req.Vars.CoreSharedLib,
			},
			Extensions: extensions,
		},
		CRTFeatures: req.Vars.CRTFeatures,
		Licenses:    cpython.Licenses,
		LicensePath: "licenses/" + cpython.LicenseFile,
	}
	if manifest.CRTFeatures == nil {
		manifest.CRTFeatures = []string{}
	}
	logger.Info("built manifest",
		"triple", req.Triple,
		"core_objects", len(coreObjs),
		"extensions", len(extensions))
	return manifest, nil
}

// Encode serializes a manifest as canonical JSON.
func Encode(manifest *distribution.Manifest) ([]byte, error) {
	data, err := jcs.MarshalCanonical(manifest)
	if err != nil {
		return nil, errors.Wrap(fmt.Errorf("encode manifest: %w", err), errors.CategoryInternalFailure, "manifest_encode", "")
	}
	return data, nil
}

// Validate re-checks an existing manifest for structural problems: every
// link entry must carry exactly one link type, and locally linked
// libraries must carry license annotations.
func Validate(manifest *distribution.Manifest) error {
	var problems []string
	for _, name := range sortedKeys(manifest.BuildInfo.Extensions) {
		for _, record := range manifest.BuildInfo.Extensions[name] {
			var localLinks []string
			for _, link := range record.Links {
				if err := checkLinkEntry(link); err != nil {
					problems = append(problems, fmt.Sprintf("extension %s: %v", name, err))
					continue
				}
				if link.PathStatic != "" {
					localLinks = append(localLinks, link.PathStatic)
				}
				if link.PathDynamic != "" {
					localLinks = append(localLinks, link.PathDynamic)
				}
			}
			publicDomain := record.LicensePublicDomain != nil && *record.LicensePublicDomain
			if len(localLinks) > 0 && len(record.Licenses) == 0 && !publicDomain {
				sort.Strings(localLinks)
				problems = append(problems, fmt.Sprintf("extension %s: missing license annotations for %s", name, strings.Join(localLinks, ", ")))
			}
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.Wrap(
		fmt.Errorf("invalid manifest: %s", strings.Join(problems, "; ")),
		errors.CategoryMissingLicense, "manifest_validate",
		"the manifest carries link entries without type or license attribution")
}

func checkLinkEntry(link distribution.LinkEntry) error {
	count := 0
	if link.System {
		count++
	}
	if link.Framework {
		count++
	}
	if link.PathStatic != "" {
		count++
	}
	if link.PathDynamic != "" {
		count++
	}
	if count != 1 {
		return fmt.Errorf("link %q carries %d link types, want exactly 1", link.Name, count)
	}
	return nil
}

func partitionObjects(tree *ArtifactTree) (coreObjs []string, candidates map[string]struct{}) {
	candidates = map[string]struct{}{}
	for _, path := range tree.Paths() {
		if !strings.HasSuffix(path, ".o") || !strings.HasPrefix(path, "build/") {
			continue
		}
		parts := strings.Split(path, "/")
		if len(parts) < 3 {
			continue
		}
		if _, core := coreDirs[parts[1]]; core {
			coreObjs = append(coreObjs, path)
		} else if parts[1] == "Modules" {
			candidates[path] = struct{}{}
		}
	}
	return coreObjs, candidates
}

// archiveNames enumerates static archives under build/lib by bare name
// (lib prefix and .a suffix stripped).
func archiveNames(tree *ArtifactTree) map[string]struct{} {
	names := map[string]struct{}{}
	for _, path := range tree.Paths() {
		if !strings.HasPrefix(path, "build/lib/") || !strings.HasSuffix(path, ".a") {
			continue
		}
		base := strings.TrimPrefix(path, "build/lib/")
		if strings.Contains(base, "/") || !strings.HasPrefix(base, "lib") {
			continue
		}
		names[strings.TrimSuffix(strings.TrimPrefix(base, "lib"), ".a")] = struct{}{}
	}
	return names
}

// attachLicenses resolves license provenance for every linked library. A
// local static or dynamic link without any resolvable license is fatal:
// the distribution redistributes those bytes.
func attachLicenses(record *distribution.ExtensionBuild, registry *pkgregistry.Registry) error {
	licenses := map[string]struct{}{}
	licensePaths := map[string]struct{}{}
	haveLicenses := false
	haveLocalLink := false
	publicDomain := false

	for _, link := range record.Links {
		if link.PathStatic != "" || link.PathDynamic != "" {
			haveLocalLink = true
		}
		pkg, ok := registry.FindByLibrary(link.Name)
		if !ok {
			continue
		}
		haveLicenses = true
		for _, license := range pkg.Licenses {
			licenses[license] = struct{}{}
		}
		licensePaths["licenses/"+pkg.LicenseFile] = struct{}{}
		publicDomain = pkg.LicensePublicDomain
	}

	if haveLocalLink && !haveLicenses {
		return fmt.Errorf("locally linked library has no license metadata")
	}
	if !haveLicenses {
		return nil
	}
	record.Licenses = sortedKeys(licenses)
	record.LicensePaths = sortedKeys(licensePaths)
	record.LicensePublicDomain = &publicDomain
	return nil
}

// coreLinkEntries validates the core's reported link flags against the
// platform allow-list and renders them as link entries.
func coreLinkEntries(triple string, flags []string, archives map[string]struct{}) ([]distribution.LinkEntry, error) {
	apple := targets.IsApple(triple)
	var entries []distribution.LinkEntry
	var offenders []string

	for i := 0; i < len(flags); i++ {
		flag := flags[i]
		switch {
		case strings.HasPrefix(flag, "-l"):
			name := flag[2:]
			if _, local := archives[name]; local {
				entries = append(entries, distribution.LinkEntry{
					Name:       name,
					PathStatic: "build/lib/lib" + name + ".a",
				})
				continue
			}
			allowed := linuxCoreLibraries
			if apple {
				allowed = appleCoreLibraries
			}
			if _, ok := allowed[name]; !ok {
				offenders = append(offenders, name)
				continue
			}
			entries = append(entries, distribution.LinkEntry{Name: name, System: true})
		case flag == "-framework":
			if i+1 >= len(flags) {
				offenders = append(offenders, flag)
				continue
			}
			name := flags[i+1]
			i++
			if !apple {
				offenders = append(offenders, name)
				continue
			}
			if _, ok := appleCoreFrameworks[name]; !ok {
				offenders = append(offenders, name)
				continue
			}
			entries = append(entries, distribution.LinkEntry{Name: name, Framework: true})
		}
	}
	if len(offenders) > 0 {
		sort.Strings(offenders)
		return nil, errors.Wrap(
			fmt.Errorf("core binary links unvetted libraries: %s", strings.Join(offenders, ", ")),
			errors.CategoryUnattributedLink, "core_link_allowlist",
			"an unexpected dynamic dependency crept into the core binary; vet it and extend the allow-list deliberately")
	}
	if entries == nil {
		entries = []distribution.LinkEntry{}
	}
	return entries, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

