// Package synth turns the validated catalog into the legacy directive
// document consumed by the native build, plus the supplemental make rules
// the legacy grammar cannot express. The output text is itself valid input
// to core/setupfile's grammar.
package synth

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/pydist/pydist/core/catalog"
	"github.com/pydist/pydist/core/errors"
	"github.com/pydist/pydist/core/schema/v1/extensions"
	"github.com/pydist/pydist/core/setupfile"
	"github.com/pydist/pydist/core/targets"
)

// debugDisabled is force-disabled under debug builds; its fuzz harness
// trips assertion failures in a debug interpreter.
var debugDisabled = map[string]struct{}{
	"_xxtestfuzz": {},
}

// Directive is one resolved build declaration. Passthrough directives carry
// no text: the native files already declare the module and we only record
// it so the manifest builder can account for it later.
type Directive struct {
	Owner       string
	Variant     string
	Text        string
	Passthrough bool
	ConfigCOnly bool
	Sources     []string
	Objects     []string
	Defines     []string
	Links       []string
	Frameworks  []string
	Archives    []string
	BuildMode   string
}

// Plan is the complete synthesis output for one build cell.
type Plan struct {
	Directives []Directive
	SetupLocal []byte
	MakeExtra  []byte
	Sidecars   map[string][]byte
	Disabled   []string
}

// Request names one build cell and its synthesis inputs. ExtraLines are
// additional directives in the legacy grammar; a VARIANT=<tag> token after
// the module name marks a non-primary build of an already-declared
// extension.
type Request struct {
	Triple        string
	PythonVersion string
	Options       targets.BuildOptions
	DepsPath      string
	ExtraLines    []string
}

var inlineDefine = regexp.MustCompile(`-D[^=]+=\S+`)

// Synthesize resolves every catalog entry for the requested build cell.
func Synthesize(cat *catalog.Catalog, req Request, logger *log.Logger) (*Plan, error) {
	disabled := disabledSet(cat, req)

	plan := &Plan{Sidecars: map[string][]byte{}}
	primaries := map[string]struct{}{}
	extraCFlags := map[string][]string{}
	var setupLines []string
	var variantRules []string

	for _, name := range cat.Names() {
		if _, off := disabled[name]; off {
			continue
		}
		spec, _ := cat.Get(name)

		if spec.ConfigCOnly || setupEnabled(spec, req) {
			plan.Directives = append(plan.Directives, Directive{
				Owner:       name,
				Variant:     setupfile.DefaultVariant,
				Passthrough: true,
				ConfigCOnly: spec.ConfigCOnly,
				BuildMode:   spec.BuildMode,
			})
			continue
		}
		text, err := renderDirective(name, spec, req)
		if err != nil {
			return nil, err
		}
		text, err = extractInlineDefines(name, text, extraCFlags)
		if err != nil {
			return nil, err
		}
		line, ok := setupfile.ParseLine(text)
		if !ok {
			return nil, errors.Wrap(fmt.Errorf("module %s: synthesized empty directive", name), errors.CategoryInternalFailure, "empty_directive", "")
		}
		primaries[name] = struct{}{}
		setupLines = append(setupLines, text)
		plan.Directives = append(plan.Directives, Directive{
			Owner:      name,
			Variant:    setupfile.DefaultVariant,
			Text:       text,
			Sources:    line.Sources,
			Objects:    line.Objects,
			Defines:    line.Defines,
			Links:      line.Links,
			Frameworks: line.Frameworks,
			Archives:   line.Archives,
			BuildMode:  spec.BuildMode,
		})
	}

	for _, raw := range req.ExtraLines {
		line, ok := setupfile.ParseLine(raw)
		if !ok {
			continue
		}
		if _, off := disabled[line.Extension]; off {
			logger.Debug("skipping extra directive for disabled module", "module", line.Extension)
			continue
		}
		if _, taken := primaries[line.Extension]; taken {
			rules, err := variantBuildRules(line, req)
			if err != nil {
				return nil, err
			}
			variantRules = append(variantRules, rules...)
			sidecar := "VARIANT-" + line.Extension + "-" + line.Variant + ".data"
			plan.Sidecars[sidecar] = []byte(line.Render() + "\n")
			plan.Directives = append(plan.Directives, Directive{
				Owner:      line.Extension,
				Variant:    line.Variant,
				Text:       line.Render(),
				Sources:    line.Sources,
				Objects:    variantObjects(line),
				Defines:    line.Defines,
				Links:      line.Links,
				Frameworks: line.Frameworks,
				Archives:   line.Archives,
				BuildMode:  extensions.BuildModeShared,
			})
			continue
		}
		text, err := extractInlineDefines(line.Extension, line.Render(), extraCFlags)
		if err != nil {
			return nil, err
		}
		parsed, _ := setupfile.ParseLine(text)
		primaries[line.Extension] = struct{}{}
		setupLines = append(setupLines, text)
		plan.Directives = append(plan.Directives, Directive{
			Owner:      line.Extension,
			Variant:    line.Variant,
			Text:       text,
			Sources:    parsed.Sources,
			Objects:    parsed.Objects,
			Defines:    parsed.Defines,
			Links:      parsed.Links,
			Frameworks: parsed.Frameworks,
			Archives:   parsed.Archives,
			BuildMode:  extensions.BuildModeStatic,
		})
	}

	plan.Disabled = sortedNames(disabled)
	plan.SetupLocal = renderSetupLocal(setupLines, plan.Disabled)
	plan.MakeExtra = renderMakeExtra(extraCFlags, variantRules)
	logger.Info("synthesized directives",
		"triple", req.Triple,
		"directives", len(plan.Directives),
		"disabled", len(plan.Disabled),
		"sidecars", len(plan.Sidecars))
	return plan, nil
}

func disabledSet(cat *catalog.Catalog, req Request) map[string]struct{} {
	disabled := map[string]struct{}{}
	debug := req.Options.Has("debug")
	for _, name := range cat.Names() {
		spec, _ := cat.Get(name)
		switch {
		case spec.MinimumPythonVersion != "" && !targets.MeetsMinimum(req.PythonVersion, spec.MinimumPythonVersion):
			disabled[name] = struct{}{}
		case spec.MaximumPythonVersion != "" && !targets.MeetsMaximum(req.PythonVersion, spec.MaximumPythonVersion):
			disabled[name] = struct{}{}
		case len(spec.DisabledTargets) > 0 && targets.MatchesAnyTarget(req.Triple, spec.DisabledTargets):
			disabled[name] = struct{}{}
		case len(spec.RequiredTargets) > 0 && !targets.MatchesAnyTarget(req.Triple, spec.RequiredTargets):
			disabled[name] = struct{}{}
		default:
			if _, off := debugDisabled[name]; off && debug {
				disabled[name] = struct{}{}
			}
		}
	}
	return disabled
}

func setupEnabled(spec extensions.ModuleSpec, req Request) bool {
	if spec.SetupEnabled {
		return true
	}
	for _, enable := range spec.SetupEnabledConditional {
		if len(enable.Targets) > 0 && !targets.MatchesAnyTarget(req.Triple, enable.Targets) {
			continue
		}
		if enable.MinimumPythonVersion != "" && !targets.MeetsMinimum(req.PythonVersion, enable.MinimumPythonVersion) {
			continue
		}
		return true
	}
	return false
}

func renderDirective(name string, spec extensions.ModuleSpec, req Request) (string, error) {
	apple := targets.IsApple(req.Triple)
	tokens := []string{name}

	tokens = append(tokens, spec.Sources...)
	for _, source := range spec.SourcesConditional {
		if len(source.Targets) > 0 && !targets.MatchesAnyTarget(req.Triple, source.Targets) {
			continue
		}
		if source.MinimumPythonVersion != "" && !targets.MeetsMinimum(req.PythonVersion, source.MinimumPythonVersion) {
			continue
		}
		if source.MaximumPythonVersion != "" && !targets.MeetsMaximum(req.PythonVersion, source.MaximumPythonVersion) {
			continue
		}
		tokens = append(tokens, source.Source)
	}

	for _, define := range spec.Defines {
		tokens = append(tokens, "-D"+define)
	}
	for _, define := range spec.DefinesConditional {
		if len(define.Targets) > 0 && !targets.MatchesAnyTarget(req.Triple, define.Targets) {
			continue
		}
		if define.MinimumPythonVersion != "" && !targets.MeetsMinimum(req.PythonVersion, define.MinimumPythonVersion) {
			continue
		}
		tokens = append(tokens, "-D"+define.Define)
	}

	for _, include := range spec.Includes {
		tokens = append(tokens, "-I"+include)
	}
	for _, include := range spec.IncludesConditional {
		if len(include.Targets) > 0 && !targets.MatchesAnyTarget(req.Triple, include.Targets) {
			continue
		}
		tokens = append(tokens, "-I"+include.Path)
	}
	// Apple sysroots already carry the dependency headers on the global
	// search path; duplicating them breaks SDK header resolution.
	if !apple {
		for _, include := range spec.IncludesDeps {
			tokens = append(tokens, "-I"+req.DepsPath+"/"+include)
		}
	}

	for _, link := range spec.Links {
		tokens = append(tokens, linkTokens(link, apple)...)
	}
	for _, link := range spec.LinksConditional {
		if len(link.Targets) > 0 && !targets.MatchesAnyTarget(req.Triple, link.Targets) {
			continue
		}
		tokens = append(tokens, linkTokens(link.Name, apple)...)
	}

	if apple {
		for _, framework := range spec.Frameworks {
			tokens = append(tokens, "-framework", framework)
		}
	}

	for _, linker := range spec.LinkerArgs {
		if !targets.MatchesAnyTarget(req.Triple, linker.Targets) {
			continue
		}
		tokens = append(tokens, linker.Args...)
	}

	return strings.Join(tokens, " "), nil
}

// linkTokens renders one link library reference. Static archive paths pass
// through verbatim. Apple linking uses the hidden form so the symbol is not
// re-exported from the final binary; Apple targets have no equivalent of a
// linker version script.
func linkTokens(name string, apple bool) []string {
	if strings.HasSuffix(name, ".a") {
		return []string{name}
	}
	if apple {
		return []string{"-Xlinker", "-hidden-l" + name}
	}
	return []string{"-l" + name}
}

// extractInlineDefines moves -Dname=value tokens out of the directive text
// into per-object make rules. The native makesetup tool treats any "=" in a
// directive as a variable assignment, so a define with a value cannot
// survive inline.
func extractInlineDefines(name, text string, extraCFlags map[string][]string) (string, error) {
	matches := inlineDefine.FindAllString(text, -1)
	if len(matches) > 0 {
		var sources []string
		for _, word := range strings.Fields(text) {
			if strings.HasSuffix(word, ".c") {
				sources = append(sources, word)
			}
		}
		for _, match := range matches {
			for _, source := range sources {
				obj := setupfile.ObjectPath(source)
				extraCFlags[obj] = append(extraCFlags[obj], match)
			}
		}
		text = inlineDefine.ReplaceAllString(text, "")
		text = strings.Join(strings.Fields(text), " ")
	}
	if strings.Contains(text, "=") {
		return "", errors.Wrap(
			fmt.Errorf("module %s: %q contains '=' after define extraction", name, text),
			errors.CategoryMalformedDirective, "directive_equals",
			"makesetup parses '=' as a variable assignment; move the value into a -Dname=value define or a make rule")
	}
	return text, nil
}

// variantObjects names a variant's compiled objects. Module plus variant
// plus source stem uniquely identifies each object so variant builds never
// collide with the primary build of the same sources.
func variantObjects(line *setupfile.Line) []string {
	objs := make([]string, 0, len(line.Sources))
	for _, source := range line.Sources {
		stem := strings.TrimSuffix(setupfile.ObjectPath(source), ".o")
		stem = strings.TrimPrefix(stem, "Modules/")
		objs = append(objs, "Modules/"+line.Extension+"-"+line.Variant+"-"+stem+".o")
	}
	return objs
}

// variantBuildRules emits make rules compiling and linking a non-primary
// variant. The link rule is skipped on fully static targets: a loadable
// module cannot be produced there, though the sidecar recording the variant
// is still written.
func variantBuildRules(line *setupfile.Line, req Request) ([]string, error) {
	objs := variantObjects(line)
	var rules []string
	for i, source := range line.Sources {
		rules = append(rules,
			fmt.Sprintf("%s: $(srcdir)/Modules/%s\n\t$(CC) $(PY_STDMODULE_CFLAGS) -c $(srcdir)/Modules/%s -o $@", objs[i], source, source))
	}
	if targets.IsMusl(req.Triple) {
		return rules, nil
	}
	linkFlags := make([]string, 0, len(line.Links))
	for _, name := range line.Links {
		linkFlags = append(linkFlags, linkTokens(name, targets.IsApple(req.Triple))...)
	}
	target := fmt.Sprintf("Modules/%s-%s$(EXT_SUFFIX)", line.Extension, line.Variant)
	rule := fmt.Sprintf("%s: %s\n\t$(BLDSHARED) %s %s -o $@",
		target, strings.Join(objs, " "), strings.Join(objs, " "), strings.Join(linkFlags, " "))
	rules = append(rules, strings.TrimRight(rule, " "))
	return rules, nil
}

func renderSetupLocal(lines, disabled []string) []byte {
	var b strings.Builder
	b.WriteString(setupfile.SectionStatic + "\n")
	for _, line := range lines {
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + setupfile.SectionDisabled + "\n")
	for _, name := range disabled {
		b.WriteString(name + "\n")
	}
	return []byte(b.String())
}

func renderMakeExtra(extraCFlags map[string][]string, variantRules []string) []byte {
	var b strings.Builder
	for _, obj := range sortedKeys(extraCFlags) {
		b.WriteString(obj + ": PY_STDMODULE_CFLAGS += " + strings.Join(extraCFlags[obj], " ") + "\n")
	}
	for _, rule := range variantRules {
		b.WriteString(rule + "\n")
	}
	return []byte(b.String())
}

func sortedNames(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
