package targets

import (
	"fmt"
	"sort"
	"strings"
)

// knownBuildOptions is the closed set of independent build flags a build
// cell may combine with "+".
var knownBuildOptions = map[string]struct{}{
	"debug":        {},
	"noopt":        {},
	"pgo":          {},
	"lto":          {},
	"freethreaded": {},
}

// BuildOptions is an immutable set of build flags for one build cell.
type BuildOptions struct {
	flags map[string]struct{}
}

// ParseBuildOptions parses a "+"-joined flag string such as "debug+lto".
// An empty string yields an empty set. Unknown flags are an error; the
// option string names a build cell and a typo would silently select the
// wrong conditional entries.
func ParseBuildOptions(value string) (BuildOptions, error) {
	options := BuildOptions{flags: map[string]struct{}{}}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return options, nil
	}
	for _, flag := range strings.Split(trimmed, "+") {
		flag = strings.TrimSpace(flag)
		if flag == "" {
			return BuildOptions{}, fmt.Errorf("empty build option in %q", value)
		}
		if _, ok := knownBuildOptions[flag]; !ok {
			return BuildOptions{}, fmt.Errorf("unknown build option %q", flag)
		}
		options.flags[flag] = struct{}{}
	}
	return options, nil
}

// Has reports whether the named flag is set.
func (o BuildOptions) Has(flag string) bool {
	_, ok := o.flags[flag]
	return ok
}

// String renders the set in sorted "+"-joined form, suitable for the
// build_options manifest field.
func (o BuildOptions) String() string {
	if len(o.flags) == 0 {
		return ""
	}
	flags := make([]string, 0, len(o.flags))
	for flag := range o.flags {
		flags = append(flags, flag)
	}
	sort.Strings(flags)
	return strings.Join(flags, "+")
}
