// Package setupfile implements the legacy native build-directive grammar: a
// whitespace-tokenized line format with "#" comments and three section
// markers, plus the fixed-format init-table found in the native config
// source. Everything this subsystem writes back into that grammar must parse
// with the same tokenizer, so parsing and rendering live side by side here.
package setupfile

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/pydist/pydist/core/errors"
)

// Section markers recognized by the native makesetup tool.
const (
	SectionStatic   = "*static*"
	SectionShared   = "*shared*"
	SectionDisabled = "*disabled*"
)

// variantPrefix tags a directive as a non-primary build of its extension.
// The token is grammar-local: it is stripped before any text is handed to
// the native build and never appears in rendered output.
const variantPrefix = "VARIANT="

// DefaultVariant tags the primary build of an extension.
const DefaultVariant = "default"

// Line is one parsed directive. Tokens holds every word after the extension
// name except the variant tag, in original order, so Render reproduces the
// directive exactly as the native grammar would consume it.
type Line struct {
	Extension  string
	Variant    string
	Tokens     []string
	Sources    []string
	Objects    []string
	Defines    []string
	Includes   []string
	Links      []string
	Frameworks []string
	Archives   []string
}

// ObjectPath maps a C source file to its compiled object path. Parent
// directories are stripped: the native build flattens all extension objects
// into one directory.
func ObjectPath(source string) string {
	stem := strings.TrimSuffix(path.Base(source), ".c")
	return "Modules/" + stem + ".o"
}

// ParseLine parses one directive. It returns false for blank lines, pure
// comments, and section markers.
func ParseLine(raw string) (*Line, bool) {
	if idx := strings.IndexByte(raw, '#'); idx >= 0 {
		raw = raw[:idx]
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	words := strings.Fields(raw)
	if strings.HasPrefix(words[0], "*") && strings.HasSuffix(words[0], "*") {
		return nil, false
	}

	line := &Line{
		Extension: words[0],
		Variant:   DefaultVariant,
	}
	rest := words[1:]
	for i := 0; i < len(rest); i++ {
		word := rest[i]
		if strings.HasPrefix(word, variantPrefix) {
			if tag := word[len(variantPrefix):]; tag != "" {
				line.Variant = tag
			}
			continue
		}
		line.Tokens = append(line.Tokens, word)
		switch {
		case strings.HasSuffix(word, ".c"):
			line.Sources = append(line.Sources, word)
			line.Objects = append(line.Objects, ObjectPath(word))
		case strings.HasSuffix(word, ".a"):
			line.Archives = append(line.Archives, word)
		case strings.HasPrefix(word, "-l"):
			line.Links = append(line.Links, word[2:])
		case strings.HasPrefix(word, "-hidden-l"):
			// Apple hidden-link form; the library is a link dependency even
			// though its symbols are not re-exported.
			line.Links = append(line.Links, word[len("-hidden-l"):])
		case strings.HasPrefix(word, "-D"):
			line.Defines = append(line.Defines, word)
		case strings.HasPrefix(word, "-I"):
			line.Includes = append(line.Includes, word[2:])
		case word == "-framework":
			if i+1 < len(rest) {
				line.Frameworks = append(line.Frameworks, rest[i+1])
				line.Tokens = append(line.Tokens, rest[i+1])
				i++
			}
		}
	}
	return line, true
}

// Render reproduces the directive in grammar form. Re-parsing the result
// yields the same source, define, and link sets.
func (l *Line) Render() string {
	if len(l.Tokens) == 0 {
		return l.Extension
	}
	return l.Extension + " " + strings.Join(l.Tokens, " ")
}

// File is the parsed view of a full directive document.
type File struct {
	Static   []*Line
	Shared   []*Line
	Disabled []string
}

// ParseFile splits a directive document into its three sections. Lines
// before the first marker belong to the static section, matching the
// native tool's default.
func ParseFile(data []byte) (*File, error) {
	parsed := &File{}
	section := SectionStatic
	for _, raw := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(raw)
		switch trimmed {
		case SectionStatic, SectionShared, SectionDisabled:
			section = trimmed
			continue
		}
		if section == SectionDisabled {
			if idx := strings.IndexByte(trimmed, '#'); idx >= 0 {
				trimmed = strings.TrimSpace(trimmed[:idx])
			}
			if trimmed != "" {
				parsed.Disabled = append(parsed.Disabled, trimmed)
			}
			continue
		}
		line, ok := ParseLine(raw)
		if !ok {
			continue
		}
		switch section {
		case SectionStatic:
			parsed.Static = append(parsed.Static, line)
		case SectionShared:
			parsed.Shared = append(parsed.Shared, line)
		}
	}
	return parsed, nil
}

// EnabledNames returns every extension name declared in the static or
// shared sections.
func (f *File) EnabledNames() map[string]struct{} {
	names := make(map[string]struct{}, len(f.Static)+len(f.Shared))
	for _, line := range f.Static {
		names[line.Extension] = struct{}{}
	}
	for _, line := range f.Shared {
		names[line.Extension] = struct{}{}
	}
	return names
}

var inittabEntry = regexp.MustCompile(`\{"([^"]+)", ([^}]+)\},`)

// ParseConfigC extracts the module-name to init-function mapping from the
// native config source. Only the init table between the struct declaration
// and its sentinel row is read; preprocessor conditionals inside the table
// are ignored because their conditions always hold in this build.
func ParseConfigC(data string) (map[string]string, error) {
	table := map[string]string{}
	seenInittab := false
	for _, line := range strings.Split(data, "\n") {
		if strings.HasPrefix(line, "struct _inittab") {
			seenInittab = true
		}
		if !seenInittab {
			continue
		}
		if strings.Contains(line, "/* Sentinel */") {
			return table, nil
		}
		if m := inittabEntry.FindStringSubmatch(line); m != nil {
			table[m[1]] = strings.TrimSpace(m[2])
		}
	}
	if !seenInittab {
		return nil, errors.Wrap(fmt.Errorf("no _inittab table found"), errors.CategoryInvalidInput, "config_c_parse", "the native config source does not contain an init table")
	}
	return table, nil
}
