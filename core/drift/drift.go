// Package drift reconciles the catalog against the runtime's own native
// configuration. It is the only place allowed to treat metadata drift as
// fatal: it runs before synthesis, and nothing downstream re-checks.
package drift

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pydist/pydist/core/catalog"
	"github.com/pydist/pydist/core/errors"
	"github.com/pydist/pydist/core/setupfile"
)

// Check computes three independent set differences between the catalog and
// the native configuration documents. Any non-empty difference aborts with
// a config_drift error naming every offending module.
func Check(cat *catalog.Catalog, setupData []byte, configCData string) error {
	parsed, err := setupfile.ParseFile(setupData)
	if err != nil {
		return err
	}
	inittab, err := setupfile.ParseConfigC(configCData)
	if err != nil {
		return err
	}

	enabled := parsed.EnabledNames()

	var undeclared []string
	for name := range enabled {
		if _, ok := cat.Get(name); !ok {
			undeclared = append(undeclared, name)
		}
	}
	for _, name := range parsed.Disabled {
		if _, ok := cat.Get(name); !ok {
			undeclared = append(undeclared, name)
		}
	}
	for name := range inittab {
		if _, ok := cat.Get(name); !ok {
			undeclared = append(undeclared, name)
		}
	}

	var setupMismatch []string
	var inittabMismatch []string
	for _, name := range cat.Names() {
		spec, _ := cat.Get(name)
		_, isEnabled := enabled[name]
		if hasSetupEnabled(spec.SetupEnabled, len(spec.SetupEnabledConditional)) != isEnabled {
			setupMismatch = append(setupMismatch, name)
		}
		_, inTable := inittab[name]
		if spec.ConfigCOnly != inTable {
			inittabMismatch = append(inittabMismatch, name)
		}
	}

	var problems []string
	if len(undeclared) > 0 {
		sort.Strings(undeclared)
		problems = append(problems, fmt.Sprintf("native files declare modules with no catalog entry: %s", strings.Join(undeclared, ", ")))
	}
	if len(setupMismatch) > 0 {
		sort.Strings(setupMismatch)
		problems = append(problems, fmt.Sprintf("setup-enabled flag disagrees with the native directive file: %s", strings.Join(setupMismatch, ", ")))
	}
	if len(inittabMismatch) > 0 {
		sort.Strings(inittabMismatch)
		problems = append(problems, fmt.Sprintf("config-c-only flag disagrees with the native init table: %s", strings.Join(inittabMismatch, ", ")))
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.Wrap(
		fmt.Errorf("catalog drift: %s", strings.Join(problems, "; ")),
		errors.CategoryConfigDrift, "native_config_drift",
		"update the catalog or the native configuration so both agree before building")
}

func hasSetupEnabled(unconditional bool, conditionalCount int) bool {
	return unconditional || conditionalCount > 0
}
