package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pydist/pydist/core/catalog"
	"github.com/pydist/pydist/core/drift"
	"github.com/pydist/pydist/core/fsx"
	"github.com/pydist/pydist/core/synth"
	"github.com/pydist/pydist/core/targets"
)

type synthesizeOutput struct {
	OK            bool     `json:"ok"`
	SetupLocal    string   `json:"setup_local,omitempty"`
	MakefileExtra string   `json:"makefile_extra,omitempty"`
	Sidecars      []string `json:"sidecars,omitempty"`
	Directives    int      `json:"directives,omitempty"`
	Disabled      []string `json:"disabled,omitempty"`
	Error         string   `json:"error,omitempty"`
	ErrorCode     string   `json:"error_code,omitempty"`
	ErrorCategory string   `json:"error_category,omitempty"`
	Hint          string   `json:"hint,omitempty"`
}

var synthesizeValueFlags = map[string]bool{
	"catalog": true, "setup": true, "config-c": true, "triple": true,
	"python-version": true, "options": true, "deps-path": true,
	"extra-modules": true, "out": true,
}

func runSynthesize(arguments []string) int {
	flagSet := flag.NewFlagSet("synthesize", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var catalogPath string
	var setupPath string
	var configCPath string
	var triple string
	var pythonVersion string
	var optionsValue string
	var depsPath string
	var extraModulesPath string
	var outDir string
	var jsonOutput bool
	var verbose bool
	var helpFlag bool

	flagSet.StringVar(&catalogPath, "catalog", "", "extension module catalog (yaml)")
	flagSet.StringVar(&setupPath, "setup", "", "native directive file")
	flagSet.StringVar(&configCPath, "config-c", "", "native init-table source")
	flagSet.StringVar(&triple, "triple", "", "target triple")
	flagSet.StringVar(&pythonVersion, "python-version", "", "runtime version being built")
	flagSet.StringVar(&optionsValue, "options", "", "build options, e.g. debug+lto")
	flagSet.StringVar(&depsPath, "deps-path", "/tools/deps", "toolchain dependency prefix")
	flagSet.StringVar(&extraModulesPath, "extra-modules", "", "extra directives file (optional)")
	flagSet.StringVar(&outDir, "out", "", "output directory")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&verbose, "verbose", false, "verbose logging")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	if err := flagSet.Parse(reorderInterspersedFlags(arguments, synthesizeValueFlags)); err != nil {
		return writeSynthesizeOutput(jsonOutput, synthesizeOutput{OK: false, Error: err.Error()}, exitInvalidInput)
	}
	if helpFlag {
		printSynthesizeUsage()
		return exitOK
	}
	if len(flagSet.Args()) > 0 {
		return writeSynthesizeOutput(jsonOutput, synthesizeOutput{
			OK:    false,
			Error: "unexpected positional arguments",
		}, exitInvalidInput)
	}
	for name, value := range map[string]string{
		"--catalog": catalogPath, "--setup": setupPath, "--config-c": configCPath,
		"--triple": triple, "--python-version": pythonVersion, "--out": outDir,
	} {
		if strings.TrimSpace(value) == "" {
			return writeSynthesizeOutput(jsonOutput, synthesizeOutput{
				OK:    false,
				Error: "missing required " + name,
			}, exitInvalidInput)
		}
	}

	logger := newLogger(verbose)

	options, err := targets.ParseBuildOptions(optionsValue)
	if err != nil {
		return writeFailedSynthesize(jsonOutput, err, exitInvalidInput)
	}
	cat, err := catalog.LoadFile(catalogPath)
	if err != nil {
		return writeFailedSynthesize(jsonOutput, err, exitInvalidInput)
	}
	setupData, err := os.ReadFile(setupPath)
	if err != nil {
		return writeFailedSynthesize(jsonOutput, err, exitInternalFailure)
	}
	configCData, err := os.ReadFile(configCPath)
	if err != nil {
		return writeFailedSynthesize(jsonOutput, err, exitInternalFailure)
	}
	if err := drift.Check(cat, setupData, string(configCData)); err != nil {
		return writeFailedSynthesize(jsonOutput, err, exitVerifyFailed)
	}

	extraLines, err := readExtraModules(extraModulesPath)
	if err != nil {
		return writeFailedSynthesize(jsonOutput, err, exitInternalFailure)
	}

	plan, err := synth.Synthesize(cat, synth.Request{
		Triple:        triple,
		PythonVersion: pythonVersion,
		Options:       options,
		DepsPath:      depsPath,
		ExtraLines:    extraLines,
	}, logger)
	if err != nil {
		return writeFailedSynthesize(jsonOutput, err, exitVerifyFailed)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return writeFailedSynthesize(jsonOutput, err, exitInternalFailure)
	}
	setupLocalPath := filepath.Join(outDir, "Setup.local")
	makeExtraPath := filepath.Join(outDir, "Makefile.extra")
	if _, err := fsx.WriteFileIfDifferent(setupLocalPath, plan.SetupLocal, 0o644); err != nil {
		return writeFailedSynthesize(jsonOutput, err, exitInternalFailure)
	}
	if _, err := fsx.WriteFileIfDifferent(makeExtraPath, plan.MakeExtra, 0o644); err != nil {
		return writeFailedSynthesize(jsonOutput, err, exitInternalFailure)
	}
	sidecars := make([]string, 0, len(plan.Sidecars))
	for name := range plan.Sidecars {
		sidecars = append(sidecars, name)
	}
	sort.Strings(sidecars)
	for _, name := range sidecars {
		if _, err := fsx.WriteFileIfDifferent(filepath.Join(outDir, name), plan.Sidecars[name], 0o644); err != nil {
			return writeFailedSynthesize(jsonOutput, err, exitInternalFailure)
		}
	}

	return writeSynthesizeOutput(jsonOutput, synthesizeOutput{
		OK:            true,
		SetupLocal:    setupLocalPath,
		MakefileExtra: makeExtraPath,
		Sidecars:      sidecars,
		Directives:    len(plan.Directives),
		Disabled:      plan.Disabled,
	}, exitOK)
}

func printSynthesizeUsage() {
	fmt.Println(`pydist synthesize resolves the catalog into Setup.local and Makefile.extra.

usage:
  pydist synthesize --catalog <yml> --setup <file> --config-c <file> \
      --triple <t> --python-version <v> --out <dir> \
      [--options debug+lto] [--deps-path <dir>] [--extra-modules <file>] [--json] [--verbose]`)
}

// readExtraModules reads additional legacy directives, skipping comments
// and blanks.
func readExtraModules(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lines = append(lines, trimmed)
	}
	return lines, nil
}

func writeFailedSynthesize(jsonOutput bool, err error, fallbackExit int) int {
	code, category, hint := errorFields(err)
	return writeSynthesizeOutput(jsonOutput, synthesizeOutput{
		OK:            false,
		Error:         err.Error(),
		ErrorCode:     code,
		ErrorCategory: category,
		Hint:          hint,
	}, exitCodeForError(err, fallbackExit))
}

func writeSynthesizeOutput(jsonOutput bool, output synthesizeOutput, exitCode int) int {
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	if output.Error != "" {
		fmt.Fprintln(os.Stderr, "synthesize failed:", output.Error)
		return exitCode
	}
	fmt.Println("wrote", output.SetupLocal)
	fmt.Println("wrote", output.MakefileExtra)
	for _, sidecar := range output.Sidecars {
		fmt.Println("wrote sidecar", sidecar)
	}
	return exitCode
}
