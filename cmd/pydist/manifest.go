package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pydist/pydist/core/catalog"
	"github.com/pydist/pydist/core/drift"
	"github.com/pydist/pydist/core/fsx"
	"github.com/pydist/pydist/core/manifest"
	"github.com/pydist/pydist/core/schema/v1/distribution"
	"github.com/pydist/pydist/core/setupfile"
	"github.com/pydist/pydist/core/synth"
	"github.com/pydist/pydist/core/targets"
)

type manifestOutput struct {
	OK            bool   `json:"ok"`
	Manifest      string `json:"manifest,omitempty"`
	Extensions    int    `json:"extensions,omitempty"`
	Error         string `json:"error,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
	ErrorCategory string `json:"error_category,omitempty"`
	Hint          string `json:"hint,omitempty"`
}

var manifestValueFlags = map[string]bool{
	"catalog": true, "setup": true, "config-c": true, "triple": true,
	"python-version": true, "options": true, "deps-path": true,
	"extra-modules": true, "artifacts": true, "build-vars": true,
	"out": true, "check": true,
}

func runManifest(arguments []string) int {
	flagSet := flag.NewFlagSet("manifest", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var catalogPath string
	var setupPath string
	var configCPath string
	var triple string
	var pythonVersion string
	var optionsValue string
	var depsPath string
	var extraModulesPath string
	var artifactsPath string
	var buildVarsPath string
	var outPath string
	var checkPath string
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
	flagSet.StringVar(&artifactsPath, "artifacts", "", "build artifact tar or directory")
	flagSet.StringVar(&buildVarsPath, "build-vars", "", "build variables document (json)")
	flagSet.StringVar(&outPath, "out", "", "manifest output path")
	flagSet.StringVar(&checkPath, "check", "", "validate an existing manifest instead of building one")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&verbose, "verbose", false, "verbose logging")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	if err := flagSet.Parse(reorderInterspersedFlags(arguments, manifestValueFlags)); err != nil {
		return writeManifestOutput(jsonOutput, manifestOutput{OK: false, Error: err.Error()}, exitInvalidInput)
	}
	if helpFlag {
		fmt.Println(`pydist manifest scans build artifacts and emits the distribution manifest.

usage:
  pydist manifest --catalog <yml> --setup <file> --config-c <file> \
      --artifacts <tar|dir> --build-vars <json> \
      --triple <t> --python-version <v> --out <file> \
      [--options debug+lto] [--deps-path <dir>] [--extra-modules <file>] [--json] [--verbose]
  pydist manifest --check <file> [--json]`)
		return exitOK
	}
	if len(flagSet.Args()) > 0 {
		return writeManifestOutput(jsonOutput, manifestOutput{
			OK:    false,
			Error: "unexpected positional arguments",
		}, exitInvalidInput)
	}

	if strings.TrimSpace(checkPath) != "" {
		return runManifestCheck(checkPath, jsonOutput)
	}

	for name, value := range map[string]string{
		"--catalog": catalogPath, "--setup": setupPath, "--config-c": configCPath,
		"--triple": triple, "--python-version": pythonVersion,
		"--artifacts": artifactsPath, "--build-vars": buildVarsPath, "--out": outPath,
	} {
		if strings.TrimSpace(value) == "" {
			return writeManifestOutput(jsonOutput, manifestOutput{
				OK:    false,
				Error: "missing required " + name,
			}, exitInvalidInput)
		}
	}

	logger := newLogger(verbose)

	options, err := targets.ParseBuildOptions(optionsValue)
	if err != nil {
		return writeFailedManifest(jsonOutput, err, exitInvalidInput)
	}
	cat, err := catalog.LoadFile(catalogPath)
	if err != nil {
		return writeFailedManifest(jsonOutput, err, exitInvalidInput)
	}
	setupData, err := os.ReadFile(setupPath)
	if err != nil {
		return writeFailedManifest(jsonOutput, err, exitInternalFailure)
	}
	configCData, err := os.ReadFile(configCPath)
	if err != nil {
		return writeFailedManifest(jsonOutput, err, exitInternalFailure)
	}
	if err := drift.Check(cat, setupData, string(configCData)); err != nil {
		return writeFailedManifest(jsonOutput, err, exitVerifyFailed)
	}

	extraLines, err := readExtraModules(extraModulesPath)
	if err != nil {
		return writeFailedManifest(jsonOutput, err, exitInternalFailure)
	}
	plan, err := synth.Synthesize(cat, synth.Request{
		Triple:        triple,
		PythonVersion: pythonVersion,
		Options:       options,
		DepsPath:      depsPath,
		ExtraLines:    extraLines,
	}, logger)
	if err != nil {
		return writeFailedManifest(jsonOutput, err, exitVerifyFailed)
	}

	nativeFile, err := setupfile.ParseFile(setupData)
	if err != nil {
		return writeFailedManifest(jsonOutput, err, exitVerifyFailed)
	}
	inittab, err := setupfile.ParseConfigC(string(configCData))
	if err != nil {
		return writeFailedManifest(jsonOutput, err, exitVerifyFailed)
	}
	tree, err := loadArtifactTree(artifactsPath)
	if err != nil {
		return writeFailedManifest(jsonOutput, err, exitVerifyFailed)
	}
	vars, err := manifest.LoadBuildVarsFile(buildVarsPath)
	if err != nil {
		return writeFailedManifest(jsonOutput, err, exitInvalidInput)
	}

	nativeLines := make([]*setupfile.Line, 0, len(nativeFile.Static)+len(nativeFile.Shared))
	nativeLines = append(nativeLines, nativeFile.Static...)
	nativeLines = append(nativeLines, nativeFile.Shared...)

	built, err := manifest.Build(manifest.Request{
		Triple:        triple,
		PythonVersion: pythonVersion,
		Options:       options,
		Tree:          tree,
		Directives:    plan.Directives,
		NativeLines:   nativeLines,
		Inittab:       inittab,
		Vars:          vars,
	}, logger)
	if err != nil {
		return writeFailedManifest(jsonOutput, err, exitVerifyFailed)
	}
	if err := manifest.Validate(built); err != nil {
		return writeFailedManifest(jsonOutput, err, exitVerifyFailed)
	}
	encoded, err := manifest.Encode(built)
	if err != nil {
		return writeFailedManifest(jsonOutput, err, exitInternalFailure)
	}
	if err := fsx.WriteFileAtomic(outPath, encoded, 0o644); err != nil {
		return writeFailedManifest(jsonOutput, err, exitInternalFailure)
	}

	return writeManifestOutput(jsonOutput, manifestOutput{
		OK:         true,
		Manifest:   outPath,
		Extensions: len(built.BuildInfo.Extensions),
	}, exitOK)
}

// runManifestCheck re-validates an existing manifest document without
// rebuilding it.
func runManifestCheck(path string, jsonOutput bool) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return writeFailedManifest(jsonOutput, err, exitInternalFailure)
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	var doc distribution.Manifest
	if err := decoder.Decode(&doc); err != nil {
		return writeManifestOutput(jsonOutput, manifestOutput{
			OK:    false,
			Error: "malformed manifest: " + err.Error(),
		}, exitInvalidInput)
	}
	if _, err := decoder.Token(); err != io.EOF {
		return writeManifestOutput(jsonOutput, manifestOutput{
			OK:    false,
			Error: "malformed manifest: trailing data after document",
		}, exitInvalidInput)
	}
	if err := manifest.Validate(&doc); err != nil {
		return writeFailedManifest(jsonOutput, err, exitVerifyFailed)
	}
	return writeManifestOutput(jsonOutput, manifestOutput{
		OK:         true,
		Manifest:   path,
		Extensions: len(doc.BuildInfo.Extensions),
	}, exitOK)
}

// loadArtifactTree accepts either an artifact tar or an unpacked directory.
func loadArtifactTree(path string) (*manifest.ArtifactTree, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return manifest.TreeFromDirectory(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return manifest.TreeFromTar(data)
}

func writeFailedManifest(jsonOutput bool, err error, fallbackExit int) int {
	code, category, hint := errorFields(err)
	return writeManifestOutput(jsonOutput, manifestOutput{
		OK:            false,
		Error:         err.Error(),
		ErrorCode:     code,
		ErrorCategory: category,
		Hint:          hint,
	}, exitCodeForError(err, fallbackExit))
}

func writeManifestOutput(jsonOutput bool, output manifestOutput, exitCode int) int {
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	if output.Error != "" {
		fmt.Fprintln(os.Stderr, "manifest failed:", output.Error)
		return exitCode
	}
	fmt.Printf("wrote %s (%d extensions)\n", output.Manifest, output.Extensions)
	return exitCode
}
