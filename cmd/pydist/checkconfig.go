package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pydist/pydist/core/catalog"
	"github.com/pydist/pydist/core/drift"
)

type checkConfigOutput struct {
	OK            bool   `json:"ok"`
	Modules       int    `json:"modules,omitempty"`
	Error         string `json:"error,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
	ErrorCategory string `json:"error_category,omitempty"`
	Hint          string `json:"hint,omitempty"`
}

var checkConfigValueFlags = map[string]bool{
	"catalog": true, "setup": true, "config-c": true,
}

func runCheckConfig(arguments []string) int {
	flagSet := flag.NewFlagSet("check-config", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var catalogPath string
	var setupPath string
	var configCPath string
	var jsonOutput bool
	var helpFlag bool

	flagSet.StringVar(&catalogPath, "catalog", "", "extension module catalog (yaml)")
	flagSet.StringVar(&setupPath, "setup", "", "native directive file")
	flagSet.StringVar(&configCPath, "config-c", "", "native init-table source")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	if err := flagSet.Parse(reorderInterspersedFlags(arguments, checkConfigValueFlags)); err != nil {
		return writeCheckConfigOutput(jsonOutput, checkConfigOutput{OK: false, Error: err.Error()}, exitInvalidInput)
	}
	if helpFlag {
		fmt.Println(`pydist check-config reconciles the catalog against the native configuration.

usage:
  pydist check-config --catalog <yml> --setup <file> --config-c <file> [--json]`)
		return exitOK
	}
	if len(flagSet.Args()) > 0 {
		return writeCheckConfigOutput(jsonOutput, checkConfigOutput{
			OK:    false,
			Error: "unexpected positional arguments",
		}, exitInvalidInput)
	}
	for name, value := range map[string]string{
		"--catalog": catalogPath, "--setup": setupPath, "--config-c": configCPath,
	} {
		if strings.TrimSpace(value) == "" {
			return writeCheckConfigOutput(jsonOutput, checkConfigOutput{
				OK:    false,
				Error: "missing required " + name,
			}, exitInvalidInput)
		}
	}

	cat, err := catalog.LoadFile(catalogPath)
	if err != nil {
		return writeFailedCheckConfig(jsonOutput, err, exitInvalidInput)
	}
	setupData, err := os.ReadFile(setupPath)
	if err != nil {
		return writeFailedCheckConfig(jsonOutput, err, exitInternalFailure)
	}
	configCData, err := os.ReadFile(configCPath)
	if err != nil {
		return writeFailedCheckConfig(jsonOutput, err, exitInternalFailure)
	}
	if err := drift.Check(cat, setupData, string(configCData)); err != nil {
		return writeFailedCheckConfig(jsonOutput, err, exitVerifyFailed)
	}

	return writeCheckConfigOutput(jsonOutput, checkConfigOutput{OK: true, Modules: cat.Len()}, exitOK)
}

func writeFailedCheckConfig(jsonOutput bool, err error, fallbackExit int) int {
	code, category, hint := errorFields(err)
	return writeCheckConfigOutput(jsonOutput, checkConfigOutput{
		OK:            false,
		Error:         err.Error(),
		ErrorCode:     code,
		ErrorCategory: category,
		Hint:          hint,
	}, exitCodeForError(err, fallbackExit))
}

func writeCheckConfigOutput(jsonOutput bool, output checkConfigOutput, exitCode int) int {
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	if output.Error != "" {
		fmt.Fprintln(os.Stderr, "check-config failed:", output.Error)
		return exitCode
	}
	fmt.Printf("native configuration matches the catalog (%d modules)\n", output.Modules)
	return exitCode
}
