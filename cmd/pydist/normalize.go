package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pydist/pydist/core/fsx"
	"github.com/pydist/pydist/core/schema/v1/distribution"
	"github.com/pydist/pydist/core/tarx"
)

type normalizeOutput struct {
	OK            bool   `json:"ok"`
	Out           string `json:"out,omitempty"`
	Bytes         int    `json:"bytes,omitempty"`
	Error         string `json:"error,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
	ErrorCategory string `json:"error_category,omitempty"`
	Hint          string `json:"hint,omitempty"`
}

var normalizeValueFlags = map[string]bool{
	"in": true, "out": true, "metadata-member": true,
}

func runNormalize(arguments []string) int {
	flagSet := flag.NewFlagSet("normalize", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var inPath string
	var outPath string
	var metadataMember string
	var jsonOutput bool
	var helpFlag bool

	flagSet.StringVar(&inPath, "in", "", "archive to canonicalize")
	flagSet.StringVar(&outPath, "out", "", "canonical archive output path")
	flagSet.StringVar(&metadataMember, "metadata-member", distribution.ManifestFileName, "member sorted ahead of all others")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	if err := flagSet.Parse(reorderInterspersedFlags(arguments, normalizeValueFlags)); err != nil {
		return writeNormalizeOutput(jsonOutput, normalizeOutput{OK: false, Error: err.Error()}, exitInvalidInput)
	}
	if helpFlag {
		fmt.Println(`pydist normalize rewrites an archive into its canonical byte form.

usage:
  pydist normalize --in <tar> --out <tar> [--metadata-member <path>] [--json]`)
		return exitOK
	}
	if len(flagSet.Args()) > 0 {
		return writeNormalizeOutput(jsonOutput, normalizeOutput{
			OK:    false,
			Error: "unexpected positional arguments",
		}, exitInvalidInput)
	}
	for name, value := range map[string]string{"--in": inPath, "--out": outPath} {
		if strings.TrimSpace(value) == "" {
			return writeNormalizeOutput(jsonOutput, normalizeOutput{
				OK:    false,
				Error: "missing required " + name,
			}, exitInvalidInput)
		}
	}

	data, err := os.ReadFile(inPath)
	if err != nil {
		return writeFailedNormalize(jsonOutput, err, exitInternalFailure)
	}
	canonical, err := tarx.Normalize(data, metadataMember)
	if err != nil {
		return writeFailedNormalize(jsonOutput, err, exitVerifyFailed)
	}
	if err := fsx.WriteFileAtomic(outPath, canonical, 0o644); err != nil {
		return writeFailedNormalize(jsonOutput, err, exitInternalFailure)
	}

	return writeNormalizeOutput(jsonOutput, normalizeOutput{
		OK:    true,
		Out:   outPath,
		Bytes: len(canonical),
	}, exitOK)
}

func writeFailedNormalize(jsonOutput bool, err error, fallbackExit int) int {
	code, category, hint := errorFields(err)
	return writeNormalizeOutput(jsonOutput, normalizeOutput{
		OK:            false,
		Error:         err.Error(),
		ErrorCode:     code,
		ErrorCategory: category,
		Hint:          hint,
	}, exitCodeForError(err, fallbackExit))
}

func writeNormalizeOutput(jsonOutput bool, output normalizeOutput, exitCode int) int {
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	if output.Error != "" {
		fmt.Fprintln(os.Stderr, "normalize failed:", output.Error)
		return exitCode
	}
	fmt.Printf("wrote %s (%d bytes)\n", output.Out, output.Bytes)
	return exitCode
}
