package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
)

// version is stamped at release time via ldflags; default stays dev for local builds.
var version = "0.0.0-dev"

const (
	exitOK              = 0
	exitInternalFailure = 1
	exitInvalidInput    = 2
	exitVerifyFailed    = 3
)

func main() {
	os.Exit(run(os.Args))
}

func run(arguments []string) int {
	if len(arguments) < 2 {
		printUsage()
		return exitOK
	}
	switch arguments[1] {
	case "synthesize":
		return runSynthesize(arguments[2:])
	case "check-config":
		return runCheckConfig(arguments[2:])
	case "manifest":
		return runManifest(arguments[2:])
	case "normalize":
		return runNormalize(arguments[2:])
	case "version", "--version", "-v":
		fmt.Println("pydist", version)
		return exitOK
	default:
		printUsage()
		return exitInvalidInput
	}
}

func printUsage() {
	fmt.Println(`pydist resolves extension-module build configuration and emits distribution manifests.

usage:
  pydist synthesize   --catalog <yml> --setup <file> --config-c <file> --triple <t> --python-version <v> --out <dir>
  pydist check-config --catalog <yml> --setup <file> --config-c <file>
  pydist manifest     --catalog <yml> --setup <file> --config-c <file> --artifacts <tar|dir> --build-vars <json> --triple <t> --python-version <v> --out <file>
  pydist normalize    --in <tar> --out <tar>
  pydist version`)
}

func newLogger(verbose bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "pydist",
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.WarnLevel)
	}
	return logger
}
