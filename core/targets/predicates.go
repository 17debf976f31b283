// Package targets holds the version-range and target-triple matching
// primitives shared by the synthesizer, the drift checker, and the manifest
// builder. Triples are opaque strings matched by regular expression; this
// subsystem never decomposes them structurally.
package targets

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MeetsMinimum reports whether actual >= wanted, comparing only the
// (major, minor) integer pair. Patch and build metadata are ignored, so
// MeetsMinimum("3.13.1", "3.13") is true.
func MeetsMinimum(actual, wanted string) bool {
	actualMajor, actualMinor, err := majorMinor(actual)
	if err != nil {
		return false
	}
	wantedMajor, wantedMinor, err := majorMinor(wanted)
	if err != nil {
		return false
	}
	if actualMajor != wantedMajor {
		return actualMajor > wantedMajor
	}
	return actualMinor >= wantedMinor
}

// MeetsMaximum reports whether actual <= wanted, with the same major.minor
// comparison rules as MeetsMinimum.
func MeetsMaximum(actual, wanted string) bool {
	actualMajor, actualMinor, err := majorMinor(actual)
	if err != nil {
		return false
	}
	wantedMajor, wantedMinor, err := majorMinor(wanted)
	if err != nil {
		return false
	}
	if actualMajor != wantedMajor {
		return actualMajor < wantedMajor
	}
	return actualMinor <= wantedMinor
}

func majorMinor(version string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(version), ".")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("version %q lacks a major.minor pair", version)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("version %q major: %w", version, err)
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("version %q minor: %w", version, err)
	}
	return major, minor, nil
}

// MatchesAnyTarget reports whether at least one pattern fully matches the
// triple. An empty pattern list matches nothing; call sites that treat an
// absent restriction as "applies everywhere" must check emptiness themselves.
func MatchesAnyTarget(triple string, patterns []string) bool {
	for _, pattern := range patterns {
		matcher, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			continue
		}
		if matcher.MatchString(triple) {
			return true
		}
	}
	return false
}

// ValidTargetPatterns reports the first pattern that fails to compile, if any.
// Catalog loading rejects specs carrying broken patterns up front instead of
// silently never matching.
func ValidTargetPatterns(patterns []string) error {
	for _, pattern := range patterns {
		if _, err := regexp.Compile("^(?:" + pattern + ")$"); err != nil {
			return fmt.Errorf("target pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// IsApple reports whether the triple targets an Apple platform. Link token
// translation and framework emission differ there.
func IsApple(triple string) bool {
	return strings.Contains(triple, "-apple-")
}

// IsMusl reports whether the triple targets a musl libc environment, which
// implies fully static linking with no loadable extension modules.
func IsMusl(triple string) bool {
	return strings.Contains(triple, "-musl")
}

// IsLinux reports whether the triple targets Linux.
func IsLinux(triple string) bool {
	return strings.Contains(triple, "-linux-") || strings.HasSuffix(triple, "-linux")
}
