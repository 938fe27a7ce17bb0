package validate

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ctestMarker is the file CTest writes into a configured build directory.
const ctestMarker = "CTestTestfile.cmake"

// maxProbeDepth bounds the working-directory probe below the repo root.
const maxProbeDepth = 3

// IsCTestHarness reports whether a test command runs under CTest.
func IsCTestHarness(testCommand string) bool {
	trimmed := strings.TrimSpace(testCommand)
	return trimmed == "ctest" || strings.HasPrefix(trimmed, "ctest ")
}

// FindTestWorkdir picks the directory build and test commands run in. For a
// CTest harness it probes for the nearest directory containing
// CTestTestfile.cmake, breadth-first up to maxProbeDepth below the repo
// root; every other harness uses the repo root.
func FindTestWorkdir(repoRoot, testCommand string) string {
	if !IsCTestHarness(testCommand) {
		return repoRoot
	}
	if dir := probeForMarker(repoRoot, maxProbeDepth); dir != "" {
		return dir
	}
	return repoRoot
}

// probeForMarker walks breadth-first so the nearest marker wins; siblings
// are visited in name order to keep the probe deterministic.
func probeForMarker(root string, depth int) string {
	frontier := []string{root}

	for level := 0; level <= depth; level++ {
		var next []string
		for _, dir := range frontier {
			if _, err := os.Stat(filepath.Join(dir, ctestMarker)); err == nil {
				return dir
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				continue
			}
			names := make([]string, 0, len(entries))
			for _, entry := range entries {
				if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
					names = append(names, entry.Name())
				}
			}
			sort.Strings(names)
			for _, name := range names {
				next = append(next, filepath.Join(dir, name))
			}
		}
		frontier = next
	}

	return ""
}
