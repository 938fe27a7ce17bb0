package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"aprbot/internal/model"
)

// StageCounts records how many items each stage produced.
type StageCounts struct {
	SuspiciousLocations int `json:"suspiciousLocations"`
	ASTNodes            int `json:"astNodes"`
	PatchCandidates     int `json:"patchCandidates"`
	PrioritizedPatches  int `json:"prioritizedPatches"`
	ValidationResults   int `json:"validationResults"`
}

// BestPatch names the winning validated patch in the summary.
type BestPatch struct {
	PatchID          string `json:"patchId"`
	TestsPassedCount int    `json:"testsPassedCount"`
	TestsTotalCount  int    `json:"testsTotalCount"`
}

// Summary is the run report emitted as JSON at the end of a pipeline run.
type Summary struct {
	RunID               string                     `json:"runId"`
	GeneratedAt         string                     `json:"generatedAt"`
	RepoMetadata        model.RepositoryMetadata   `json:"repoMetadata"`
	Counts              StageCounts                `json:"counts"`
	SuspiciousLocations []model.SuspiciousLocation `json:"suspiciousLocations"`
	ValidationResults   []model.ValidationResult   `json:"validationResults"`
	BestPatch           *BestPatch                 `json:"bestPatch,omitempty"`
	Validated           bool                       `json:"validated"`
}

// BuildSummary condenses a system state into the run report. A run counts as
// validated when at least one candidate compiled and passed both phases.
func BuildSummary(state *model.SystemState) Summary {
	s := Summary{
		RunID:        state.RunID,
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
		RepoMetadata: state.RepoMetadata,
		Counts: StageCounts{
			SuspiciousLocations: len(state.SuspiciousLocations),
			ASTNodes:            len(state.ASTNodes),
			PatchCandidates:     len(state.PatchCandidates),
			PrioritizedPatches:  len(state.PrioritizedPatches),
			ValidationResults:   len(state.ValidationResults),
		},
		SuspiciousLocations: state.SuspiciousLocations,
		ValidationResults:   state.ValidationResults,
	}

	for _, r := range state.ValidationResults {
		if r.CompilationSuccess && r.TestsPassed {
			s.Validated = true
			break
		}
	}

	if best := state.BestResult(); best != nil && best.TestsPassed {
		s.BestPatch = &BestPatch{
			PatchID:          best.PatchID,
			TestsPassedCount: best.TestsPassedCount,
			TestsTotalCount:  best.TestsTotalCount,
		}
	}

	return s
}

// Write stores the summary as indented JSON at path, creating parent
// directories as needed.
func (s *Summary) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
