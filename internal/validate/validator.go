package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"aprbot/internal/errors"
	"aprbot/internal/logging"
	"aprbot/internal/model"
)

// Options configures the two-phase validator.
type Options struct {
	// TopK bounds how many ranked candidates are validated.
	TopK int

	// TimeBudget is the global wall-clock budget for all candidates; the
	// residual budget is handed to each subprocess as its timeout.
	TimeBudget time.Duration

	// EnableEarlyExit stops validation at the first candidate that passes
	// Phase B.
	EnableEarlyExit bool

	// ArtifactsDir receives the JUnit XML artifacts; relative paths resolve
	// against the repository root.
	ArtifactsDir string

	// Grace is the TERM-to-KILL drain period for timed-out children.
	Grace time.Duration
}

// Validator applies, builds, tests and restores candidate patches. Phase A
// runs only the originally failing tests; Phase B guards against regressions
// with the full suite.
type Validator struct {
	logger *logging.Logger
	runner *Runner
	opts   Options
}

// NewValidator creates a validator.
func NewValidator(logger *logging.Logger, opts Options) *Validator {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.TimeBudget <= 0 {
		opts.TimeBudget = 70 * time.Minute
	}
	if opts.ArtifactsDir == "" {
		opts.ArtifactsDir = filepath.Join("artifacts", "gtest")
	}
	return &Validator{
		logger: logger.WithComponent("validator"),
		runner: NewRunner(logger, opts.Grace),
		opts:   opts,
	}
}

// ValidatePatches walks the ranked candidates in order. Per-candidate
// failures are recorded and skipped; only a restoration failure aborts the
// run, since the tree state is then unknown.
func (v *Validator) ValidatePatches(patches []model.PatchCandidate, meta model.RepositoryMetadata) ([]model.ValidationResult, error) {
	deadline := time.Now().Add(v.opts.TimeBudget)

	artifactsDir := v.opts.ArtifactsDir
	if !filepath.IsAbs(artifactsDir) {
		artifactsDir = filepath.Join(meta.RepoRoot, artifactsDir)
	}
	if err := os.MkdirAll(artifactsDir, 0755); err != nil {
		return nil, errors.New(errors.IOError, "failed to create artifacts directory: "+artifactsDir, err)
	}

	limit := v.opts.TopK
	if limit > len(patches) {
		limit = len(patches)
	}

	v.logger.Info("Starting patch validation", map[string]interface{}{
		"candidates": len(patches),
		"topK":       limit,
		"budget":     v.opts.TimeBudget.String(),
	})

	var results []model.ValidationResult
	for i := 0; i < limit; i++ {
		if time.Until(deadline) <= 0 {
			v.logger.Warn("Time budget exhausted, stopping validation", map[string]interface{}{
				"validated": len(results),
				"remaining": limit - i,
			})
			break
		}

		patch := &patches[i]
		v.logger.Info("Validating candidate", map[string]interface{}{
			"patchId":  patch.PatchID,
			"rank":     i + 1,
			"priority": patch.PriorityScore,
		})

		result, err := v.validateOne(patch, meta, deadline, artifactsDir)
		results = append(results, result)

		if err != nil {
			// Restoration failed: the tree state is unknown, stop here.
			return results, err
		}

		if v.opts.EnableEarlyExit && result.CompilationSuccess && result.TestsPassed {
			v.logger.Info("Candidate passed both phases, early exit", map[string]interface{}{
				"patchId": patch.PatchID,
			})
			break
		}
	}

	return results, nil
}

// validateOne runs both phases for a single candidate. The returned error is
// non-nil only for restoration failures; every other failure is recorded in
// the result.
func (v *Validator) validateOne(patch *model.PatchCandidate, meta model.RepositoryMetadata, deadline time.Time, artifactsDir string) (result model.ValidationResult, fatal error) {
	result = model.ValidationResult{PatchID: patch.PatchID}

	absPath := patch.FilePath
	if !filepath.IsAbs(absPath) {
		absPath = filepath.Join(meta.RepoRoot, patch.FilePath)
	}

	snap, err := TakeSnapshot(absPath, patch.FilePath)
	if err != nil {
		result.ErrorMessage = err.Error()
		return result, nil
	}

	applied := false
	restore := func() error {
		if !applied {
			return nil
		}
		applied = false
		return Restore(meta.RepoRoot, snap, patch)
	}
	// Backstop: whatever path leaves this function, the tree is restored.
	defer func() {
		if err := restore(); err != nil {
			v.logger.Error("Restoration failed", map[string]interface{}{
				"patchId": patch.PatchID,
				"error":   err.Error(),
			})
			result.ErrorMessage = appendMessage(result.ErrorMessage, err.Error())
			fatal = err
		}
	}()

	if err := ApplyPatch(snap, patch); err != nil {
		// The tree is untouched when a patch fails to apply.
		result.ErrorMessage = err.Error()
		return result, nil
	}
	applied = true

	workdir := FindTestWorkdir(meta.RepoRoot, meta.TestCommand)

	// Phase A: build, then run only the originally failing tests.
	if !v.runBuild(&result, meta, workdir, deadline) {
		return result, nil
	}

	artifactA := filepath.Join(artifactsDir, "phaseA-"+patch.PatchID+".xml")
	result.PhaseAArtifactPath = artifactA
	phaseAPassed := v.runTests(&result, meta, workdir, deadline, patch.AffectedTests, artifactA)
	result.TestsPassed = phaseAPassed

	if err := restore(); err != nil {
		result.ErrorMessage = appendMessage(result.ErrorMessage, err.Error())
		return result, err
	}

	if !phaseAPassed {
		return result, nil
	}

	// Phase B: re-apply and run the entire suite against regressions.
	if err := ApplyPatch(snap, patch); err != nil {
		result.ErrorMessage = appendMessage(result.ErrorMessage, err.Error())
		result.TestsPassed = false
		return result, nil
	}
	applied = true

	if !v.runBuild(&result, meta, workdir, deadline) {
		result.TestsPassed = false
		return result, nil
	}

	artifactB := filepath.Join(artifactsDir, "phaseB-"+patch.PatchID+".xml")
	result.PhaseBArtifactPath = artifactB
	result.TestsPassed = v.runTests(&result, meta, workdir, deadline, nil, artifactB)

	return result, nil
}

// runBuild executes the build command against the residual budget and
// records timing, output and compilation status. Returns false when the
// candidate cannot proceed.
func (v *Validator) runBuild(result *model.ValidationResult, meta model.RepositoryMetadata, workdir string, deadline time.Time) bool {
	res, err := v.runner.Run(meta.BuildCommand, workdir, time.Until(deadline))
	result.BuildTimeMs += res.Duration.Milliseconds()
	result.BuildOutput = res.Output

	if err != nil {
		result.CompilationSuccess = false
		result.ErrorMessage = appendMessage(result.ErrorMessage, err.Error())
		return false
	}
	if res.ExitCode != 0 {
		result.CompilationSuccess = false
		result.ErrorMessage = appendMessage(result.ErrorMessage,
			errors.New(errors.BuildFailed, fmt.Sprintf("build exited with code %d", res.ExitCode), nil).Error())
		return false
	}

	result.CompilationSuccess = true
	return true
}

// runTests executes the test command with the given name filter, parses the
// XML artifact and records counts. Returns whether every test passed.
func (v *Validator) runTests(result *model.ValidationResult, meta model.RepositoryMetadata, workdir string, deadline time.Time, filter []string, artifact string) bool {
	command := BuildTestCommand(meta.TestCommand, filter, artifact)

	res, err := v.runner.Run(command, workdir, time.Until(deadline))
	result.TestTimeMs += res.Duration.Milliseconds()
	result.TestOutput = res.Output

	if err != nil {
		result.ErrorMessage = appendMessage(result.ErrorMessage, err.Error())
		return false
	}

	counts, parseErr := ParseJUnitArtifact(artifact)
	if parseErr != nil {
		result.ErrorMessage = appendMessage(result.ErrorMessage, parseErr.Error())
		return false
	}

	result.TestsPassedCount = counts.Passed()
	result.TestsTotalCount = counts.Total

	if res.ExitCode != 0 || !counts.AllPassed() {
		result.ErrorMessage = appendMessage(result.ErrorMessage,
			errors.New(errors.TestFailed,
				fmt.Sprintf("%d/%d tests passed (exit code %d)", counts.Passed(), counts.Total, res.ExitCode), nil).Error())
		return false
	}
	return true
}

// BuildTestCommand appends the harness-specific filter and XML-output flags
// to the opaque test command. A ctest harness gets -R and --output-junit;
// anything else is treated as a gtest binary. An empty filter runs the whole
// suite.
func BuildTestCommand(base string, filter []string, artifact string) string {
	var b strings.Builder
	b.WriteString(base)

	if IsCTestHarness(base) {
		if len(filter) > 0 {
			fmt.Fprintf(&b, " -R %q", strings.Join(filter, "|"))
		}
		b.WriteString(" --output-on-failure --output-junit ")
		b.WriteString(artifact)
		return b.String()
	}

	if len(filter) > 0 {
		b.WriteString(" --gtest_filter=")
		b.WriteString(strings.Join(filter, ":"))
	}
	b.WriteString(" --gtest_output=xml:")
	b.WriteString(artifact)
	return b.String()
}

func appendMessage(existing, message string) string {
	if existing == "" {
		return message
	}
	return existing + "; " + message
}
