package storage

import (
	"database/sql"
	"time"

	"github.com/klauspost/compress/zstd"

	"aprbot/internal/model"
)

// RunRecord is one persisted pipeline run.
type RunRecord struct {
	RunID               string    `json:"runId" yaml:"runId"`
	RepoRoot            string    `json:"repoRoot" yaml:"repoRoot"`
	Branch              string    `json:"branch,omitempty" yaml:"branch,omitempty"`
	StartedAt           time.Time `json:"startedAt" yaml:"startedAt"`
	DurationMs          int64     `json:"durationMs" yaml:"durationMs"`
	SuspiciousLocations int       `json:"suspiciousLocations" yaml:"suspiciousLocations"`
	ASTNodes            int       `json:"astNodes" yaml:"astNodes"`
	PatchCandidates     int       `json:"patchCandidates" yaml:"patchCandidates"`
	PrioritizedPatches  int       `json:"prioritizedPatches" yaml:"prioritizedPatches"`
	ValidationResults   int       `json:"validationResults" yaml:"validationResults"`
	BestPatchID         string    `json:"bestPatchId,omitempty" yaml:"bestPatchId,omitempty"`
	Validated           bool      `json:"validated" yaml:"validated"`
}

// RecordRun persists one run and its validation results. Build and test
// outputs are zstd-compressed; they dominate the row size and compress well.
func (db *DB) RecordRun(state *model.SystemState, startedAt time.Time, duration time.Duration) error {
	bestPatchID := ""
	validated := false
	if best := state.BestResult(); best != nil && best.TestsPassed {
		bestPatchID = best.PatchID
	}
	for _, r := range state.ValidationResults {
		if r.CompilationSuccess && r.TestsPassed {
			validated = true
			break
		}
	}

	return db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO runs (
				run_id, repo_root, branch, started_at, duration_ms,
				suspicious_locations, ast_nodes, patch_candidates,
				prioritized_patches, validation_results, best_patch_id, validated
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			state.RunID,
			state.RepoMetadata.RepoRoot,
			state.RepoMetadata.Branch,
			startedAt.UTC().Format(time.RFC3339),
			duration.Milliseconds(),
			len(state.SuspiciousLocations),
			len(state.ASTNodes),
			len(state.PatchCandidates),
			len(state.PrioritizedPatches),
			len(state.ValidationResults),
			bestPatchID,
			boolToInt(validated),
		); err != nil {
			return err
		}

		for _, r := range state.ValidationResults {
			buildOut, err := compress(r.BuildOutput)
			if err != nil {
				return err
			}
			testOut, err := compress(r.TestOutput)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(`
				INSERT INTO validation_logs (
					run_id, patch_id, compilation_success, tests_passed,
					build_time_ms, test_time_ms, tests_passed_count,
					tests_total_count, error_message, build_output_zst, test_output_zst
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				state.RunID, r.PatchID,
				boolToInt(r.CompilationSuccess), boolToInt(r.TestsPassed),
				r.BuildTimeMs, r.TestTimeMs,
				r.TestsPassedCount, r.TestsTotalCount,
				r.ErrorMessage, buildOut, testOut,
			); err != nil {
				return err
			}
		}

		return nil
	})
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT run_id, repo_root, branch, started_at, duration_ms,
		       suspicious_locations, ast_nodes, patch_candidates,
		       prioritized_patches, validation_results, best_patch_id, validated
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetRun returns one run by id.
func (db *DB) GetRun(runID string) (*RunRecord, error) {
	rows, err := db.conn.Query(`
		SELECT run_id, repo_root, branch, started_at, duration_ms,
		       suspicious_locations, ast_nodes, patch_candidates,
		       prioritized_patches, validation_results, best_patch_id, validated
		FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, sql.ErrNoRows
	}
	rec, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	return &rec, rows.Err()
}

// GetRunLogs returns the decompressed build and test output for one patch of
// one run.
func (db *DB) GetRunLogs(runID, patchID string) (buildOutput, testOutput string, err error) {
	var buildBlob, testBlob []byte
	err = db.conn.QueryRow(`
		SELECT build_output_zst, test_output_zst
		FROM validation_logs WHERE run_id = ? AND patch_id = ?`,
		runID, patchID).Scan(&buildBlob, &testBlob)
	if err != nil {
		return "", "", err
	}

	if buildOutput, err = decompress(buildBlob); err != nil {
		return "", "", err
	}
	if testOutput, err = decompress(testBlob); err != nil {
		return "", "", err
	}
	return buildOutput, testOutput, nil
}

// Prune deletes all but the newest keep runs.
func (db *DB) Prune(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := db.conn.Exec(`
		DELETE FROM runs WHERE run_id NOT IN (
			SELECT run_id FROM runs ORDER BY started_at DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanRun(rows *sql.Rows) (RunRecord, error) {
	var rec RunRecord
	var startedAt string
	var validated int
	if err := rows.Scan(
		&rec.RunID, &rec.RepoRoot, &rec.Branch, &startedAt, &rec.DurationMs,
		&rec.SuspiciousLocations, &rec.ASTNodes, &rec.PatchCandidates,
		&rec.PrioritizedPatches, &rec.ValidationResults, &rec.BestPatchID, &validated,
	); err != nil {
		return rec, err
	}
	rec.Validated = validated != 0
	if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
		rec.StartedAt = t
	}
	return rec, nil
}

func compress(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll([]byte(s), nil), nil
}

func decompress(blob []byte) (string, error) {
	if len(blob) == 0 {
		return "", nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return "", err
	}
	defer dec.Close()
	data, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
