package validate

import (
	"bytes"
	"os"
	"os/exec"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"aprbot/internal/errors"
	"aprbot/internal/model"
)

// Snapshot holds the pre-patch bytes of one working-tree file. Everything
// the validator needs to put the tree back lives in memory.
type Snapshot struct {
	AbsPath string
	RelPath string
	Content []byte
}

// TakeSnapshot reads the target file before any mutation.
func TakeSnapshot(absPath, relPath string) (*Snapshot, error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.MissingFile, "patch target not found: "+absPath, err)
		}
		return nil, errors.New(errors.IOError, "failed to snapshot: "+absPath, err)
	}
	return &Snapshot{AbsPath: absPath, RelPath: relPath, Content: content}, nil
}

// ApplyPatch edits the file in place. In-place edits string-replace the
// first occurrence of OriginalCode inside the target line; insertions splice
// ModifiedCode in as a new line at StartLine. The file is untouched when the
// patch does not apply.
func ApplyPatch(snap *Snapshot, patch *model.PatchCandidate) error {
	lines := strings.Split(string(snap.Content), "\n")
	idx := patch.StartLine - 1
	if idx < 0 || idx >= len(lines) {
		return errors.New(errors.PatchApplyFailed,
			"target line out of range: "+patch.FilePath, nil).
			WithDetails(map[string]interface{}{"line": patch.StartLine, "patchId": patch.PatchID})
	}

	if patch.MutationType.Category == model.Insertion {
		lines = append(lines[:idx], append([]string{patch.ModifiedCode}, lines[idx:]...)...)
	} else {
		pos := strings.Index(lines[idx], patch.OriginalCode)
		if patch.OriginalCode == "" || pos < 0 {
			return errors.New(errors.PatchApplyFailed,
				"original code not found at target line: "+patch.FilePath, nil).
				WithDetails(map[string]interface{}{"line": patch.StartLine, "patchId": patch.PatchID})
		}
		lines[idx] = lines[idx][:pos] + patch.ModifiedCode + lines[idx][pos+len(patch.OriginalCode):]
	}

	if err := os.WriteFile(snap.AbsPath, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return errors.New(errors.IOError, "failed to write patched file: "+snap.AbsPath, err)
	}
	return nil
}

// Restore puts the target file back exactly as snapshotted. It first asks
// source control (`git restore --source=HEAD`); when that is unavailable or
// leaves different bytes, it rebuilds the file from the snapshot around the
// applied patch. Restoration must succeed on every exit path; a failure here
// is fatal for the run.
func Restore(repoRoot string, snap *Snapshot, patch *model.PatchCandidate) error {
	if gitRestore(repoRoot, snap.RelPath) && restoredMatches(snap) {
		return nil
	}

	if err := spliceRestore(snap, patch); err != nil {
		return err
	}
	if !restoredMatches(snap) {
		// The splice should be byte-exact; anything else means the file
		// changed underneath us. Fall back to writing the snapshot verbatim.
		if err := os.WriteFile(snap.AbsPath, snap.Content, 0644); err != nil {
			return errors.New(errors.RestoreFailed, "failed to rewrite snapshot: "+snap.AbsPath, err)
		}
		if !restoredMatches(snap) {
			return errors.New(errors.RestoreFailed, "file differs from snapshot after restore: "+snap.AbsPath, nil).
				WithDetails(map[string]interface{}{"diff": snapshotDiff(snap)})
		}
	}
	return nil
}

// gitRestore attempts a source-control restore and reports whether the
// command ran cleanly.
func gitRestore(repoRoot, relPath string) bool {
	cmd := exec.Command("git", "restore", "--source=HEAD", "--", relPath)
	cmd.Dir = repoRoot
	return cmd.Run() == nil
}

// spliceRestore rebuilds the file from the snapshot: the first StartLine-1
// current lines are kept, the original snapshot lines take the place of the
// lines the patch occupies, and the rest follows.
func spliceRestore(snap *Snapshot, patch *model.PatchCandidate) error {
	current, err := os.ReadFile(snap.AbsPath)
	if err != nil {
		return errors.New(errors.RestoreFailed, "failed to read patched file: "+snap.AbsPath, err)
	}

	currentLines := strings.Split(string(current), "\n")
	snapLines := strings.Split(string(snap.Content), "\n")

	idx := patch.StartLine - 1
	if idx < 0 || idx > len(currentLines) {
		return errors.New(errors.RestoreFailed, "patch line out of range during restore: "+snap.AbsPath, nil)
	}

	// An insertion added one line and displaced none; in-place edits occupy
	// the single line they rewrote.
	originalSpan := 1
	if patch.MutationType.Category == model.Insertion {
		originalSpan = 0
	}
	patchedSpan := 1

	rebuilt := make([]string, 0, len(snapLines))
	rebuilt = append(rebuilt, currentLines[:idx]...)
	if originalSpan > 0 && idx+originalSpan <= len(snapLines) {
		rebuilt = append(rebuilt, snapLines[idx:idx+originalSpan]...)
	}
	if idx+patchedSpan <= len(currentLines) {
		rebuilt = append(rebuilt, currentLines[idx+patchedSpan:]...)
	}

	if err := os.WriteFile(snap.AbsPath, []byte(strings.Join(rebuilt, "\n")), 0644); err != nil {
		return errors.New(errors.RestoreFailed, "failed to write restored file: "+snap.AbsPath, err)
	}
	return nil
}

func restoredMatches(snap *Snapshot) bool {
	current, err := os.ReadFile(snap.AbsPath)
	if err != nil {
		return false
	}
	return bytes.Equal(current, snap.Content)
}

// snapshotDiff renders a unified diff between the snapshot and the current
// file contents for the RestoreFailed report.
func snapshotDiff(snap *Snapshot) string {
	current, err := os.ReadFile(snap.AbsPath)
	if err != nil {
		return "unreadable: " + err.Error()
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(snap.Content)),
		B:        difflib.SplitLines(string(current)),
		FromFile: snap.RelPath + " (snapshot)",
		ToFile:   snap.RelPath + " (working tree)",
		Context:  3,
	})
	if err != nil {
		return "diff failed: " + err.Error()
	}
	return diff
}
