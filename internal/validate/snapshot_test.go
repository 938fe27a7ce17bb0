package validate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"aprbot/internal/errors"
	"aprbot/internal/model"
)

const listingSource = `#include "linked_list.h"

void LinkedList::remove(int value) {
    Node* curr = head;
    if (curr->value != value) {
        curr = curr->next;
    }
}
`

func writeTarget(t *testing.T) (*Snapshot, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "linked_list.cpp")
	if err := os.WriteFile(path, []byte(listingSource), 0o644); err != nil {
		t.Fatal(err)
	}
	snap, err := TakeSnapshot(path, "linked_list.cpp")
	if err != nil {
		t.Fatalf("TakeSnapshot() error = %v", err)
	}
	return snap, dir
}

func replacementPatch() *model.PatchCandidate {
	return &model.PatchCandidate{
		PatchID:      "patch_0",
		FilePath:     "linked_list.cpp",
		StartLine:    5,
		EndLine:      5,
		OriginalCode: "curr->value != value",
		ModifiedCode: "curr->value == value",
		MutationType: model.MutationType{Category: model.Replacement},
	}
}

func TestApplyReplacement(t *testing.T) {
	snap, _ := writeTarget(t)

	if err := ApplyPatch(snap, replacementPatch()); err != nil {
		t.Fatalf("ApplyPatch() error = %v", err)
	}

	content, _ := os.ReadFile(snap.AbsPath)
	if !contains(content, "curr->value == value") {
		t.Error("patched file should contain the modified code")
	}
	if contains(content, "curr->value != value") {
		t.Error("patched file should not contain the original code")
	}
}

func TestApplyRoundTrip(t *testing.T) {
	snap, _ := writeTarget(t)
	patch := replacementPatch()

	if err := ApplyPatch(snap, patch); err != nil {
		t.Fatalf("ApplyPatch() error = %v", err)
	}

	// Applying the inverse replacement yields the original file.
	patched, err := TakeSnapshot(snap.AbsPath, snap.RelPath)
	if err != nil {
		t.Fatal(err)
	}
	inverse := *patch
	inverse.OriginalCode, inverse.ModifiedCode = patch.ModifiedCode, patch.OriginalCode
	if err := ApplyPatch(patched, &inverse); err != nil {
		t.Fatalf("inverse ApplyPatch() error = %v", err)
	}

	content, _ := os.ReadFile(snap.AbsPath)
	if string(content) != listingSource {
		t.Error("inverse patch should restore the original bytes")
	}
}

func TestApplyRejectsMissingOriginal(t *testing.T) {
	snap, _ := writeTarget(t)
	patch := replacementPatch()
	patch.OriginalCode = "curr->value > value"

	err := ApplyPatch(snap, patch)
	if errors.CodeOf(err) != errors.PatchApplyFailed {
		t.Fatalf("want PatchApplyFailed, got %v", err)
	}

	// A rejected patch leaves the tree untouched.
	content, _ := os.ReadFile(snap.AbsPath)
	if string(content) != listingSource {
		t.Error("rejected patch must not modify the file")
	}
}

func TestApplyRejectsLineOutOfRange(t *testing.T) {
	snap, _ := writeTarget(t)
	patch := replacementPatch()
	patch.StartLine = 1000

	if err := ApplyPatch(snap, patch); errors.CodeOf(err) != errors.PatchApplyFailed {
		t.Fatalf("want PatchApplyFailed, got %v", err)
	}
}

func TestApplyInsertion(t *testing.T) {
	snap, _ := writeTarget(t)
	patch := &model.PatchCandidate{
		PatchID:      "patch_1",
		FilePath:     "linked_list.cpp",
		StartLine:    6,
		EndLine:      6,
		OriginalCode: "",
		ModifiedCode: "        ++count;",
		MutationType: model.MutationType{Category: model.Insertion},
	}

	if err := ApplyPatch(snap, patch); err != nil {
		t.Fatalf("ApplyPatch() error = %v", err)
	}

	content, _ := os.ReadFile(snap.AbsPath)
	lines := splitContent(content)
	if lines[5] != "        ++count;" {
		t.Errorf("line 6 = %q, want the inserted code", lines[5])
	}
	// The displaced line follows.
	if lines[6] != "        curr = curr->next;" {
		t.Errorf("line 7 = %q, want the displaced original", lines[6])
	}
}

func TestRestoreAfterReplacement(t *testing.T) {
	snap, dir := writeTarget(t)
	patch := replacementPatch()

	if err := ApplyPatch(snap, patch); err != nil {
		t.Fatal(err)
	}
	if err := Restore(dir, snap, patch); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	content, _ := os.ReadFile(snap.AbsPath)
	if string(content) != listingSource {
		t.Error("restored file must be byte-identical to the snapshot")
	}
}

func TestRestoreAfterInsertion(t *testing.T) {
	snap, dir := writeTarget(t)
	patch := &model.PatchCandidate{
		PatchID:      "patch_1",
		FilePath:     "linked_list.cpp",
		StartLine:    4,
		OriginalCode: "",
		ModifiedCode: "    int count = 0;",
		MutationType: model.MutationType{Category: model.Insertion},
	}

	if err := ApplyPatch(snap, patch); err != nil {
		t.Fatal(err)
	}
	if err := Restore(dir, snap, patch); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	content, _ := os.ReadFile(snap.AbsPath)
	if string(content) != listingSource {
		t.Error("restored file must be byte-identical to the snapshot")
	}
}

func TestRestoreWithoutGit(t *testing.T) {
	// The temp dir is not a git repository, so restore exercises the
	// snapshot splice fallback.
	snap, dir := writeTarget(t)
	patch := replacementPatch()

	if err := ApplyPatch(snap, patch); err != nil {
		t.Fatal(err)
	}
	if err := Restore(dir, snap, patch); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if !restoredMatches(snap) {
		t.Error("splice restore should match the snapshot")
	}
}

func TestTakeSnapshotMissingFile(t *testing.T) {
	_, err := TakeSnapshot(filepath.Join(t.TempDir(), "absent.cpp"), "absent.cpp")
	if errors.CodeOf(err) != errors.MissingFile {
		t.Errorf("want MissingFile, got %v", err)
	}
}

func contains(content []byte, needle string) bool {
	return strings.Contains(string(content), needle)
}

func splitContent(content []byte) []string {
	return strings.Split(string(content), "\n")
}
