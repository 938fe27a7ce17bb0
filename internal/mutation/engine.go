// Package mutation generates candidate patches by pairing suspicious nodes
// with fix ingredients drawn from the whole repository, gated by a table of
// historically observed mutation shapes.
package mutation

import (
	"fmt"

	"aprbot/internal/logging"
	"aprbot/internal/model"
)

// Engine is the ingredient-based patch generator.
type Engine struct {
	hist    model.HistoricalFreqs
	logger  *logging.Logger
	dumpDir string
}

// NewEngine creates a mutation engine over the given frequency table.
// dumpDir, when non-empty, receives the debug dump files.
func NewEngine(hist model.HistoricalFreqs, logger *logging.Logger, dumpDir string) *Engine {
	return &Engine{
		hist:    hist,
		logger:  logger.WithComponent("mutator"),
		dumpDir: dumpDir,
	}
}

// GeneratePatches pairs every suspicious node (target) with every node in
// the bag (ingredient) and applies the Replacement, Insertion and Deletion
// rules. failingTests is copied onto every candidate for Phase A.
func (e *Engine) GeneratePatches(nodes []model.ASTNode, failingTests []string) []model.PatchCandidate {
	// Ingredients are ALL nodes, suspicious ones included: suspiciousness is
	// probabilistic, and a flagged node may still hold a correct sub-pattern.
	targets := make([]*model.ASTNode, 0)
	ingredients := make([]*model.ASTNode, 0, len(nodes))
	for i := range nodes {
		node := &nodes[i]
		ingredients = append(ingredients, node)
		if node.SuspiciousnessScore > 0 {
			targets = append(targets, node)
		}
	}

	e.logger.Info("Pairing targets with ingredients", map[string]interface{}{
		"targets":     len(targets),
		"ingredients": len(ingredients),
	})

	if e.dumpDir != "" {
		e.dumpSuspiciousNodes(targets)
		e.dumpFixIngredients(ingredients)
	}

	var candidates []model.PatchCandidate
	idCounter := 0

	for _, t := range targets {
		for _, s := range ingredients {
			candidates = e.applyReplacement(candidates, t, s, failingTests, &idCounter)
			candidates = e.applyInsertion(candidates, t, s, failingTests, &idCounter)
			candidates = e.applyDeletion(candidates, t, s, failingTests, &idCounter)
		}
	}

	if e.dumpDir != "" {
		e.dumpPatchCandidates(candidates)
	}

	e.logger.Info("Patch generation completed", map[string]interface{}{
		"candidates": len(candidates),
	})

	return candidates
}

// applyReplacement emits one candidate per historical Replacement entry
// whose target type matches. The ingredient must share the target's node
// type, both texts must be single-line, and the texts must differ.
func (e *Engine) applyReplacement(out []model.PatchCandidate, t, s *model.ASTNode, failingTests []string, id *int) []model.PatchCandidate {
	for _, entry := range e.hist.Replacement {
		if entry.TargetNode != t.NodeType || s.NodeType != t.NodeType {
			continue
		}
		if !t.IsSingleLine() || !s.IsSingleLine() {
			continue
		}
		if t.SourceText == s.SourceText {
			continue
		}

		out = append(out, model.PatchCandidate{
			PatchID:      nextPatchID(id),
			TargetNodeID: t.NodeID,
			FilePath:     t.FilePath,
			StartLine:    t.StartLine,
			EndLine:      t.EndLine,
			OriginalCode: t.SourceText,
			ModifiedCode: s.SourceText,
			Diff:         MakeDiff(t.StartLine, t.SourceText, s.SourceText),
			MutationType: model.MutationType{
				Category:   model.Replacement,
				TargetNode: t.NodeType,
				SourceNode: s.NodeType,
			},
			AffectedTests:       append([]string(nil), failingTests...),
			SuspiciousnessScore: t.SuspiciousnessScore,
			SimilarityScore:     ReplacementSimilarity(s, t),
		})
	}
	return out
}

// applyInsertion emits one candidate per historical Insertion entry matching
// (target type, source type). The patch inserts the ingredient's text at the
// target's start line.
func (e *Engine) applyInsertion(out []model.PatchCandidate, t, s *model.ASTNode, failingTests []string, id *int) []model.PatchCandidate {
	for _, entry := range e.hist.Insertion {
		if entry.TargetNode != t.NodeType || entry.SourceNode != s.NodeType {
			continue
		}
		if !t.IsSingleLine() || !s.IsSingleLine() {
			continue
		}

		out = append(out, model.PatchCandidate{
			PatchID:      nextPatchID(id),
			TargetNodeID: t.NodeID,
			FilePath:     t.FilePath,
			StartLine:    t.StartLine,
			EndLine:      t.StartLine,
			OriginalCode: "",
			ModifiedCode: s.SourceText,
			Diff:         MakeDiff(t.StartLine, "", s.SourceText),
			MutationType: model.MutationType{
				Category:   model.Insertion,
				TargetNode: t.NodeType,
				SourceNode: s.NodeType,
			},
			AffectedTests:       append([]string(nil), failingTests...),
			SuspiciousnessScore: t.SuspiciousnessScore,
			SimilarityScore:     InsertionSimilarity(s, t),
		})
	}
	return out
}

// applyDeletion emits one candidate per historical Deletion entry matching
// (target type, source type). The patch removes the target's text.
func (e *Engine) applyDeletion(out []model.PatchCandidate, t, s *model.ASTNode, failingTests []string, id *int) []model.PatchCandidate {
	for _, entry := range e.hist.Deletion {
		if entry.TargetNode != t.NodeType || entry.SourceNode != s.NodeType {
			continue
		}
		if !t.IsSingleLine() || !s.IsSingleLine() {
			continue
		}

		out = append(out, model.PatchCandidate{
			PatchID:      nextPatchID(id),
			TargetNodeID: t.NodeID,
			FilePath:     t.FilePath,
			StartLine:    t.StartLine,
			EndLine:      t.EndLine,
			OriginalCode: t.SourceText,
			ModifiedCode: "",
			Diff:         MakeDiff(t.StartLine, t.SourceText, ""),
			MutationType: model.MutationType{
				Category:   model.Deletion,
				TargetNode: t.NodeType,
				SourceNode: s.NodeType,
			},
			AffectedTests:       append([]string(nil), failingTests...),
			SuspiciousnessScore: t.SuspiciousnessScore,
			SimilarityScore:     DeletionSimilarity(s, t),
		})
	}
	return out
}

func nextPatchID(counter *int) string {
	id := fmt.Sprintf("patch_%d", *counter)
	*counter++
	return id
}
