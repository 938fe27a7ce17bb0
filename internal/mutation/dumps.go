package mutation

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"aprbot/internal/model"
)

// Debug dumps mirror the node and candidate state at generation time. They
// are only written when a dump directory is configured.

func (e *Engine) dumpSuspiciousNodes(targets []*model.ASTNode) {
	e.dumpNodes("suspicious_nodes.txt", targets)
}

func (e *Engine) dumpFixIngredients(ingredients []*model.ASTNode) {
	e.dumpNodes("fix_ingredients.txt", ingredients)
}

func (e *Engine) dumpNodes(name string, nodes []*model.ASTNode) {
	var b strings.Builder
	for _, n := range nodes {
		fmt.Fprintf(&b, "node_id: %s, type: %s, file: %s, range: [%d,%d] - [%d,%d]\n",
			n.NodeID, n.NodeType, n.FilePath, n.StartLine, n.StartColumn, n.EndLine, n.EndColumn)
		fmt.Fprintf(&b, "source_code: %s\n", n.SourceText)
		fmt.Fprintf(&b, "sus_score: %g\n", n.SuspiciousnessScore)
		fmt.Fprintf(&b, "  genealogy_context: %s\n", formatCounts(n.Genealogy.TypeCounts))
		fmt.Fprintf(&b, "  variable_context: %s\n", formatCounts(n.Variables.VarCounts))
		fmt.Fprintf(&b, "  dependency_context: %s\n\n", formatCounts(n.Dependencies.SliceCounts))
	}
	e.writeDump(name, b.String())
}

func (e *Engine) dumpPatchCandidates(candidates []model.PatchCandidate) {
	var b strings.Builder
	for i := range candidates {
		p := &candidates[i]
		fmt.Fprintf(&b, "patch_id: %s\n", p.PatchID)
		fmt.Fprintf(&b, "target_node_id: %s\n", p.TargetNodeID)
		fmt.Fprintf(&b, "file_path: %s\n", p.FilePath)
		fmt.Fprintf(&b, "lines: [%d-%d]\n", p.StartLine, p.EndLine)
		fmt.Fprintf(&b, "original_code: %s\n", p.OriginalCode)
		fmt.Fprintf(&b, "modified_code: %s\n", p.ModifiedCode)
		fmt.Fprintf(&b, "diff:\n%s\n", p.Diff)
		fmt.Fprintf(&b, "mutation: %s %s -> %s\n", p.MutationType.Category, p.MutationType.TargetNode, p.MutationType.SourceNode)
		fmt.Fprintf(&b, "suspiciousness_score: %g\n", p.SuspiciousnessScore)
		fmt.Fprintf(&b, "similarity_score: %g\n", p.SimilarityScore)
		fmt.Fprintf(&b, "priority_score: %g\n\n", p.PriorityScore)
	}
	e.writeDump("patch_candidates.txt", b.String())
}

func (e *Engine) writeDump(name, content string) {
	if err := os.MkdirAll(e.dumpDir, 0755); err != nil {
		e.logger.Warn("Could not create dump directory", map[string]interface{}{
			"dir":   e.dumpDir,
			"error": err.Error(),
		})
		return
	}
	path := filepath.Join(e.dumpDir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		e.logger.Warn("Could not write dump file", map[string]interface{}{
			"file":  path,
			"error": err.Error(),
		})
	}
}

// formatCounts renders a count map with sorted keys so dumps diff cleanly.
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s:%d", k, counts[k])
	}
	b.WriteString("}")
	return b.String()
}
