package mutation

import (
	"aprbot/internal/model"
)

// The similarity measures follow the CapGen model: contexts are node-type
// count maps, and an ingredient S is scored against a target T by how much of
// T's context S covers. The argument order throughout is (ingredient,
// target).

// simTypeCounts is the shared overlap measure for genealogy and dependency
// contexts: sum over types of min(a[t], b[t]), normalized by b's total.
// emptyB is returned when b has no entries.
func simTypeCounts(a, b map[string]int, emptyB float64) float64 {
	total := 0
	for _, c := range b {
		total += c
	}
	if total == 0 {
		return emptyB
	}

	overlap := 0
	for t, c := range b {
		ac := a[t]
		if ac < c {
			overlap += ac
		} else {
			overlap += c
		}
	}
	return float64(overlap) / float64(total)
}

// SimGenealogy measures how much of b's genealogy a covers. An empty b
// yields 0.
func SimGenealogy(a, b model.GenealogyContext) float64 {
	return simTypeCounts(a.TypeCounts, b.TypeCounts, 0)
}

// SimDependency is identical in form to SimGenealogy but over dependency
// slices, and an empty b yields 1: a target with no dependencies constrains
// nothing.
func SimDependency(a, b model.DependencyContext) float64 {
	return simTypeCounts(a.SliceCounts, b.SliceCounts, 1)
}

// SimVariable is the Jaccard index over variable keys. Two empty contexts
// are identical, yielding 1.
func SimVariable(a, b model.VariableContext) float64 {
	if len(a.VarCounts) == 0 && len(b.VarCounts) == 0 {
		return 1
	}

	intersection := 0
	for key := range a.VarCounts {
		if _, ok := b.VarCounts[key]; ok {
			intersection++
		}
	}
	union := len(a.VarCounts) + len(b.VarCounts) - intersection
	if union == 0 {
		return 1
	}
	return float64(intersection) / float64(union)
}

// ReplacementSimilarity scores replacing target code with ingredient code.
func ReplacementSimilarity(ingredient, target *model.ASTNode) float64 {
	return SimGenealogy(ingredient.Genealogy, target.Genealogy) *
		SimDependency(ingredient.Dependencies, target.Dependencies) *
		SimVariable(ingredient.Variables, target.Variables)
}

// InsertionSimilarity scores inserting ingredient code at the target.
func InsertionSimilarity(ingredient, target *model.ASTNode) float64 {
	return SimGenealogy(ingredient.Genealogy, target.Genealogy) *
		SimDependency(ingredient.Dependencies, target.Dependencies)
}

// DeletionSimilarity scores deleting the target: code unlike its
// surroundings is the better deletion candidate, so both factors invert.
// When both raw similarities are exactly 1 the self-pair would collapse to
// 0; that degenerate case scores 1 instead.
func DeletionSimilarity(ingredient, target *model.ASTNode) float64 {
	g := SimGenealogy(ingredient.Genealogy, target.Genealogy)
	d := SimDependency(ingredient.Dependencies, target.Dependencies)
	if g == 1 && d == 1 {
		return 1
	}
	return (1 - g) * (1 - d)
}
