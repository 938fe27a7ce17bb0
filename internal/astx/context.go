package astx

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"aprbot/internal/model"
)

// The three context extractors below follow the CapGen model: a node's
// surroundings are summarized as node-type count maps so that a target and a
// fix ingredient can be compared without comparing code directly.

// extractAncestorTypes counts node types on the path from node to the
// enclosing method_definition, inclusive. "block" nodes are skipped.
func extractAncestorTypes(node *sitter.Node) map[string]int {
	counts := make(map[string]int)
	for node != nil && node.Type() != "method_definition" {
		node = node.Parent()
		if node == nil {
			break
		}
		if t := node.Type(); t != "block" {
			counts[t]++
		}
	}
	return counts
}

// extractSiblingTypes counts the named children of the nearest enclosing
// "block" ancestor.
func extractSiblingTypes(node *sitter.Node) map[string]int {
	counts := make(map[string]int)

	parent := node.Parent()
	for parent != nil && parent.Type() != "block" {
		parent = parent.Parent()
	}
	if parent == nil {
		return counts
	}

	n := int(parent.NamedChildCount())
	for i := 0; i < n; i++ {
		counts[parent.NamedChild(i).Type()]++
	}
	return counts
}

// extractGenealogyContext merges the ancestor and sibling counts additively.
func extractGenealogyContext(node *sitter.Node) model.GenealogyContext {
	counts := extractAncestorTypes(node)
	for t, c := range extractSiblingTypes(node) {
		counts[t] += c
	}
	return model.GenealogyContext{TypeCounts: counts}
}

// extractVariableContext collects every identifier and field_identifier
// appearing transitively inside the node. Keys have the form
// "<nodeType>#<name>"; each variable counts once regardless of repetition.
func extractVariableContext(node *sitter.Node, source []byte) model.VariableContext {
	counts := make(map[string]int)
	stack := []*sitter.Node{node}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if current.IsNamed() {
			if t := current.Type(); t == "identifier" || t == "field_identifier" {
				key := t + "#" + nodeText(current, source)
				if _, seen := counts[key]; !seen {
					counts[key] = 1
				}
			}
		}

		n := int(current.NamedChildCount())
		for i := 0; i < n; i++ {
			stack = append(stack, current.NamedChild(i))
		}
	}

	return model.VariableContext{VarCounts: counts}
}

// variableNames strips the "<nodeType>#" prefix from variable-context keys.
func variableNames(vc model.VariableContext) []string {
	names := make([]string, 0, len(vc.VarCounts))
	for key := range vc.VarCounts {
		if idx := strings.IndexByte(key, '#'); idx >= 0 {
			names = append(names, key[idx+1:])
		}
	}
	return names
}

// definitionNodeTypes are the node types treated as variable definition
// sites for the backward slice.
var definitionNodeTypes = map[string]bool{
	"init_declarator":       true,
	"declaration":           true,
	"assignment_expression": true,
	"field_initializer":     true,
}

// isSliceStatement reports whether a node type qualifies as the enclosing
// statement of a slice site.
func isSliceStatement(nodeType string, includeDeclaration bool) bool {
	if strings.Contains(nodeType, "statement") || strings.Contains(nodeType, "expression") {
		return true
	}
	return includeDeclaration && strings.Contains(nodeType, "declaration")
}

// backwardSlice finds, for every variable the target uses, the definition
// sites positioned at or before the target's end byte, climbs each to its
// nearest enclosing statement/expression/declaration, and counts that node's
// named child types.
func backwardSlice(target, root *sitter.Node, source []byte) map[string]int {
	counts := make(map[string]int)
	names := variableNames(extractVariableContext(target, source))
	targetEnd := target.EndByte()

	for _, name := range names {
		stack := []*sitter.Node{root}
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if definitionNodeTypes[current.Type()] && definesVariable(current, source, name, targetEnd) {
				if stmt := climbToSliceStatement(current, true); stmt != nil {
					countNamedChildren(stmt, counts)
				}
			}

			n := int(current.NamedChildCount())
			for i := 0; i < n; i++ {
				stack = append(stack, current.NamedChild(i))
			}
		}
	}
	return counts
}

// definesVariable reports whether a definition node binds the given name at
// or before the byte limit.
func definesVariable(node *sitter.Node, source []byte, name string, limit uint32) bool {
	n := int(node.NamedChildCount())
	for i := 0; i < n; i++ {
		child := node.NamedChild(i)
		if child.Type() != "identifier" {
			continue
		}
		if child.StartByte() <= limit && nodeText(child, source) == name {
			return true
		}
	}
	return false
}

// forwardSlice finds uses of the target's variables at or after the target's
// start byte, climbs each use to its nearest enclosing statement/expression,
// and counts that node's named child types.
func forwardSlice(target, root *sitter.Node, source []byte) map[string]int {
	counts := make(map[string]int)
	names := variableNames(extractVariableContext(target, source))
	targetStart := target.StartByte()

	for _, name := range names {
		stack := []*sitter.Node{root}
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if current.IsNamed() && current.Type() == "identifier" &&
				current.StartByte() >= targetStart && nodeText(current, source) == name {
				if stmt := climbToSliceStatement(current.Parent(), false); stmt != nil {
					countNamedChildren(stmt, counts)
				}
			}

			n := int(current.NamedChildCount())
			for i := 0; i < n; i++ {
				stack = append(stack, current.NamedChild(i))
			}
		}
	}
	return counts
}

// climbToSliceStatement walks up from node until it reaches a
// statement/expression (and, for the backward slice, declaration) node.
func climbToSliceStatement(node *sitter.Node, includeDeclaration bool) *sitter.Node {
	for node != nil && !isSliceStatement(node.Type(), includeDeclaration) {
		node = node.Parent()
	}
	return node
}

func countNamedChildren(node *sitter.Node, counts map[string]int) {
	n := int(node.NamedChildCount())
	for i := 0; i < n; i++ {
		counts[node.NamedChild(i).Type()]++
	}
}

// extractDependencyContext merges the backward and forward slices additively.
func extractDependencyContext(target, root *sitter.Node, source []byte) model.DependencyContext {
	counts := backwardSlice(target, root, source)
	for t, c := range forwardSlice(target, root, source) {
		counts[t] += c
	}
	return model.DependencyContext{SliceCounts: counts}
}
