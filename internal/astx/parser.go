// Package astx parses the repository's source files into concrete syntax
// trees and extracts owned ASTNode records with their mutation contexts.
// Parser handles are scoped to extraction; everything later stages need is
// copied out before the trees are released.
package astx

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
)

// Parser wraps tree-sitter for C++ parsing.
type Parser struct {
	parser *sitter.Parser
}

// NewParser creates a new tree-sitter parser.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(cpp.GetLanguage())
	return &Parser{parser: p}
}

// Parse parses source code and returns the syntax tree. The caller owns the
// tree and must keep the source bytes alive while reading node text.
func (p *Parser) Parse(ctx context.Context, source []byte) (*sitter.Tree, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return tree, nil
}

// nodeText returns the byte-exact source slice for a node.
func nodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// skippedNodeTypes are named node types never emitted as extraction results:
// the file root and preprocessor includes.
var skippedNodeTypes = map[string]bool{
	"translation_unit": true,
	"preproc_include":  true,
}
