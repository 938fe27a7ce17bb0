package astx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"
	sitter "github.com/smacker/go-tree-sitter"

	"aprbot/internal/logging"
	"aprbot/internal/model"
)

// sourceCacheSize bounds the file-content cache. Repair repositories are
// small; the cache mostly absorbs repeated extraction passes in one process.
const sourceCacheSize = 128

// Extractor turns source files into the flat bag of ASTNode records the
// mutation engine consumes. Every named node is extracted, not only the
// suspicious ones: any node may serve as a fix ingredient.
type Extractor struct {
	parser *Parser
	logger *logging.Logger
	cache  *lru.Cache[string, []byte]
}

// NewExtractor creates an extractor.
func NewExtractor(logger *logging.Logger) *Extractor {
	cache, _ := lru.New[string, []byte](sourceCacheSize)
	return &Extractor{
		parser: NewParser(),
		logger: logger.WithComponent("parser"),
		cache:  cache,
	}
}

// readSource reads a file through the content cache.
func (e *Extractor) readSource(path string) ([]byte, error) {
	if data, ok := e.cache.Get(path); ok {
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	e.cache.Add(path, data)
	return data, nil
}

// Extract parses every source file named in meta and returns all named nodes
// with their contexts. Files that cannot be read or parsed are skipped;
// extraction continues with the rest. The returned node set is independent
// of the suspicious locations — only the scores depend on them.
func (e *Extractor) Extract(ctx context.Context, meta model.RepositoryMetadata, locations []model.SuspiciousLocation) ([]model.ASTNode, error) {
	byFile := make(map[string][]model.SuspiciousLocation)
	for _, loc := range locations {
		byFile[loc.FilePath] = append(byFile[loc.FilePath], loc)
	}

	var nodes []model.ASTNode
	counter := 0

	for _, rel := range meta.SourceFiles {
		path := rel
		if !filepath.IsAbs(path) {
			path = filepath.Join(meta.RepoRoot, rel)
		}

		source, err := e.readSource(path)
		if err != nil {
			e.logger.Warn("Skipping unreadable source file", map[string]interface{}{
				"file":  rel,
				"error": err.Error(),
			})
			continue
		}
		if len(source) == 0 {
			continue
		}

		tree, err := e.parser.Parse(ctx, source)
		if err != nil {
			e.logger.Warn("Skipping unparsable source file", map[string]interface{}{
				"file":  rel,
				"error": err.Error(),
			})
			continue
		}

		fileNodes := e.extractFile(tree.RootNode(), source, rel, byFile[rel], &counter)
		nodes = append(nodes, fileNodes...)
		tree.Close()

		e.logger.Debug("Extracted nodes from file", map[string]interface{}{
			"file":  rel,
			"nodes": len(fileNodes),
		})
	}

	e.logger.Info("AST extraction completed", map[string]interface{}{
		"files": len(meta.SourceFiles),
		"nodes": len(nodes),
	})

	return nodes, nil
}

// extractFile walks one tree depth-first and materializes every named node.
func (e *Extractor) extractFile(root *sitter.Node, source []byte, filePath string, locations []model.SuspiciousLocation, counter *int) []model.ASTNode {
	var nodes []model.ASTNode

	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		if node.IsNamed() && !skippedNodeTypes[node.Type()] {
			nodes = append(nodes, e.makeNode(node, root, source, filePath, locations, counter))
		}
		n := int(node.ChildCount())
		for i := 0; i < n; i++ {
			walk(node.Child(i))
		}
	}
	walk(root)

	return nodes
}

// makeNode copies everything the later stages need out of a parser handle.
func (e *Extractor) makeNode(node, root *sitter.Node, source []byte, filePath string, locations []model.SuspiciousLocation, counter *int) model.ASTNode {
	start := node.StartPoint()
	end := node.EndPoint()

	record := model.ASTNode{
		NodeID:       fmt.Sprintf("node_%d", *counter),
		NodeType:     node.Type(),
		FilePath:     filePath,
		StartLine:    int(start.Row) + 1,
		EndLine:      int(end.Row) + 1,
		StartColumn:  int(start.Column) + 1,
		EndColumn:    int(end.Column) + 1,
		StartByte:    node.StartByte(),
		EndByte:      node.EndByte(),
		SourceText:   nodeText(node, source),
		Genealogy:    extractGenealogyContext(node),
		Variables:    extractVariableContext(node, source),
		Dependencies: extractDependencyContext(node, root, source),
	}
	*counter++

	record.SuspiciousnessScore = scoreForRange(locations, record.StartLine, record.EndLine)

	return record
}

// scoreForRange returns the highest suspiciousness score among locations
// whose line falls inside [startLine, endLine], or 0 when none does.
func scoreForRange(locations []model.SuspiciousLocation, startLine, endLine int) float64 {
	score := 0.0
	for _, loc := range locations {
		if loc.LineNumber >= startLine && loc.LineNumber <= endLine && loc.SuspiciousnessScore > score {
			score = loc.SuspiciousnessScore
		}
	}
	return score
}

// LineToByte converts a 1-indexed line number to the byte offset of that
// line's first character. A line beyond the file end is clamped to the final
// byte.
func LineToByte(source []byte, targetLine int) int {
	if len(source) == 0 {
		return 0
	}

	bytePos := 0
	line := 1
	for i := 0; i < len(source); i++ {
		if line == targetLine {
			return bytePos
		}
		if source[i] == '\n' {
			line++
		}
		bytePos++
	}

	if targetLine > line {
		return len(source) - 1
	}
	return bytePos
}
