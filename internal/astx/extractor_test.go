package astx

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"aprbot/internal/logging"
	"aprbot/internal/model"
)

const calculatorSource = `#include <cmath>

int multiply(int first, int second) {
    int result = first + second;
    return result;
}

int add(int first, int second) {
    int sum = first + second;
    return sum;
}
`

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: logging.ErrorLevel})
}

func writeRepo(t *testing.T, files map[string]string) model.RepositoryMetadata {
	t.Helper()
	root := t.TempDir()

	var sources []string
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		sources = append(sources, name)
	}

	return model.RepositoryMetadata{RepoRoot: root, SourceFiles: sources}
}

func TestExtractEmitsAllNamedNodes(t *testing.T) {
	meta := writeRepo(t, map[string]string{"calculator.cpp": calculatorSource})

	nodes, err := NewExtractor(testLogger()).Extract(context.Background(), meta, nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(nodes) == 0 {
		t.Fatal("expected nodes from a non-empty file")
	}

	sawFunction := false
	sawBinary := false
	for _, n := range nodes {
		switch n.NodeType {
		case "translation_unit":
			t.Error("the file root must not be emitted")
		case "preproc_include":
			t.Error("preprocessor includes must not be emitted")
		case "function_definition":
			sawFunction = true
		case "binary_expression":
			sawBinary = true
		}
		if n.StartLine > n.EndLine {
			t.Errorf("node %s has start line %d after end line %d", n.NodeID, n.StartLine, n.EndLine)
		}
		if n.StartByte > n.EndByte {
			t.Errorf("node %s has start byte after end byte", n.NodeID)
		}
	}
	if !sawFunction {
		t.Error("function definitions should be extracted")
	}
	if !sawBinary {
		t.Error("binary expressions should be extracted")
	}
}

func TestExtractSourceTextIsByteExact(t *testing.T) {
	meta := writeRepo(t, map[string]string{"calculator.cpp": calculatorSource})

	nodes, err := NewExtractor(testLogger()).Extract(context.Background(), meta, nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	for _, n := range nodes {
		want := calculatorSource[n.StartByte:n.EndByte]
		if n.SourceText != want {
			t.Fatalf("node %s (%s) text %q != file slice %q", n.NodeID, n.NodeType, n.SourceText, want)
		}
	}
}

func TestExtractNodeIDsAreUnique(t *testing.T) {
	meta := writeRepo(t, map[string]string{
		"a.cpp": "int f() { return 1; }\n",
		"b.cpp": "int g() { return 2; }\n",
	})

	nodes, err := NewExtractor(testLogger()).Extract(context.Background(), meta, nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	seen := make(map[string]bool)
	for _, n := range nodes {
		if seen[n.NodeID] {
			t.Fatalf("duplicate node id %s", n.NodeID)
		}
		seen[n.NodeID] = true
	}
}

func TestExtractInheritsSuspiciousness(t *testing.T) {
	meta := writeRepo(t, map[string]string{"calculator.cpp": calculatorSource})
	locations := []model.SuspiciousLocation{
		{FilePath: "calculator.cpp", LineNumber: 4, SuspiciousnessScore: 0.9},
	}

	nodes, err := NewExtractor(testLogger()).Extract(context.Background(), meta, locations)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	suspicious := 0
	for _, n := range nodes {
		covers := n.StartLine <= 4 && n.EndLine >= 4
		if covers && n.SuspiciousnessScore != 0.9 {
			t.Errorf("node %s (%s) covers line 4 but has score %v", n.NodeID, n.NodeType, n.SuspiciousnessScore)
		}
		if !covers && n.SuspiciousnessScore != 0 {
			t.Errorf("node %s (%s) does not cover line 4 but has score %v", n.NodeID, n.NodeType, n.SuspiciousnessScore)
		}
		if n.SuspiciousnessScore > 0 {
			suspicious++
		}
	}
	if suspicious == 0 {
		t.Error("some nodes should inherit the suspicious score")
	}
}

func TestExtractNodeSetIndependentOfSBFL(t *testing.T) {
	meta := writeRepo(t, map[string]string{"calculator.cpp": calculatorSource})
	locations := []model.SuspiciousLocation{
		{FilePath: "calculator.cpp", LineNumber: 4, SuspiciousnessScore: 0.9},
	}

	withScores, err := NewExtractor(testLogger()).Extract(context.Background(), meta, locations)
	if err != nil {
		t.Fatal(err)
	}
	without, err := NewExtractor(testLogger()).Extract(context.Background(), meta, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(withScores) != len(without) {
		t.Fatalf("node counts differ: %d vs %d", len(withScores), len(without))
	}
	for i := range withScores {
		if withScores[i].NodeID != without[i].NodeID || withScores[i].NodeType != without[i].NodeType {
			t.Fatalf("node %d differs: %s/%s vs %s/%s",
				i, withScores[i].NodeID, withScores[i].NodeType, without[i].NodeID, without[i].NodeType)
		}
	}
}

func TestExtractSkipsUnreadableFiles(t *testing.T) {
	meta := writeRepo(t, map[string]string{"good.cpp": "int f() { return 1; }\n"})
	meta.SourceFiles = append(meta.SourceFiles, "missing.cpp")

	nodes, err := NewExtractor(testLogger()).Extract(context.Background(), meta, nil)
	if err != nil {
		t.Fatalf("Extract() should skip missing files, got error %v", err)
	}
	if len(nodes) == 0 {
		t.Error("the readable file should still be extracted")
	}
}

func TestExtractEmptyFile(t *testing.T) {
	meta := writeRepo(t, map[string]string{"empty.cpp": ""})

	nodes, err := NewExtractor(testLogger()).Extract(context.Background(), meta, nil)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("empty file should yield zero nodes, got %d", len(nodes))
	}
}

func TestVariableContext(t *testing.T) {
	meta := writeRepo(t, map[string]string{"calculator.cpp": calculatorSource})

	nodes, err := NewExtractor(testLogger()).Extract(context.Background(), meta, nil)
	if err != nil {
		t.Fatal(err)
	}

	// The binary expression "first + second" on line 4 references exactly
	// two variables, each counted once.
	for _, n := range nodes {
		if n.NodeType == "binary_expression" && n.StartLine == 4 {
			if len(n.Variables.VarCounts) != 2 {
				t.Errorf("variable context = %v, want two entries", n.Variables.VarCounts)
			}
			if n.Variables.VarCounts["identifier#first"] != 1 {
				t.Errorf("missing identifier#first in %v", n.Variables.VarCounts)
			}
			if n.Variables.VarCounts["identifier#second"] != 1 {
				t.Errorf("missing identifier#second in %v", n.Variables.VarCounts)
			}
			return
		}
	}
	t.Fatal("binary expression on line 4 not found")
}

func TestGenealogyContextCountsAncestors(t *testing.T) {
	meta := writeRepo(t, map[string]string{"calculator.cpp": calculatorSource})

	nodes, err := NewExtractor(testLogger()).Extract(context.Background(), meta, nil)
	if err != nil {
		t.Fatal(err)
	}

	for _, n := range nodes {
		if n.NodeType == "return_statement" && n.StartLine == 5 {
			counts := n.Genealogy.TypeCounts
			// The C++ grammar has no method_definition or block node, so the
			// walk counts every ancestor up to the file root (compound_statement
			// and function_definition included) and merges in no siblings.
			if counts["function_definition"] == 0 {
				t.Errorf("genealogy should count the enclosing function, got %v", counts)
			}
			if counts["block"] != 0 {
				t.Errorf("block nodes must be skipped, got %v", counts)
			}
			return
		}
	}
	t.Fatal("return statement on line 5 not found")
}

func TestDependencyContextSeesDefinitionAndUse(t *testing.T) {
	meta := writeRepo(t, map[string]string{"calculator.cpp": calculatorSource})

	nodes, err := NewExtractor(testLogger()).Extract(context.Background(), meta, nil)
	if err != nil {
		t.Fatal(err)
	}

	// "return result;" depends on the declaration of result one line above;
	// the backward slice should be non-empty.
	for _, n := range nodes {
		if n.NodeType == "return_statement" && n.StartLine == 5 {
			if len(n.Dependencies.SliceCounts) == 0 {
				t.Error("return of a declared variable should have a non-empty dependency context")
			}
			return
		}
	}
	t.Fatal("return statement on line 5 not found")
}

func TestLineToByte(t *testing.T) {
	source := []byte("alpha\nbeta\ngamma")

	tests := []struct {
		line int
		want int
	}{
		{1, 0},
		{2, 6},
		{3, 11},
		{99, len(source) - 1}, // beyond the end clamps to the final byte
	}

	for _, tt := range tests {
		if got := LineToByte(source, tt.line); got != tt.want {
			t.Errorf("LineToByte(%d) = %d, want %d", tt.line, got, tt.want)
		}
	}
}

func TestLineToByteEmptySource(t *testing.T) {
	if got := LineToByte(nil, 5); got != 0 {
		t.Errorf("LineToByte(empty) = %d, want 0", got)
	}
}

func TestScoreForRange(t *testing.T) {
	locations := []model.SuspiciousLocation{
		{FilePath: "a.cpp", LineNumber: 10, SuspiciousnessScore: 0.5},
		{FilePath: "a.cpp", LineNumber: 12, SuspiciousnessScore: 0.9},
	}

	tests := []struct {
		name       string
		start, end int
		want       float64
	}{
		{"covers both, max wins", 9, 13, 0.9},
		{"covers first only", 10, 10, 0.5},
		{"covers none", 1, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreForRange(locations, tt.start, tt.end); got != tt.want {
				t.Errorf("scoreForRange(%d, %d) = %v, want %v", tt.start, tt.end, got, tt.want)
			}
		})
	}
}
