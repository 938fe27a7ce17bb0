package validate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsCTestHarness(t *testing.T) {
	tests := []struct {
		command string
		want    bool
	}{
		{"ctest", true},
		{"ctest --test-dir build", true},
		{"  ctest -j4", true},
		{"./build/tests/unit_tests", false},
		{"make test", false},
		{"ctesting-tool run", false},
	}

	for _, tt := range tests {
		if got := IsCTestHarness(tt.command); got != tt.want {
			t.Errorf("IsCTestHarness(%q) = %v, want %v", tt.command, got, tt.want)
		}
	}
}

func TestFindTestWorkdirGTestUsesRoot(t *testing.T) {
	root := t.TempDir()
	if got := FindTestWorkdir(root, "./tests/unit_tests"); got != root {
		t.Errorf("gtest harness workdir = %q, want repo root", got)
	}
}

func TestFindTestWorkdirProbesForCTestFile(t *testing.T) {
	root := t.TempDir()
	buildDir := filepath.Join(root, "build", "tests")
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(buildDir, ctestMarker), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if got := FindTestWorkdir(root, "ctest"); got != buildDir {
		t.Errorf("workdir = %q, want %q", got, buildDir)
	}
}

func TestFindTestWorkdirNearestWins(t *testing.T) {
	root := t.TempDir()
	shallow := filepath.Join(root, "build")
	deep := filepath.Join(root, "build", "sub", "tests")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{shallow, deep} {
		if err := os.WriteFile(filepath.Join(dir, ctestMarker), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if got := FindTestWorkdir(root, "ctest"); got != shallow {
		t.Errorf("workdir = %q, want the shallower %q", got, shallow)
	}
}

func TestFindTestWorkdirDepthLimit(t *testing.T) {
	root := t.TempDir()
	tooDeep := filepath.Join(root, "a", "b", "c", "d")
	if err := os.MkdirAll(tooDeep, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tooDeep, ctestMarker), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	// Depth 4 is beyond the probe; fall back to the root.
	if got := FindTestWorkdir(root, "ctest"); got != root {
		t.Errorf("workdir = %q, want repo root", got)
	}
}

func TestBuildTestCommand(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		filter   []string
		artifact string
		want     string
	}{
		{
			"gtest with filter",
			"./build/unit_tests",
			[]string{"LinkedListTest.Remove", "LinkedListTest.Insert"},
			"/tmp/a.xml",
			"./build/unit_tests --gtest_filter=LinkedListTest.Remove:LinkedListTest.Insert --gtest_output=xml:/tmp/a.xml",
		},
		{
			"gtest whole suite",
			"./build/unit_tests",
			nil,
			"/tmp/b.xml",
			"./build/unit_tests --gtest_output=xml:/tmp/b.xml",
		},
		{
			"ctest with filter",
			"ctest",
			[]string{"remove_test", "insert_test"},
			"/tmp/c.xml",
			`ctest -R "remove_test|insert_test" --output-on-failure --output-junit /tmp/c.xml`,
		},
		{
			"ctest whole suite",
			"ctest --test-dir build",
			nil,
			"/tmp/d.xml",
			"ctest --test-dir build --output-on-failure --output-junit /tmp/d.xml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildTestCommand(tt.base, tt.filter, tt.artifact); got != tt.want {
				t.Errorf("BuildTestCommand() = %q, want %q", got, tt.want)
			}
		})
	}
}
