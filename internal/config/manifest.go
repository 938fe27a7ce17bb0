package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"aprbot/internal/model"
)

// Manifest is the repository manifest stored in aprbot.toml. It names the
// repository under repair and the opaque build/test commands the validator
// runs.
type Manifest struct {
	// Repo identifies the repository under repair
	Repo ManifestRepo `toml:"repo"`

	// Commands holds the opaque shell strings for build and test
	Commands ManifestCommands `toml:"commands"`

	// Tests lists the originally failing test names for Phase A
	Tests ManifestTests `toml:"tests"`
}

// ManifestRepo identifies the repository under repair
type ManifestRepo struct {
	Root   string `toml:"root"`
	URL    string `toml:"url,omitempty"`
	Branch string `toml:"branch,omitempty"`

	// Sources are repo-relative paths of the files the extractor parses
	Sources []string `toml:"sources"`
}

// ManifestCommands holds the build and test shell strings
type ManifestCommands struct {
	Build string `toml:"build"`
	Test  string `toml:"test"`
}

// ManifestTests lists the originally failing tests
type ManifestTests struct {
	Failing []string `toml:"failing,omitempty"`
}

// LoadManifest reads aprbot.toml from the given path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks the manifest for required fields.
func (m *Manifest) Validate() error {
	if m.Repo.Root == "" {
		return &ConfigError{Field: "repo.root", Message: "must be set"}
	}
	if len(m.Repo.Sources) == 0 {
		return &ConfigError{Field: "repo.sources", Message: "at least one source file is required"}
	}
	if m.Commands.Build == "" {
		return &ConfigError{Field: "commands.build", Message: "must be set"}
	}
	if m.Commands.Test == "" {
		return &ConfigError{Field: "commands.test", Message: "must be set"}
	}
	return nil
}

// Metadata converts the manifest into the RepositoryMetadata record threaded
// through the pipeline.
func (m *Manifest) Metadata() model.RepositoryMetadata {
	return model.RepositoryMetadata{
		RepoRoot:     m.Repo.Root,
		RepoURL:      m.Repo.URL,
		Branch:       m.Repo.Branch,
		BuildCommand: m.Commands.Build,
		TestCommand:  m.Commands.Test,
		SourceFiles:  append([]string(nil), m.Repo.Sources...),
		FailingTests: append([]string(nil), m.Tests.Failing...),
	}
}
