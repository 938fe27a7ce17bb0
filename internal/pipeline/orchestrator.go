// Package pipeline sequences the repair stages: fault localization, AST
// extraction, mutation, prioritization and validation. Stages are defined by
// their input/output contracts and injected by composition; the orchestrator
// owns nothing but the order.
package pipeline

import (
	"context"

	"github.com/google/uuid"

	"aprbot/internal/errors"
	"aprbot/internal/logging"
	"aprbot/internal/model"
)

// FaultLocalizer ranks suspicious source locations from an SBFL table.
type FaultLocalizer interface {
	LocalizeFaults(path string) ([]model.SuspiciousLocation, error)
}

// NodeExtractor parses source files into owned AST node records.
type NodeExtractor interface {
	Extract(ctx context.Context, meta model.RepositoryMetadata, locations []model.SuspiciousLocation) ([]model.ASTNode, error)
}

// PatchGenerator emits candidate patches from the node bag.
type PatchGenerator interface {
	GeneratePatches(nodes []model.ASTNode, failingTests []string) []model.PatchCandidate
}

// PatchPrioritizer ranks candidates for validation.
type PatchPrioritizer interface {
	Prioritize(candidates []model.PatchCandidate, hist model.HistoricalFreqs) []model.PatchCandidate
}

// PatchValidator runs the two-phase validation over ranked candidates.
type PatchValidator interface {
	ValidatePatches(patches []model.PatchCandidate, meta model.RepositoryMetadata) ([]model.ValidationResult, error)
}

// Components bundles one instance of every pipeline stage.
type Components struct {
	Faults      FaultLocalizer
	Extractor   NodeExtractor
	Generator   PatchGenerator
	Prioritizer PatchPrioritizer
	Validator   PatchValidator
}

// Orchestrator drives the pipeline sequentially, short-circuiting when a
// stage yields nothing to work with.
type Orchestrator struct {
	components Components
	logger     *logging.Logger
}

// NewOrchestrator creates an orchestrator over the given components.
func NewOrchestrator(components Components, logger *logging.Logger) *Orchestrator {
	return &Orchestrator{
		components: components,
		logger:     logger.WithComponent("orchestrator"),
	}
}

// validateComponents ensures every stage was injected before running.
func (o *Orchestrator) validateComponents() error {
	switch {
	case o.components.Faults == nil:
		return errors.New(errors.InternalError, "fault localizer component not set", nil)
	case o.components.Extractor == nil:
		return errors.New(errors.InternalError, "extractor component not set", nil)
	case o.components.Generator == nil:
		return errors.New(errors.InternalError, "generator component not set", nil)
	case o.components.Prioritizer == nil:
		return errors.New(errors.InternalError, "prioritizer component not set", nil)
	case o.components.Validator == nil:
		return errors.New(errors.InternalError, "validator component not set", nil)
	}
	return nil
}

// Run executes the full pipeline and returns the aggregated state. An empty
// stage result returns the partial state without error. Component wiring
// problems return a nil state; errors from the fault localizer, the extractor
// or the validator (such as a restoration failure) are returned together with
// the partial state.
func (o *Orchestrator) Run(ctx context.Context, meta model.RepositoryMetadata, sbflPath string, hist model.HistoricalFreqs) (*model.SystemState, error) {
	if err := o.validateComponents(); err != nil {
		return nil, err
	}

	state := &model.SystemState{
		RunID:        uuid.New().String(),
		RepoMetadata: meta,
	}

	o.logger.Info("Running fault localization", map[string]interface{}{"input": sbflPath})
	locations, err := o.components.Faults.LocalizeFaults(sbflPath)
	if err != nil {
		return state, err
	}
	state.SuspiciousLocations = locations
	if len(locations) == 0 {
		o.logger.Warn("No suspicious locations found, stopping pipeline", nil)
		return state, nil
	}

	o.logger.Info("Extracting AST nodes", map[string]interface{}{
		"locations": len(locations),
		"files":     len(meta.SourceFiles),
	})
	nodes, err := o.components.Extractor.Extract(ctx, meta, locations)
	if err != nil {
		return state, err
	}
	state.ASTNodes = nodes
	if len(nodes) == 0 {
		o.logger.Warn("No AST nodes extracted, stopping pipeline", nil)
		return state, nil
	}

	o.logger.Info("Generating patch candidates", map[string]interface{}{"nodes": len(nodes)})
	candidates := o.components.Generator.GeneratePatches(nodes, meta.FailingTests)
	state.PatchCandidates = candidates
	if len(candidates) == 0 {
		o.logger.Warn("No patch candidates generated, stopping pipeline", nil)
		return state, nil
	}

	o.logger.Info("Prioritizing candidates", map[string]interface{}{"candidates": len(candidates)})
	ranked := o.components.Prioritizer.Prioritize(candidates, hist)
	state.PrioritizedPatches = ranked
	if len(ranked) == 0 {
		o.logger.Warn("No candidates with non-zero priority, stopping pipeline", nil)
		return state, nil
	}

	o.logger.Info("Validating top candidates", map[string]interface{}{"ranked": len(ranked)})
	results, err := o.components.Validator.ValidatePatches(ranked, meta)
	state.ValidationResults = results
	if err != nil {
		return state, err
	}

	o.logger.Info("Pipeline completed", map[string]interface{}{
		"validated": len(results),
	})
	return state, nil
}
