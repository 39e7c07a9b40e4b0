// Package orchestrator drives batch classification runs: it fetches the
// pending set once, then feeds it through the selected strategies in
// cost-ascending order.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/semops/curator/internal/classifier"
	"github.com/semops/curator/internal/metrics"
	"github.com/semops/curator/internal/storage/models"
	"github.com/semops/curator/pkg/logger"
)

// Tier selects which strategies a run executes.
type Tier string

const (
	TierRules  Tier = "rules"
	TierVector Tier = "vector"
	TierGraph  Tier = "graph"
	TierLLM    Tier = "llm"
	TierAll    Tier = "all"
)

func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierRules, TierVector, TierGraph, TierLLM, TierAll:
		return Tier(s), nil
	default:
		return "", fmt.Errorf("unknown tier: %q (want rules, vector, graph, llm, or all)", s)
	}
}

// Stage binds a classifier to its tier. ConceptsOnly stages never see
// entities; the classifier would only produce skipped results for them.
type Stage struct {
	Classifier   classifier.Classifier
	Tier         Tier
	ConceptsOnly bool
}

// ResultStore is the slice of the store the runner needs.
type ResultStore interface {
	PendingConcepts(ctx context.Context, limit int) ([]models.Concept, error)
	PendingEntities(ctx context.Context, limit int) ([]models.Entity, error)
	SaveResult(ctx context.Context, result *models.ClassificationResult) error
}

// Outcome tallies one classifier's verdicts within a run.
type Outcome struct {
	Passed int
	Failed int
	Errors int
}

// Report summarizes one run. Persistence failures are counted, not fatal:
// a broken save never aborts the remaining targets.
type Report struct {
	Concepts     int
	Entities     int
	Results      int
	Passed       int
	Failed       int
	Errors       int
	SaveFailures int
	ByClassifier map[string]*Outcome
	Issues       map[string]int
	Duration     time.Duration
}

func (r *Report) outcome(classifierID string) *Outcome {
	o, ok := r.ByClassifier[classifierID]
	if !ok {
		o = &Outcome{}
		r.ByClassifier[classifierID] = o
	}
	return o
}

type Runner struct {
	store  ResultStore
	stages []Stage
}

func NewRunner(store ResultStore, stages []Stage) *Runner {
	return &Runner{store: store, stages: stages}
}

// Run classifies every pending target through the stages matching tier.
// limit <= 0 means the whole pending set.
func (r *Runner) Run(ctx context.Context, tier Tier, limit int) (*Report, error) {
	start := time.Now()

	concepts, err := r.store.PendingConcepts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending concepts: %w", err)
	}
	entities, err := r.store.PendingEntities(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending entities: %w", err)
	}

	report := &Report{
		Concepts:     len(concepts),
		Entities:     len(entities),
		ByClassifier: make(map[string]*Outcome),
		Issues:       make(map[string]int),
	}

	logger.Info("Classification run started",
		zap.String("tier", string(tier)),
		zap.Int("concepts", len(concepts)),
		zap.Int("entities", len(entities)),
	)

	for _, stage := range r.stages {
		if tier != TierAll && stage.Tier != tier {
			continue
		}

		for i := range concepts {
			r.classifyTarget(ctx, stage.Classifier, models.ConceptTarget(&concepts[i]), report)
		}
		if stage.ConceptsOnly {
			continue
		}
		for i := range entities {
			r.classifyTarget(ctx, stage.Classifier, models.EntityTarget(&entities[i]), report)
		}
	}

	report.Duration = time.Since(start)

	logger.Info("Classification run finished",
		zap.String("tier", string(tier)),
		zap.Int("results", report.Results),
		zap.Int("passed", report.Passed),
		zap.Int("failed", report.Failed),
		zap.Int("errors", report.Errors),
		zap.Int("save_failures", report.SaveFailures),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (r *Runner) classifyTarget(ctx context.Context, c classifier.Classifier, target models.Target, report *Report) {
	start := time.Now()
	result, err := c.Classify(ctx, target)
	metrics.ClassificationDuration.WithLabelValues(c.ID()).Observe(time.Since(start).Seconds())

	if err != nil {
		report.Errors++
		report.outcome(c.ID()).Errors++
		metrics.ClassificationsTotal.WithLabelValues(c.ID(), "error").Inc()
		logger.Error("Classification failed",
			zap.String("classifier", c.ID()),
			zap.String("target_type", string(target.Type)),
			zap.String("target_id", target.ID),
			zap.Error(err),
		)
		return
	}

	report.Results++
	outcome := report.outcome(c.ID())
	status := "passed"
	switch {
	case result.IsError():
		status = "error"
		report.Errors++
		outcome.Errors++
	case result.PromotionReady():
		report.Passed++
		outcome.Passed++
	default:
		status = "failed"
		report.Failed++
		outcome.Failed++
	}
	metrics.ClassificationsTotal.WithLabelValues(c.ID(), status).Inc()

	if result.Confidence != nil {
		metrics.ConfidenceScore.WithLabelValues(c.ID()).Observe(*result.Confidence)
	}
	for _, issue := range resultIssues(result) {
		report.Issues[issue]++
		metrics.IssuesFlagged.WithLabelValues(issue).Inc()
	}

	if err := r.store.SaveResult(ctx, result); err != nil {
		report.SaveFailures++
		metrics.SaveFailures.Inc()
		logger.Error("Failed to persist classification result",
			zap.String("classifier", c.ID()),
			zap.String("target_id", target.ID),
			zap.Error(err),
		)
	}
}

// resultIssues folds the classifier-specific flag shapes into one issue
// vocabulary for the report.
func resultIssues(result *models.ClassificationResult) []string {
	var issues []string
	if issue, ok := result.Labels["issue"].(string); ok && issue != "" {
		issues = append(issues, issue)
	}
	if _, ok := result.Labels["potential_duplicate"]; ok {
		issues = append(issues, "potential_duplicate")
	}
	if result.BoolScore("is_orphan") {
		issues = append(issues, "orphan")
	}
	if result.BoolScore("has_hierarchy_cycle") {
		issues = append(issues, "hierarchy_cycle")
	}
	if degreeScore(result) >= hubDegree {
		issues = append(issues, "hub")
	}
	return dedupe(issues)
}

// hubDegree is the connection count past which a concept is flagged as a
// hub worth a curator's look.
const hubDegree = 10

func degreeScore(result *models.ClassificationResult) int64 {
	switch v := result.Scores["degree"].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
