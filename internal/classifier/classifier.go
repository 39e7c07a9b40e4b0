// Package classifier holds the promotion-readiness strategies. Each
// classifier is a frozen algorithm identified by (id, version); changing
// behavior means minting a new version, never mutating an existing one.
package classifier

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/semops/curator/internal/storage/models"
)

// Classifier evaluates one target and produces an auditable result.
// Expected failures (missing provider, unsynced mirror, unparseable LLM
// output) come back as error-flagged results with a nil error; a non-nil
// error means the classifier could not produce a verdict at all.
type Classifier interface {
	ID() string
	Version() string
	Classify(ctx context.Context, target models.Target) (*models.ClassificationResult, error)
}

// errorResult builds the error-flagged result shape shared by all
// classifiers: scores carry the error marker, labels carry the reason,
// and confidence stays unset.
func errorResult(c Classifier, target models.Target, reason, rationale string) *models.ClassificationResult {
	return &models.ClassificationResult{
		TargetType:        target.Type,
		TargetID:          target.ID,
		ClassifierID:      c.ID(),
		ClassifierVersion: c.Version(),
		Scores:            map[string]any{"error": true},
		Labels:            map[string]any{"reason": reason},
		Rationale:         rationale,
	}
}

// skippedResult marks a target type the classifier does not evaluate.
func skippedResult(c Classifier, target models.Target, reason, rationale string) *models.ClassificationResult {
	return &models.ClassificationResult{
		TargetType:        target.Type,
		TargetID:          target.ID,
		ClassifierID:      c.ID(),
		ClassifierVersion: c.Version(),
		Scores:            map[string]any{"skipped": true},
		Labels:            map[string]any{"reason": reason},
		Rationale:         rationale,
	}
}

func confidence(v float64) *float64 { return &v }

func joinRationale(parts []string) string {
	return strings.Join(parts, "; ")
}

// Registry indexes classifiers by id.
type Registry struct {
	classifiers map[string]Classifier
}

func NewRegistry() *Registry {
	return &Registry{classifiers: make(map[string]Classifier)}
}

func (r *Registry) Register(c Classifier) error {
	if _, exists := r.classifiers[c.ID()]; exists {
		return fmt.Errorf("classifier already registered: %s", c.ID())
	}
	r.classifiers[c.ID()] = c
	return nil
}

func (r *Registry) Get(id string) (Classifier, bool) {
	c, ok := r.classifiers[id]
	return c, ok
}

func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.classifiers))
	for id := range r.classifiers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
