package classifier

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/semops/curator/internal/storage/models"
	"github.com/semops/curator/pkg/utils"
)

const (
	minDefinitionLen = 20
	maxDefinitionLen = 2000
)

// EdgeChecker is the slice of the store the rule classifier needs.
type EdgeChecker interface {
	HasEdges(ctx context.Context, conceptID string) (bool, error)
}

// RuleClassifier runs deterministic completeness and format checks. It is
// the cheapest strategy and the only one with no external dependencies
// beyond the store.
type RuleClassifier struct {
	edges EdgeChecker
}

func NewRuleClassifier(edges EdgeChecker) *RuleClassifier {
	return &RuleClassifier{edges: edges}
}

func (c *RuleClassifier) ID() string      { return "rule-completeness-v1" }
func (c *RuleClassifier) Version() string { return "1.0.0" }

func (c *RuleClassifier) Classify(ctx context.Context, target models.Target) (*models.ClassificationResult, error) {
	switch target.Type {
	case models.TargetConcept:
		return c.classifyConcept(ctx, target)
	case models.TargetEntity:
		return c.classifyEntity(target)
	default:
		return nil, fmt.Errorf("unknown target type: %s", target.Type)
	}
}

func (c *RuleClassifier) classifyConcept(ctx context.Context, target models.Target) (*models.ClassificationResult, error) {
	concept := target.Concept
	var issues []string

	completeness := 0.0
	if concept.PreferredLabel != "" {
		completeness += 0.3
	} else {
		issues = append(issues, "Missing preferred_label")
	}
	if concept.Definition != "" {
		completeness += 0.4
	} else {
		issues = append(issues, "Missing definition")
	}

	// Length windows count characters, not bytes.
	formatValid := true
	if concept.Definition != "" {
		defLen := utf8.RuneCountInString(concept.Definition)
		if defLen < minDefinitionLen {
			issues = append(issues, "Definition too short (<20 chars)")
			formatValid = false
		}
		if defLen > maxDefinitionLen {
			issues = append(issues, "Definition too long (>2000 chars)")
			formatValid = false
		}
		if isCircularDefinition(concept.PreferredLabel, concept.Definition) {
			issues = append(issues, "Definition may be circular (starts with term)")
			formatValid = false
		}
	}

	hasRelationships, err := c.edges.HasEdges(ctx, concept.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check relationships: %w", err)
	}
	if hasRelationships {
		completeness += 0.3
	} else {
		issues = append(issues, "No SKOS relationships (broader, narrower, related)")
	}

	// One minor issue is tolerated.
	promotionReady := completeness >= 0.7 && formatValid && len(issues) <= 1

	return &models.ClassificationResult{
		TargetType:        models.TargetConcept,
		TargetID:          concept.ID,
		ClassifierID:      c.ID(),
		ClassifierVersion: c.Version(),
		Scores: map[string]any{
			"completeness":      round2(completeness),
			"format_valid":      formatValid,
			"has_relationships": hasRelationships,
			"promotion_ready":   promotionReady,
		},
		Labels:     map[string]any{"issues": issueList(issues)},
		Confidence: confidence(1.0),
		Rationale:  issueRationale(issues),
		InputHash:  utils.InputHash(concept.PreferredLabel + "|" + concept.Definition),
	}, nil
}

func (c *RuleClassifier) classifyEntity(target models.Target) (*models.ClassificationResult, error) {
	entity := target.Entity
	var issues []string

	completeness := 0.0
	if entity.Title != "" {
		completeness += 0.2
	} else {
		issues = append(issues, "Missing title")
	}
	if entity.AssetType != "" {
		completeness += 0.1
	} else {
		issues = append(issues, "Missing asset_type")
	}
	if entity.PrimaryConceptID != nil {
		completeness += 0.3
	} else {
		issues = append(issues, "Orphan entity (no primary_concept_id)")
	}

	hasFilespec := entity.Filespec.URI != ""
	if hasFilespec {
		completeness += 0.2
	} else {
		issues = append(issues, "Missing filespec.uri")
	}

	hasAttribution := entity.Attribution.Creator != ""
	if hasAttribution {
		completeness += 0.2
	} else {
		issues = append(issues, "Missing attribution.creator")
	}

	// An orphan entity is never promotable regardless of completeness.
	promotionReady := completeness >= 0.7 && entity.PrimaryConceptID != nil

	primaryConcept := ""
	if entity.PrimaryConceptID != nil {
		primaryConcept = *entity.PrimaryConceptID
	}

	return &models.ClassificationResult{
		TargetType:        models.TargetEntity,
		TargetID:          entity.ID,
		ClassifierID:      c.ID(),
		ClassifierVersion: c.Version(),
		Scores: map[string]any{
			"completeness":    round2(completeness),
			"is_orphan":       entity.PrimaryConceptID == nil,
			"has_filespec":    hasFilespec,
			"has_attribution": hasAttribution,
			"promotion_ready": promotionReady,
		},
		Labels:     map[string]any{"issues": issueList(issues)},
		Confidence: confidence(1.0),
		Rationale:  issueRationale(issues),
		InputHash:  utils.InputHash(entity.Title + "|" + entity.AssetType + "|" + primaryConcept),
	}, nil
}

// isCircularDefinition flags short definitions that lead with the term
// they define.
func isCircularDefinition(label, definition string) bool {
	if label == "" || utf8.RuneCountInString(definition) >= 50 {
		return false
	}
	return strings.Contains(strings.ToLower(definition), strings.ToLower(label))
}

func issueRationale(issues []string) string {
	if len(issues) == 0 {
		return "All validation rules passed"
	}
	return "Issues found: " + strings.Join(issues, "; ")
}

// issueList keeps the issues label a JSON array even when empty.
func issueList(issues []string) []string {
	if issues == nil {
		return []string{}
	}
	return issues
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
