package classifier

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semops/curator/internal/storage/models"
)

func completeConcept() *models.Concept {
	return &models.Concept{
		ID:             "c-1",
		PreferredLabel: "Semantic Versioning",
		Definition:     "A scheme for assigning version numbers that conveys meaning about underlying changes.",
		Provenance:     models.ProvenanceFirstParty,
		ApprovalStatus: models.StatusPending,
	}
}

func TestRuleClassifierConceptAllRulesPass(t *testing.T) {
	c := NewRuleClassifier(&fakeEdgeChecker{hasEdges: true})

	result, err := c.Classify(context.Background(), models.ConceptTarget(completeConcept()))
	require.NoError(t, err)

	assert.Equal(t, "rule-completeness-v1", result.ClassifierID)
	assert.Equal(t, "1.0.0", result.ClassifierVersion)
	assert.Equal(t, 1.0, result.Scores["completeness"])
	assert.Equal(t, true, result.Scores["format_valid"])
	assert.Equal(t, true, result.Scores["has_relationships"])
	assert.True(t, result.PromotionReady())
	assert.Equal(t, "All validation rules passed", result.Rationale)
	require.NotNil(t, result.Confidence)
	assert.Equal(t, 1.0, *result.Confidence)
	assert.Empty(t, result.Labels["issues"])
}

func TestRuleClassifierConceptMissingDefinition(t *testing.T) {
	concept := completeConcept()
	concept.Definition = ""
	c := NewRuleClassifier(&fakeEdgeChecker{hasEdges: true})

	result, err := c.Classify(context.Background(), models.ConceptTarget(concept))
	require.NoError(t, err)

	assert.Equal(t, 0.6, result.Scores["completeness"])
	assert.False(t, result.PromotionReady())
	assert.Contains(t, result.Rationale, "Missing definition")
}

func TestRuleClassifierConceptShortDefinition(t *testing.T) {
	concept := completeConcept()
	concept.Definition = "Too short."
	c := NewRuleClassifier(&fakeEdgeChecker{hasEdges: true})

	result, err := c.Classify(context.Background(), models.ConceptTarget(concept))
	require.NoError(t, err)

	assert.Equal(t, false, result.Scores["format_valid"])
	assert.False(t, result.PromotionReady())
	assert.Contains(t, result.Rationale, "Definition too short")
}

func TestRuleClassifierConceptDefinitionLengthCountsCharacters(t *testing.T) {
	// Ten CJK characters are thirty bytes; the window is measured in
	// characters, so this is still too short.
	concept := completeConcept()
	concept.Definition = "概念の短い定義です。"
	c := NewRuleClassifier(&fakeEdgeChecker{hasEdges: true})

	result, err := c.Classify(context.Background(), models.ConceptTarget(concept))
	require.NoError(t, err)

	assert.Equal(t, false, result.Scores["format_valid"])
	assert.False(t, result.PromotionReady())
	assert.Contains(t, result.Rationale, "Definition too short")

	// Twenty-five characters clears the minimum even though the label
	// never appears in it.
	concept.Definition = strings.Repeat("意", 25)
	result, err = c.Classify(context.Background(), models.ConceptTarget(concept))
	require.NoError(t, err)

	assert.Equal(t, true, result.Scores["format_valid"])
}

func TestRuleClassifierConceptLongDefinition(t *testing.T) {
	concept := completeConcept()
	concept.Definition = strings.Repeat("x", 2001)
	c := NewRuleClassifier(&fakeEdgeChecker{hasEdges: true})

	result, err := c.Classify(context.Background(), models.ConceptTarget(concept))
	require.NoError(t, err)

	assert.Equal(t, false, result.Scores["format_valid"])
	assert.Contains(t, result.Rationale, "Definition too long")
}

func TestRuleClassifierConceptCircularDefinition(t *testing.T) {
	concept := completeConcept()
	concept.PreferredLabel = "Versioning"
	concept.Definition = "Versioning is versioning of things."
	c := NewRuleClassifier(&fakeEdgeChecker{hasEdges: true})

	result, err := c.Classify(context.Background(), models.ConceptTarget(concept))
	require.NoError(t, err)

	assert.Equal(t, false, result.Scores["format_valid"])
	assert.Contains(t, result.Rationale, "circular")
}

func TestRuleClassifierConceptNoRelationshipsIsOneIssue(t *testing.T) {
	// A single minor issue is tolerated: completeness 0.7 with one issue
	// still promotes.
	c := NewRuleClassifier(&fakeEdgeChecker{hasEdges: false})

	result, err := c.Classify(context.Background(), models.ConceptTarget(completeConcept()))
	require.NoError(t, err)

	assert.Equal(t, 0.7, result.Scores["completeness"])
	assert.Equal(t, false, result.Scores["has_relationships"])
	assert.True(t, result.PromotionReady())
}

func TestRuleClassifierDeterministic(t *testing.T) {
	c := NewRuleClassifier(&fakeEdgeChecker{hasEdges: true})
	target := models.ConceptTarget(completeConcept())

	first, err := c.Classify(context.Background(), target)
	require.NoError(t, err)
	second, err := c.Classify(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, first.Scores, second.Scores)
	assert.Equal(t, first.InputHash, second.InputHash)
	assert.True(t, strings.HasPrefix(first.InputHash, "sha256:"))
}

func completeEntity() *models.Entity {
	primary := "c-1"
	return &models.Entity{
		ID:               "e-1",
		Title:            "Intro to Semantic Versioning",
		AssetType:        "blog_post",
		PrimaryConceptID: &primary,
		Filespec:         models.Filespec{URI: "s3://assets/semver.md"},
		Attribution:      models.Attribution{Creator: "docs-team"},
		Visibility:       "public",
		ApprovalStatus:   models.StatusPending,
	}
}

func TestRuleClassifierEntityAllRulesPass(t *testing.T) {
	c := NewRuleClassifier(&fakeEdgeChecker{})

	result, err := c.Classify(context.Background(), models.EntityTarget(completeEntity()))
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.Scores["completeness"])
	assert.Equal(t, false, result.Scores["is_orphan"])
	assert.True(t, result.PromotionReady())
}

func TestRuleClassifierEntityOrphanNeverPromotes(t *testing.T) {
	// Without a primary concept the entity stays blocked even when every
	// other field is present.
	entity := completeEntity()
	entity.PrimaryConceptID = nil
	c := NewRuleClassifier(&fakeEdgeChecker{})

	result, err := c.Classify(context.Background(), models.EntityTarget(entity))
	require.NoError(t, err)

	assert.Equal(t, 0.7, result.Scores["completeness"])
	assert.Equal(t, true, result.Scores["is_orphan"])
	assert.False(t, result.PromotionReady())
	assert.Contains(t, result.Rationale, "Orphan entity")
}

func TestRuleClassifierEntityMissingAttribution(t *testing.T) {
	entity := completeEntity()
	entity.Attribution.Creator = ""
	c := NewRuleClassifier(&fakeEdgeChecker{})

	result, err := c.Classify(context.Background(), models.EntityTarget(entity))
	require.NoError(t, err)

	assert.Equal(t, 0.8, result.Scores["completeness"])
	assert.Equal(t, false, result.Scores["has_attribution"])
	assert.True(t, result.PromotionReady())
}
