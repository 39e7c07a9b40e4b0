package classifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semops/curator/internal/graph/neo4j"
	"github.com/semops/curator/internal/storage/models"
)

func wellConnectedMirror() *fakeMirror {
	pagerank := 0.042
	community := int64(7)
	updated := time.Now().Add(-1 * time.Hour).UTC()
	return &fakeMirror{
		stats: &neo4j.NodeStats{
			Exists:            true,
			Degree:            4,
			Pagerank:          &pagerank,
			Community:         &community,
			ApprovalStatus:    "pending",
			PagerankUpdatedAt: &updated,
		},
		nearest:    &neo4j.NearestApproved{ConceptID: "approved-1", Hops: 2},
		percentile: 0.62,
	}
}

func newTestGraphClassifier(mirror *fakeMirror) *GraphClassifier {
	return NewGraphClassifier(mirror, 24*time.Hour)
}

func TestGraphClassifierWellConnectedConcept(t *testing.T) {
	c := newTestGraphClassifier(wellConnectedMirror())

	result, err := c.Classify(context.Background(), models.ConceptTarget(completeConcept()))
	require.NoError(t, err)

	assert.Equal(t, "graph-structure-v1", result.ClassifierID)
	assert.Equal(t, int64(4), result.Scores["degree"])
	assert.Equal(t, 0.4, result.Scores["connectivity"])
	assert.Equal(t, 0.62, result.Scores["pagerank_percentile"])
	assert.Equal(t, false, result.Scores["pagerank_stale"])
	assert.Equal(t, false, result.Scores["is_orphan"])
	assert.Equal(t, false, result.Scores["has_hierarchy_cycle"])
	assert.True(t, result.PromotionReady())
	assert.Equal(t, int64(7), result.Labels["community"])
	assert.Equal(t, "approved-1", result.Labels["nearest_approved"])
	require.NotNil(t, result.Confidence)
	assert.Equal(t, 0.95, *result.Confidence)
}

func TestGraphClassifierOrphanDominates(t *testing.T) {
	// Zero edges blocks promotion no matter what else looks good.
	mirror := wellConnectedMirror()
	mirror.stats.Degree = 0
	mirror.percentile = 0.9
	c := newTestGraphClassifier(mirror)

	result, err := c.Classify(context.Background(), models.ConceptTarget(completeConcept()))
	require.NoError(t, err)

	assert.Equal(t, true, result.Scores["is_orphan"])
	assert.Equal(t, 0.0, result.Scores["connectivity"])
	assert.False(t, result.PromotionReady())
	assert.Equal(t, "orphan", result.Labels["issue"])
	assert.Contains(t, result.Rationale, "ORPHAN")
}

func TestGraphClassifierHierarchyCycleBlocks(t *testing.T) {
	mirror := wellConnectedMirror()
	mirror.hasCycle = true
	c := newTestGraphClassifier(mirror)

	result, err := c.Classify(context.Background(), models.ConceptTarget(completeConcept()))
	require.NoError(t, err)

	assert.Equal(t, true, result.Scores["has_hierarchy_cycle"])
	assert.False(t, result.PromotionReady())
	assert.Equal(t, "hierarchy_cycle", result.Labels["issue"])
}

func TestGraphClassifierLowPercentileBlocks(t *testing.T) {
	mirror := wellConnectedMirror()
	mirror.percentile = 0.05
	c := newTestGraphClassifier(mirror)

	result, err := c.Classify(context.Background(), models.ConceptTarget(completeConcept()))
	require.NoError(t, err)

	assert.False(t, result.PromotionReady())
}

func TestGraphClassifierConnectivityCapsAtOne(t *testing.T) {
	mirror := wellConnectedMirror()
	mirror.stats.Degree = 25
	c := newTestGraphClassifier(mirror)

	result, err := c.Classify(context.Background(), models.ConceptTarget(completeConcept()))
	require.NoError(t, err)

	assert.Equal(t, 1.0, result.Scores["connectivity"])
}

func TestGraphClassifierStalePagerank(t *testing.T) {
	mirror := wellConnectedMirror()
	old := time.Now().Add(-48 * time.Hour).UTC()
	mirror.stats.PagerankUpdatedAt = &old
	c := newTestGraphClassifier(mirror)

	result, err := c.Classify(context.Background(), models.ConceptTarget(completeConcept()))
	require.NoError(t, err)

	assert.Equal(t, true, result.Scores["pagerank_stale"])
}

func TestGraphClassifierMissingPagerank(t *testing.T) {
	mirror := wellConnectedMirror()
	mirror.stats.Pagerank = nil
	c := newTestGraphClassifier(mirror)

	result, err := c.Classify(context.Background(), models.ConceptTarget(completeConcept()))
	require.NoError(t, err)

	assert.Equal(t, 0.0, result.Scores["pagerank_percentile"])
	assert.Equal(t, true, result.Scores["pagerank_stale"])
	assert.NotContains(t, result.Scores, "pagerank")
	assert.False(t, result.PromotionReady())
}

func TestGraphClassifierCycleCheckFailureIsNotAVerdict(t *testing.T) {
	// A broken cycle query must never fail open into a promotion-ready
	// result; the target is retried on the next run instead.
	mirror := wellConnectedMirror()
	mirror.cycleErr = errProvider
	c := newTestGraphClassifier(mirror)

	result, err := c.Classify(context.Background(), models.ConceptTarget(completeConcept()))
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestGraphClassifierNotSyncedIsErrorResult(t *testing.T) {
	c := newTestGraphClassifier(&fakeMirror{stats: &neo4j.NodeStats{Exists: false}})

	result, err := c.Classify(context.Background(), models.ConceptTarget(completeConcept()))
	require.NoError(t, err)

	assert.True(t, result.IsError())
	assert.Equal(t, false, result.Scores["in_mirror"])
	assert.Nil(t, result.Confidence)
	assert.Contains(t, result.Rationale, "synced")
}

func TestGraphClassifierSkipsEntities(t *testing.T) {
	c := newTestGraphClassifier(wellConnectedMirror())

	result, err := c.Classify(context.Background(), models.EntityTarget(completeEntity()))
	require.NoError(t, err)

	assert.Equal(t, true, result.Scores["skipped"])
}
