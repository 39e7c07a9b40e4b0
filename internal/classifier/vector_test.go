package classifier

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semops/curator/internal/storage/models"
	"github.com/semops/curator/internal/storage/sqlite"
)

func coherentStore(conceptID string) *fakeVectorStore {
	store := newFakeVectorStore()
	store.embeddings["hosted|"+conceptID] = []float32{0.1, 0.2}
	store.neighbors[conceptID] = []string{"n-1", "n-2"}
	store.neighborSim[conceptID] = 0.75
	store.neighborOK[conceptID] = true
	store.approvedID = "approved-1"
	store.approvedSim = 0.82
	store.hasApproved = true
	store.anyID = "other-1"
	store.anySim = 0.88
	store.hasAny = true
	return store
}

func TestVectorClassifierCoherentConcept(t *testing.T) {
	concept := completeConcept()
	store := coherentStore(concept.ID)
	c := NewHostedVectorClassifier(&fakeEmbedder{}, store)

	result, err := c.Classify(context.Background(), models.ConceptTarget(concept))
	require.NoError(t, err)

	assert.Equal(t, "embedding-coherence-v1", result.ClassifierID)
	assert.Equal(t, 0.75, result.Scores["coherence"])
	assert.Equal(t, 2, result.Scores["related_count"])
	assert.Equal(t, true, result.Scores["is_coherent"])
	assert.Equal(t, false, result.Scores["is_potential_duplicate"])
	assert.Equal(t, false, result.Scores["is_orphan"])
	assert.True(t, result.PromotionReady())
	assert.Equal(t, "approved-1", result.Labels["nearest_approved"])
	require.NotNil(t, result.Confidence)
	assert.Equal(t, 0.85, *result.Confidence)
}

func TestVectorClassifierDuplicateBlocks(t *testing.T) {
	concept := completeConcept()
	store := coherentStore(concept.ID)
	store.anySim = 0.96
	c := NewHostedVectorClassifier(&fakeEmbedder{}, store)

	result, err := c.Classify(context.Background(), models.ConceptTarget(concept))
	require.NoError(t, err)

	assert.Equal(t, true, result.Scores["is_potential_duplicate"])
	assert.False(t, result.PromotionReady())
	assert.Equal(t, "other-1", result.Labels["potential_duplicate"])
	assert.Contains(t, result.Rationale, "Potential duplicate")
}

func TestVectorClassifierOrphanByDistance(t *testing.T) {
	concept := completeConcept()
	store := coherentStore(concept.ID)
	store.approvedSim = 0.55
	c := NewHostedVectorClassifier(&fakeEmbedder{}, store)

	result, err := c.Classify(context.Background(), models.ConceptTarget(concept))
	require.NoError(t, err)

	assert.Equal(t, true, result.Scores["is_orphan"])
	assert.False(t, result.PromotionReady())
	assert.Contains(t, result.Rationale, "Low similarity to approved concepts")
}

func TestVectorClassifierNoApprovedCoreIsNotOrphan(t *testing.T) {
	// With an empty approved set the orphan signal is simply absent.
	concept := completeConcept()
	store := coherentStore(concept.ID)
	store.hasApproved = false
	c := NewHostedVectorClassifier(&fakeEmbedder{}, store)

	result, err := c.Classify(context.Background(), models.ConceptTarget(concept))
	require.NoError(t, err)

	assert.Equal(t, false, result.Scores["is_orphan"])
	assert.NotContains(t, result.Scores, "nearest_approved_similarity")
	assert.True(t, result.PromotionReady())
}

func TestVectorClassifierNoNeighborsNeutralPass(t *testing.T) {
	concept := completeConcept()
	store := coherentStore(concept.ID)
	store.neighbors[concept.ID] = nil
	c := NewHostedVectorClassifier(&fakeEmbedder{}, store)

	result, err := c.Classify(context.Background(), models.ConceptTarget(concept))
	require.NoError(t, err)

	assert.Equal(t, 0.5, result.Scores["coherence"])
	assert.Equal(t, 0, result.Scores["related_count"])
	assert.Equal(t, true, result.Scores["is_coherent"])
	assert.True(t, result.PromotionReady())
}

func TestVectorClassifierIncoherentConcept(t *testing.T) {
	concept := completeConcept()
	store := coherentStore(concept.ID)
	store.neighborSim[concept.ID] = 0.41
	c := NewHostedVectorClassifier(&fakeEmbedder{}, store)

	result, err := c.Classify(context.Background(), models.ConceptTarget(concept))
	require.NoError(t, err)

	assert.Equal(t, false, result.Scores["is_coherent"])
	assert.False(t, result.PromotionReady())
}

func TestVectorClassifierGeneratesMissingEmbedding(t *testing.T) {
	concept := completeConcept()
	store := coherentStore(concept.ID)
	delete(store.embeddings, "hosted|"+concept.ID)
	embedder := &fakeEmbedder{vector: []float32{0.5, 0.5}}
	c := NewHostedVectorClassifier(embedder, store)

	result, err := c.Classify(context.Background(), models.ConceptTarget(concept))
	require.NoError(t, err)

	assert.False(t, result.IsError())
	assert.Equal(t, int64(1), embedder.calls.Load())
	assert.Contains(t, store.embeddings, "hosted|"+concept.ID)
}

func TestVectorClassifierEmbeddingFailureIsErrorResult(t *testing.T) {
	concept := completeConcept()
	store := newFakeVectorStore()
	c := NewHostedVectorClassifier(&fakeEmbedder{err: errProvider}, store)

	result, err := c.Classify(context.Background(), models.ConceptTarget(concept))
	require.NoError(t, err)

	assert.True(t, result.IsError())
	assert.Nil(t, result.Confidence)
	assert.Equal(t, "Could not generate embedding", result.Labels["reason"])
}

func TestVectorClassifierSkipsEntities(t *testing.T) {
	c := NewHostedVectorClassifier(&fakeEmbedder{}, newFakeVectorStore())

	result, err := c.Classify(context.Background(), models.EntityTarget(completeEntity()))
	require.NoError(t, err)

	assert.Equal(t, true, result.Scores["skipped"])
	assert.False(t, result.PromotionReady())
}

func TestVectorClassifierDuplicatesFlagEachOther(t *testing.T) {
	// Two near-identical pending concepts each get the other as their
	// potential duplicate when classified in the same run.
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "dup.db"), 3, 2)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.InitSchema())

	ctx := context.Background()
	pair := []*models.Concept{
		{
			ID:             "c-a",
			PreferredLabel: "Semantic Versioning",
			Definition:     "A scheme for assigning version numbers that conveys meaning.",
			Provenance:     models.ProvenanceFirstParty,
			ApprovalStatus: models.StatusPending,
		},
		{
			ID:             "c-b",
			PreferredLabel: "Semantic Version Numbering",
			Definition:     "A scheme for assigning version numbers that conveys meaning.",
			Provenance:     models.ProvenanceFirstParty,
			ApprovalStatus: models.StatusPending,
		},
	}
	for _, concept := range pair {
		require.NoError(t, store.InsertConcept(ctx, concept))
		require.NoError(t, store.StoreEmbedding(ctx, models.SpaceHosted, concept.ID, []float32{1, 0, 0}))
	}

	c := NewHostedVectorClassifier(&fakeEmbedder{}, store)

	resultA, err := c.Classify(ctx, models.ConceptTarget(pair[0]))
	require.NoError(t, err)
	resultB, err := c.Classify(ctx, models.ConceptTarget(pair[1]))
	require.NoError(t, err)

	assert.Equal(t, true, resultA.Scores["is_potential_duplicate"])
	assert.Equal(t, "c-b", resultA.Labels["potential_duplicate"])
	assert.False(t, resultA.PromotionReady())

	assert.Equal(t, true, resultB.Scores["is_potential_duplicate"])
	assert.Equal(t, "c-a", resultB.Labels["potential_duplicate"])
	assert.False(t, resultB.PromotionReady())
}

func TestLocalVariantUsesOwnSpace(t *testing.T) {
	concept := completeConcept()
	store := newFakeVectorStore()
	store.embeddings["local|"+concept.ID] = []float32{0.1}
	store.hasAny = false
	c := NewLocalVectorClassifier(&fakeEmbedder{}, store)

	result, err := c.Classify(context.Background(), models.ConceptTarget(concept))
	require.NoError(t, err)

	assert.Equal(t, "embedding-local-v1", result.ClassifierID)
	assert.False(t, result.IsError())
	assert.NotContains(t, store.embeddings, "hosted|"+concept.ID)
}
