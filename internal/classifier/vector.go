package classifier

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/semops/curator/internal/metrics"
	"github.com/semops/curator/internal/provider/embedding"
	"github.com/semops/curator/internal/storage/models"
	"github.com/semops/curator/pkg/logger"
	"github.com/semops/curator/pkg/utils"
)

const (
	coherenceThreshold = 0.60
	duplicateThreshold = 0.95
	orphanThreshold    = 0.70

	// neutralCoherence is assigned when a concept has no edge-neighbors
	// to measure against. Isolation is the rule classifier's concern.
	neutralCoherence = 0.5
)

// VectorStore is the slice of the store the vector classifiers need.
type VectorStore interface {
	NeighborIDs(ctx context.Context, conceptID string) ([]string, error)
	HasEmbedding(ctx context.Context, space models.EmbeddingSpace, conceptID string) (bool, error)
	StoreEmbedding(ctx context.Context, space models.EmbeddingSpace, conceptID string, embedding []float32) error
	MeanNeighborSimilarity(ctx context.Context, space models.EmbeddingSpace, conceptID string, neighborIDs []string) (float64, bool, error)
	NearestApproved(ctx context.Context, space models.EmbeddingSpace, conceptID string) (string, float64, bool, error)
	NearestAny(ctx context.Context, space models.EmbeddingSpace, conceptID string) (string, float64, bool, error)
}

// VectorClassifier scores concepts by embedding similarity: coherence with
// neighbors, near-duplicate detection, and semantic distance to the
// approved first-party core. The hosted and local variants share the
// algorithm and differ only in provider, space, and id.
type VectorClassifier struct {
	id       string
	space    models.EmbeddingSpace
	embedder embedding.Embedder
	store    VectorStore
	group    singleflight.Group
}

// NewHostedVectorClassifier scores against the hosted embedding space.
func NewHostedVectorClassifier(embedder embedding.Embedder, store VectorStore) *VectorClassifier {
	return &VectorClassifier{
		id:       "embedding-coherence-v1",
		space:    models.SpaceHosted,
		embedder: embedder,
		store:    store,
	}
}

// NewLocalVectorClassifier scores against the local embedding space.
func NewLocalVectorClassifier(embedder embedding.Embedder, store VectorStore) *VectorClassifier {
	return &VectorClassifier{
		id:       "embedding-local-v1",
		space:    models.SpaceLocal,
		embedder: embedder,
		store:    store,
	}
}

func (c *VectorClassifier) ID() string      { return c.id }
func (c *VectorClassifier) Version() string { return "1.0.0" }

func (c *VectorClassifier) Classify(ctx context.Context, target models.Target) (*models.ClassificationResult, error) {
	if target.Type != models.TargetConcept {
		return skippedResult(c, target,
			"Embedding classification only supports concepts",
			"Entity embedding classification not implemented"), nil
	}
	concept := target.Concept

	if err := c.ensureEmbedding(ctx, concept); err != nil {
		logger.Warn("Embedding generation failed",
			zap.String("concept_id", concept.ID),
			zap.String("space", string(c.space)),
			zap.Error(err),
		)
		return errorResult(c, target,
			"Could not generate embedding",
			"Failed to generate embedding for concept"), nil
	}

	neighborIDs, err := c.store.NeighborIDs(ctx, concept.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch neighbors: %w", err)
	}

	coherence := neutralCoherence
	measured := false
	if len(neighborIDs) > 0 {
		coherence, measured, err = c.store.MeanNeighborSimilarity(ctx, c.space, concept.ID, neighborIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to compute coherence: %w", err)
		}
		if !measured {
			coherence = neutralCoherence
		}
	}

	nearestID, nearestSim, hasApproved, err := c.store.NearestApproved(ctx, c.space, concept.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearest approved concept: %w", err)
	}

	duplicateID, duplicateSim, hasDuplicate, err := c.store.NearestAny(ctx, c.space, concept.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find potential duplicate: %w", err)
	}

	// Unmeasured coherence is a neutral pass: isolation is penalized by
	// the rule and graph strategies, not here.
	isCoherent := !measured || coherence >= coherenceThreshold
	isPotentialDuplicate := hasDuplicate && duplicateSim >= duplicateThreshold
	// An empty approved core cannot orphan anything.
	isOrphan := hasApproved && nearestSim < orphanThreshold

	promotionReady := isCoherent && !isPotentialDuplicate && !isOrphan

	scores := map[string]any{
		"coherence":              round3(coherence),
		"related_count":          len(neighborIDs),
		"is_coherent":            isCoherent,
		"is_potential_duplicate": isPotentialDuplicate,
		"is_orphan":              isOrphan,
		"promotion_ready":        promotionReady,
	}
	if hasApproved {
		scores["nearest_approved_similarity"] = round3(nearestSim)
	}
	if hasDuplicate {
		scores["duplicate_similarity"] = round3(duplicateSim)
	}

	labels := map[string]any{}
	if hasApproved {
		labels["nearest_approved"] = nearestID
	}
	if isPotentialDuplicate {
		labels["potential_duplicate"] = duplicateID
	}

	var rationaleParts []string
	if measured {
		rationaleParts = append(rationaleParts,
			fmt.Sprintf("Coherence with %d related concepts: %.2f", len(neighborIDs), coherence))
	}
	if isPotentialDuplicate {
		rationaleParts = append(rationaleParts,
			fmt.Sprintf("Potential duplicate of '%s' (similarity: %.2f)", duplicateID, duplicateSim))
	}
	if isOrphan {
		rationaleParts = append(rationaleParts,
			fmt.Sprintf("Low similarity to approved concepts (nearest: %.2f)", nearestSim))
	}
	if len(rationaleParts) == 0 {
		rationaleParts = append(rationaleParts, "Embedding analysis complete, no issues found")
	}

	return &models.ClassificationResult{
		TargetType:        models.TargetConcept,
		TargetID:          concept.ID,
		ClassifierID:      c.ID(),
		ClassifierVersion: c.Version(),
		Scores:            scores,
		Labels:            labels,
		Confidence:        confidence(0.85),
		Rationale:         joinRationale(rationaleParts),
		InputHash:         utils.InputHash(concept.PreferredLabel + "|" + concept.Definition),
	}, nil
}

// ensureEmbedding generates and stores the concept's vector if missing.
// Concurrent requests for the same concept and space collapse onto one
// provider call.
func (c *VectorClassifier) ensureEmbedding(ctx context.Context, concept *models.Concept) error {
	exists, err := c.store.HasEmbedding(ctx, c.space, concept.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	key := string(c.space) + "|" + concept.ID
	_, err, _ = c.group.Do(key, func() (any, error) {
		// Re-check under the flight: another caller may have stored it.
		exists, err := c.store.HasEmbedding(ctx, c.space, concept.ID)
		if err != nil || exists {
			return nil, err
		}

		text := concept.PreferredLabel + ": " + concept.Definition
		vector, err := c.embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		if err := c.store.StoreEmbedding(ctx, c.space, concept.ID, vector); err != nil {
			return nil, err
		}

		metrics.EmbeddingsGenerated.WithLabelValues(string(c.space)).Inc()
		logger.Debug("Embedding generated",
			zap.String("concept_id", concept.ID),
			zap.String("space", string(c.space)),
			zap.String("model", c.embedder.Model()),
		)
		return nil, nil
	})
	return err
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
