package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/semops/curator/internal/graph/neo4j"
	"github.com/semops/curator/internal/storage/models"
	"github.com/semops/curator/pkg/utils"
)

const (
	// minConnections below which a concept is an orphan in the graph.
	minConnections = 1
	// minPagerankPercentile below which a concept is flagged as low
	// importance.
	minPagerankPercentile = 0.1
	// connectivityCap is the degree at which connectivity saturates at 1.0.
	connectivityCap = 10.0
)

// GraphMirror is the slice of the graph client the classifier needs.
type GraphMirror interface {
	GetNodeStats(ctx context.Context, conceptID string) (*neo4j.NodeStats, error)
	HasHierarchyCycle(ctx context.Context, conceptID string) (bool, error)
	FindNearestApproved(ctx context.Context, conceptID string) (*neo4j.NearestApproved, error)
	PagerankPercentile(ctx context.Context, pagerank float64) (float64, error)
}

// GraphClassifier scores concepts by their structural position in the
// graph mirror: degree, hierarchy validity, pagerank percentile, and
// reachability of the approved core.
type GraphClassifier struct {
	mirror         GraphMirror
	pagerankMaxAge time.Duration
	now            func() time.Time
}

func NewGraphClassifier(mirror GraphMirror, pagerankMaxAge time.Duration) *GraphClassifier {
	return &GraphClassifier{
		mirror:         mirror,
		pagerankMaxAge: pagerankMaxAge,
		now:            time.Now,
	}
}

func (c *GraphClassifier) ID() string      { return "graph-structure-v1" }
func (c *GraphClassifier) Version() string { return "1.0.0" }

func (c *GraphClassifier) Classify(ctx context.Context, target models.Target) (*models.ClassificationResult, error) {
	if target.Type != models.TargetConcept {
		return skippedResult(c, target,
			"Graph classification only supports concepts",
			"Entity graph classification not implemented"), nil
	}
	concept := target.Concept

	stats, err := c.mirror.GetNodeStats(ctx, concept.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get node stats: %w", err)
	}

	if !stats.Exists {
		result := errorResult(c, target,
			"Concept not found in graph mirror - run sync first",
			"Concept must be synced to the graph mirror before graph classification")
		result.Scores["in_mirror"] = false
		return result, nil
	}

	hasCycle, err := c.mirror.HasHierarchyCycle(ctx, concept.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check hierarchy cycle: %w", err)
	}

	nearest, err := c.mirror.FindNearestApproved(ctx, concept.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearest approved: %w", err)
	}

	degree := stats.Degree
	isOrphan := degree < minConnections
	connectivity := minFloat(float64(degree)/connectivityCap, 1.0)

	percentile := 0.0
	pagerankStale := true
	if stats.Pagerank != nil {
		percentile, err = c.mirror.PagerankPercentile(ctx, *stats.Pagerank)
		if err != nil {
			return nil, fmt.Errorf("failed to compute pagerank percentile: %w", err)
		}
		if stats.PagerankUpdatedAt != nil {
			pagerankStale = c.now().Sub(*stats.PagerankUpdatedAt) > c.pagerankMaxAge
		}
	}

	promotionReady := !isOrphan && !hasCycle && percentile >= minPagerankPercentile

	scores := map[string]any{
		"degree":              degree,
		"connectivity":        round3(connectivity),
		"pagerank_percentile": round3(percentile),
		"pagerank_stale":      pagerankStale,
		"is_orphan":           isOrphan,
		"has_hierarchy_cycle": hasCycle,
		"promotion_ready":     promotionReady,
	}
	if stats.Pagerank != nil {
		scores["pagerank"] = *stats.Pagerank
	}
	if nearest != nil {
		scores["distance_to_approved"] = nearest.Hops
	}

	labels := map[string]any{}
	if stats.Community != nil {
		labels["community"] = *stats.Community
	}
	if nearest != nil {
		labels["nearest_approved"] = nearest.ConceptID
	}
	if isOrphan {
		labels["issue"] = "orphan"
	} else if hasCycle {
		labels["issue"] = "hierarchy_cycle"
	}

	rationaleParts := []string{fmt.Sprintf("Degree: %d connections", degree)}
	if isOrphan {
		rationaleParts = append(rationaleParts, "ORPHAN: No connections to other concepts")
	}
	if hasCycle {
		rationaleParts = append(rationaleParts, "CYCLE: Part of broader/narrower cycle")
	}
	if stats.Pagerank != nil {
		rationaleParts = append(rationaleParts,
			fmt.Sprintf("PageRank: %.0f%% percentile", percentile*100))
	}
	if nearest != nil {
		rationaleParts = append(rationaleParts,
			fmt.Sprintf("Nearest approved: %s (%d hops)", nearest.ConceptID, nearest.Hops))
	}

	return &models.ClassificationResult{
		TargetType:        models.TargetConcept,
		TargetID:          concept.ID,
		ClassifierID:      c.ID(),
		ClassifierVersion: c.Version(),
		Scores:            scores,
		Labels:            labels,
		Confidence:        confidence(0.95),
		Rationale:         joinRationale(rationaleParts),
		InputHash:         utils.InputHash(concept.ID + "|" + string(concept.ApprovalStatus)),
	}, nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
