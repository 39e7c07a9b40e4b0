// Package neo4j reads structural signals from the graph mirror. The mirror
// is populated by the sync pipeline; this client never creates concept
// nodes or edges, it only reads them and writes back algorithm results.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/semops/curator/pkg/circuitbreaker"
	"github.com/semops/curator/pkg/logger"
	"github.com/semops/curator/pkg/retry"
)

const projectionName = "concept-graph"

type Client struct {
	driver      neo4j.DriverWithContext
	cb          *circuitbreaker.Breaker
	retryConfig retry.Config
	timeout     time.Duration
}

// NodeStats is the structural snapshot of one concept in the mirror.
type NodeStats struct {
	Exists            bool
	Degree            int64
	Pagerank          *float64
	Community         *int64
	ApprovalStatus    string
	PagerankUpdatedAt *time.Time
}

// NearestApproved is the closest approved concept by path length.
type NearestApproved struct {
	ConceptID string
	Hops      int64
}

func NewClient(uri, username, password string, timeout time.Duration) (*Client, error) {
	auth := neo4j.NoAuth()
	if username != "" {
		auth = neo4j.BasicAuth(username, password, "")
	}

	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.New("neo4j", circuitbreaker.Config{
		FailureThreshold: 5,
		Cooldown:         20 * time.Second,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Neo4j client initialized", zap.String("uri", uri))

	return &Client{
		driver:      driver,
		cb:          cb,
		retryConfig: retryConfig,
		timeout:     timeout,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) executeWithRetry(ctx context.Context, operation func(context.Context, neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.cb.Do(func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: "neo4j"})
			defer session.Close(ctx)
			return operation(ctx, session)
		})
	})
}

// GetNodeStats returns degree, pagerank, and community for a concept, or
// Exists=false when the concept has not been synced to the mirror.
func (c *Client) GetNodeStats(ctx context.Context, conceptID string) (*NodeStats, error) {
	stats := &NodeStats{}

	err := c.executeWithRetry(ctx, func(ctx context.Context, session neo4j.SessionWithContext) error {
		result, err := session.Run(ctx, `
			MATCH (c:Concept {id: $id})
			OPTIONAL MATCH (c)-[r]-()
			RETURN c.approval_status AS approval_status,
			       count(r) AS degree,
			       c.pagerank AS pagerank,
			       c.community AS community,
			       c.pagerank_updated_at AS pagerank_updated_at
		`, map[string]any{"id": conceptID})
		if err != nil {
			return fmt.Errorf("failed to get node stats: %w", err)
		}

		record, err := result.Single(ctx)
		if err != nil {
			// No record means the concept is not in the mirror.
			return nil
		}

		stats.Exists = true

		if degree, ok := record.Get("degree"); ok && degree != nil {
			stats.Degree = degree.(int64)
		}
		if status, ok := record.Get("approval_status"); ok && status != nil {
			stats.ApprovalStatus = status.(string)
		}
		if pr, ok := record.Get("pagerank"); ok && pr != nil {
			v := pr.(float64)
			stats.Pagerank = &v
		}
		if community, ok := record.Get("community"); ok && community != nil {
			v := community.(int64)
			stats.Community = &v
		}
		if updated, ok := record.Get("pagerank_updated_at"); ok && updated != nil {
			if ms, ok := updated.(int64); ok {
				t := time.UnixMilli(ms).UTC()
				stats.PagerankUpdatedAt = &t
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// HasHierarchyCycle reports whether the concept sits on a BROADER cycle,
// checked up to depth 10.
func (c *Client) HasHierarchyCycle(ctx context.Context, conceptID string) (bool, error) {
	var hasCycle bool

	err := c.executeWithRetry(ctx, func(ctx context.Context, session neo4j.SessionWithContext) error {
		result, err := session.Run(ctx, `
			MATCH path = (c:Concept {id: $id})-[:BROADER*1..10]->(c)
			RETURN count(path) > 0 AS has_cycle
		`, map[string]any{"id": conceptID})
		if err != nil {
			return fmt.Errorf("failed to check hierarchy cycle: %w", err)
		}

		// The aggregate always yields one row; a Single failure is a
		// broken stream, not an absent node.
		record, err := result.Single(ctx)
		if err != nil {
			return fmt.Errorf("failed to read cycle check result: %w", err)
		}
		if v, ok := record.Get("has_cycle"); ok && v != nil {
			hasCycle = v.(bool)
		}
		return nil
	})
	return hasCycle, err
}

// FindNearestApproved finds the closest approved concept within 5 hops,
// or nil when none is reachable.
func (c *Client) FindNearestApproved(ctx context.Context, conceptID string) (*NearestApproved, error) {
	var nearest *NearestApproved

	err := c.executeWithRetry(ctx, func(ctx context.Context, session neo4j.SessionWithContext) error {
		result, err := session.Run(ctx, `
			MATCH (start:Concept {id: $id})
			MATCH path = shortestPath((start)-[*1..5]-(approved:Concept))
			WHERE approved.approval_status = 'approved'
			  AND approved.id <> $id
			RETURN approved.id AS nearest_id, length(path) AS distance
			ORDER BY length(path)
			LIMIT 1
		`, map[string]any{"id": conceptID})
		if err != nil {
			return fmt.Errorf("failed to find nearest approved: %w", err)
		}

		if result.Next(ctx) {
			record := result.Record()
			id, _ := record.Get("nearest_id")
			distance, _ := record.Get("distance")
			nearest = &NearestApproved{
				ConceptID: id.(string),
				Hops:      distance.(int64),
			}
		}
		return result.Err()
	})
	if err != nil {
		return nil, err
	}
	return nearest, nil
}

// PagerankPercentile returns the fraction of scored concepts whose
// pagerank is at or below the given value.
func (c *Client) PagerankPercentile(ctx context.Context, pagerank float64) (float64, error) {
	var percentile float64

	err := c.executeWithRetry(ctx, func(ctx context.Context, session neo4j.SessionWithContext) error {
		result, err := session.Run(ctx, `
			MATCH (c:Concept)
			WHERE c.pagerank IS NOT NULL
			WITH c.pagerank AS pr
			ORDER BY pr
			WITH collect(pr) AS scores
			RETURN size([s IN scores WHERE s <= $pagerank]) * 1.0 / size(scores) AS percentile
		`, map[string]any{"pagerank": pagerank})
		if err != nil {
			return fmt.Errorf("failed to compute pagerank percentile: %w", err)
		}

		record, err := result.Single(ctx)
		if err != nil {
			return fmt.Errorf("failed to read pagerank percentile: %w", err)
		}
		if v, ok := record.Get("percentile"); ok && v != nil {
			percentile = v.(float64)
		}
		return nil
	})
	return percentile, err
}

// RunPageRank computes pagerank over the full projection and writes the
// scores back to the nodes, stamping pagerank_updated_at for staleness
// checks.
func (c *Client) RunPageRank(ctx context.Context) error {
	if err := c.ensureProjection(ctx); err != nil {
		return err
	}

	err := c.executeWithRetry(ctx, func(ctx context.Context, session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `
			CALL gds.pageRank.write($graph, {writeProperty: 'pagerank'})
		`, map[string]any{"graph": projectionName})
		if err != nil {
			return fmt.Errorf("failed to run pagerank: %w", err)
		}

		_, err = session.Run(ctx, `
			MATCH (c:Concept)
			WHERE c.pagerank IS NOT NULL
			SET c.pagerank_updated_at = timestamp()
		`, nil)
		if err != nil {
			return fmt.Errorf("failed to stamp pagerank timestamp: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("PageRank computed and written to graph")
	return nil
}

// DetectCommunities runs Louvain over the projection and writes community
// ids back to the nodes.
func (c *Client) DetectCommunities(ctx context.Context) error {
	if err := c.ensureProjection(ctx); err != nil {
		return err
	}

	err := c.executeWithRetry(ctx, func(ctx context.Context, session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `
			CALL gds.louvain.write($graph, {writeProperty: 'community'})
		`, map[string]any{"graph": projectionName})
		if err != nil {
			return fmt.Errorf("failed to detect communities: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Community detection written to graph")
	return nil
}

// ensureProjection creates the GDS in-memory projection if it does not
// already exist. BROADER and NARROWER keep their direction, RELATED is
// symmetric.
func (c *Client) ensureProjection(ctx context.Context) error {
	return c.executeWithRetry(ctx, func(ctx context.Context, session neo4j.SessionWithContext) error {
		result, err := session.Run(ctx,
			"CALL gds.graph.exists($graph)",
			map[string]any{"graph": projectionName})
		if err != nil {
			return fmt.Errorf("failed to check graph projection: %w", err)
		}

		record, err := result.Single(ctx)
		if err == nil {
			if exists, ok := record.Get("exists"); ok {
				if v, ok := exists.(bool); ok && v {
					return nil
				}
			}
		}

		_, err = session.Run(ctx, `
			CALL gds.graph.project(
				$graph,
				'Concept',
				{
					BROADER: {orientation: 'NATURAL'},
					NARROWER: {orientation: 'NATURAL'},
					RELATED: {orientation: 'UNDIRECTED'}
				}
			)
		`, map[string]any{"graph": projectionName})
		if err != nil {
			return fmt.Errorf("failed to create graph projection: %w", err)
		}

		logger.Info("GDS projection created", zap.String("graph", projectionName))
		return nil
	})
}
