package classifier

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/semops/curator/internal/graph/neo4j"
	"github.com/semops/curator/internal/storage/models"
)

type fakeEdgeChecker struct {
	hasEdges bool
	err      error
}

func (f *fakeEdgeChecker) HasEdges(ctx context.Context, conceptID string) (bool, error) {
	return f.hasEdges, f.err
}

// fakeVectorStore keys embeddings and similarities by concept id.
type fakeVectorStore struct {
	embeddings map[string][]float32
	neighbors  map[string][]string
	// neighborSim is the canned mean similarity per concept; neighborOK
	// false means no neighbor had a vector.
	neighborSim map[string]float64
	neighborOK  map[string]bool

	approvedID  string
	approvedSim float64
	hasApproved bool

	anyID  string
	anySim float64
	hasAny bool

	storeErr error
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		embeddings:  make(map[string][]float32),
		neighbors:   make(map[string][]string),
		neighborSim: make(map[string]float64),
		neighborOK:  make(map[string]bool),
	}
}

func (f *fakeVectorStore) NeighborIDs(ctx context.Context, conceptID string) ([]string, error) {
	return f.neighbors[conceptID], nil
}

func (f *fakeVectorStore) HasEmbedding(ctx context.Context, space models.EmbeddingSpace, conceptID string) (bool, error) {
	_, ok := f.embeddings[string(space)+"|"+conceptID]
	return ok, nil
}

func (f *fakeVectorStore) StoreEmbedding(ctx context.Context, space models.EmbeddingSpace, conceptID string, embedding []float32) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	f.embeddings[string(space)+"|"+conceptID] = embedding
	return nil
}

func (f *fakeVectorStore) MeanNeighborSimilarity(ctx context.Context, space models.EmbeddingSpace, conceptID string, neighborIDs []string) (float64, bool, error) {
	return f.neighborSim[conceptID], f.neighborOK[conceptID], nil
}

func (f *fakeVectorStore) NearestApproved(ctx context.Context, space models.EmbeddingSpace, conceptID string) (string, float64, bool, error) {
	return f.approvedID, f.approvedSim, f.hasApproved, nil
}

func (f *fakeVectorStore) NearestAny(ctx context.Context, space models.EmbeddingSpace, conceptID string) (string, float64, bool, error) {
	return f.anyID, f.anySim, f.hasAny, nil
}

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  atomic.Int64
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) Model() string   { return "fake-embed" }
func (f *fakeEmbedder) Dimensions() int { return len(f.vector) }

type fakeMirror struct {
	stats      *neo4j.NodeStats
	hasCycle   bool
	nearest    *neo4j.NearestApproved
	percentile float64
	statsErr   error
	cycleErr   error
}

func (f *fakeMirror) GetNodeStats(ctx context.Context, conceptID string) (*neo4j.NodeStats, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	return f.stats, nil
}

func (f *fakeMirror) HasHierarchyCycle(ctx context.Context, conceptID string) (bool, error) {
	return f.hasCycle, f.cycleErr
}

func (f *fakeMirror) FindNearestApproved(ctx context.Context, conceptID string) (*neo4j.NearestApproved, error) {
	return f.nearest, nil
}

func (f *fakeMirror) PagerankPercentile(ctx context.Context, pagerank float64) (float64, error) {
	return f.percentile, nil
}

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeGenerator) Model() string { return "fake-llm" }

type fakeLabelLookup struct {
	labels []string
}

func (f *fakeLabelLookup) NeighborLabels(ctx context.Context, conceptID string, limit int) ([]string, error) {
	return f.labels, nil
}

var errProvider = errors.New("provider unavailable")
