package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/semops/curator/internal/storage/models"
)

// vecTable maps an embedding space to its vec0 virtual table. One table
// per space so 1536-dimensional hosted vectors and 768-dimensional local
// vectors are never compared to each other.
func vecTable(space models.EmbeddingSpace) (string, error) {
	switch space {
	case models.SpaceHosted:
		return "concept_vec_hosted", nil
	case models.SpaceLocal:
		return "concept_vec_local", nil
	default:
		return "", fmt.Errorf("unknown embedding space: %s", space)
	}
}

func (s *Store) initVectorTables() error {
	ddl := fmt.Sprintf(`
	CREATE VIRTUAL TABLE IF NOT EXISTS concept_vec_hosted USING vec0(
		embedding float[%d],
		concept_id TEXT
	);
	CREATE VIRTUAL TABLE IF NOT EXISTS concept_vec_local USING vec0(
		embedding float[%d],
		concept_id TEXT
	);
	`, s.hostedDim, s.localDim)

	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create vector tables: %w", err)
	}
	return nil
}

// HasEmbedding reports whether a stored vector exists for the concept in
// the given space.
func (s *Store) HasEmbedding(ctx context.Context, space models.EmbeddingSpace, conceptID string) (bool, error) {
	table, err := vecTable(space)
	if err != nil {
		return false, err
	}

	var exists bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE concept_id = ?)", table)
	if err := s.db.QueryRowContext(ctx, query, conceptID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check embedding for %s: %w", conceptID, err)
	}
	return exists, nil
}

// StoreEmbedding persists a concept's vector, replacing any previous one
// in the same space.
func (s *Store) StoreEmbedding(ctx context.Context, space models.EmbeddingSpace, conceptID string, embedding []float32) error {
	table, err := vecTable(space)
	if err != nil {
		return err
	}

	blob := encodeFloat32Blob(embedding)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE concept_id = ?", table), conceptID); err != nil {
		return fmt.Errorf("failed to replace embedding for %s: %w", conceptID, err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (embedding, concept_id) VALUES (?, ?)", table),
		blob, conceptID); err != nil {
		return fmt.Errorf("failed to store embedding for %s: %w", conceptID, err)
	}
	return tx.Commit()
}

// MeanNeighborSimilarity computes the mean cosine similarity between a
// concept and its edge-neighbors that have vectors in the same space.
// measured is false when no neighbor vector exists to compare against.
func (s *Store) MeanNeighborSimilarity(ctx context.Context, space models.EmbeddingSpace, conceptID string, neighborIDs []string) (mean float64, measured bool, err error) {
	if len(neighborIDs) == 0 {
		return 0, false, nil
	}

	table, err := vecTable(space)
	if err != nil {
		return 0, false, err
	}

	blob, found, err := s.embeddingBlob(ctx, table, conceptID)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, fmt.Errorf("no %s embedding stored for %s", space, conceptID)
	}

	placeholders := strings.Repeat("?,", len(neighborIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(neighborIDs)+1)
	args = append(args, blob)
	for _, id := range neighborIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		SELECT AVG(1.0 - vec_distance_cosine(embedding, ?)), COUNT(*)
		FROM %s
		WHERE concept_id IN (%s)
	`, table, placeholders)

	var avg sql.NullFloat64
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&avg, &count); err != nil {
		return 0, false, fmt.Errorf("failed to compute neighbor similarity for %s: %w", conceptID, err)
	}
	if count == 0 || !avg.Valid {
		return 0, false, nil
	}
	return clampUnit(avg.Float64), true, nil
}

// NearestApproved finds the most similar concept among approved
// first-party concepts, excluding the target itself.
func (s *Store) NearestApproved(ctx context.Context, space models.EmbeddingSpace, conceptID string) (string, float64, bool, error) {
	return s.nearest(ctx, space, conceptID, true)
}

// NearestAny finds the most similar concept regardless of status,
// excluding the target itself.
func (s *Store) NearestAny(ctx context.Context, space models.EmbeddingSpace, conceptID string) (string, float64, bool, error) {
	return s.nearest(ctx, space, conceptID, false)
}

func (s *Store) nearest(ctx context.Context, space models.EmbeddingSpace, conceptID string, approvedOnly bool) (string, float64, bool, error) {
	table, err := vecTable(space)
	if err != nil {
		return "", 0, false, err
	}

	blob, found, err := s.embeddingBlob(ctx, table, conceptID)
	if err != nil {
		return "", 0, false, err
	}
	if !found {
		return "", 0, false, fmt.Errorf("no %s embedding stored for %s", space, conceptID)
	}

	filter := ""
	if approvedOnly {
		filter = "AND c.approval_status = 'approved' AND c.provenance = '1p'"
	}

	query := fmt.Sprintf(`
		SELECT v.concept_id, vec_distance_cosine(v.embedding, ?) AS distance
		FROM %s v
		JOIN concept c ON c.id = v.concept_id
		WHERE v.concept_id != ? %s
		ORDER BY distance ASC
		LIMIT 1
	`, table, filter)

	var id string
	var distance float64
	err = s.db.QueryRowContext(ctx, query, blob, conceptID).Scan(&id, &distance)
	if err == sql.ErrNoRows {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to find nearest concept for %s: %w", conceptID, err)
	}

	return id, clampUnit(1.0 - distance), true, nil
}

func (s *Store) embeddingBlob(ctx context.Context, table, conceptID string) ([]byte, bool, error) {
	var blob []byte
	query := fmt.Sprintf("SELECT embedding FROM %s WHERE concept_id = ?", table)
	err := s.db.QueryRowContext(ctx, query, conceptID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load embedding for %s: %w", conceptID, err)
	}
	return blob, true, nil
}

// encodeFloat32Blob encodes a float32 slice as a little-endian binary
// blob, the format sqlite-vec expects for float[] columns.
func encodeFloat32Blob(vec []float32) []byte {
	blob := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// clampUnit bounds a similarity score to [0, 1]; cosine similarity can
// dip below zero for opposing vectors.
func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
