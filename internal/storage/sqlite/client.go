package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/semops/curator/internal/storage/models"
	"github.com/semops/curator/pkg/logger"
)

// Store is the engine's view of the relational database: read-only access
// to the source-of-truth target tables, plus ownership of the embedding
// vector tables and the classification results table.
type Store struct {
	db        *sql.DB
	hostedDim int
	localDim  int
}

func NewStore(dbPath string, hostedDim, localDim int) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite store initialized", zap.String("path", dbPath))

	return &Store{db: db, hostedDim: hostedDim, localDim: localDim}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS concept (
		id TEXT PRIMARY KEY,
		preferred_label TEXT NOT NULL,
		definition TEXT,
		alt_labels TEXT,
		provenance TEXT NOT NULL DEFAULT '1p',
		approval_status TEXT NOT NULL DEFAULT 'pending',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_concept_status ON concept(approval_status);
	CREATE INDEX IF NOT EXISTS idx_concept_created ON concept(created_at);

	CREATE TABLE IF NOT EXISTS entity (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		asset_type TEXT,
		primary_concept_id TEXT REFERENCES concept(id),
		filespec TEXT,
		attribution TEXT,
		visibility TEXT NOT NULL DEFAULT 'internal',
		approval_status TEXT NOT NULL DEFAULT 'pending',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_entity_status ON entity(approval_status);
	CREATE INDEX IF NOT EXISTS idx_entity_concept ON entity(primary_concept_id);

	CREATE TABLE IF NOT EXISTS concept_edge (
		src_id TEXT NOT NULL REFERENCES concept(id),
		dst_id TEXT NOT NULL REFERENCES concept(id),
		predicate TEXT NOT NULL,
		strength REAL NOT NULL DEFAULT 1.0,
		PRIMARY KEY (src_id, dst_id, predicate)
	);
	CREATE INDEX IF NOT EXISTS idx_edge_src ON concept_edge(src_id);
	CREATE INDEX IF NOT EXISTS idx_edge_dst ON concept_edge(dst_id);

	CREATE TABLE IF NOT EXISTS classification (
		id TEXT PRIMARY KEY,
		target_type TEXT NOT NULL,
		target_id TEXT NOT NULL,
		classifier_id TEXT NOT NULL,
		classifier_version TEXT NOT NULL,
		scores TEXT NOT NULL,
		labels TEXT NOT NULL,
		confidence REAL,
		rationale TEXT,
		input_hash TEXT,
		created_at INTEGER NOT NULL,
		UNIQUE (target_type, target_id, classifier_id, classifier_version)
	);
	CREATE INDEX IF NOT EXISTS idx_classification_target ON classification(target_type, target_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := s.initVectorTables(); err != nil {
		return err
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// PendingConcepts returns pending concepts ordered by creation time so
// batch runs are deterministic. limit <= 0 means no cap.
func (s *Store) PendingConcepts(ctx context.Context, limit int) ([]models.Concept, error) {
	query := `
		SELECT id, preferred_label, definition, alt_labels, provenance, approval_status, created_at
		FROM concept
		WHERE approval_status = 'pending'
		ORDER BY created_at, id
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending concepts: %w", err)
	}
	defer rows.Close()

	var concepts []models.Concept
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, err
		}
		concepts = append(concepts, c)
	}
	return concepts, rows.Err()
}

// PendingEntities mirrors PendingConcepts for the entity table.
func (s *Store) PendingEntities(ctx context.Context, limit int) ([]models.Entity, error) {
	query := `
		SELECT id, title, asset_type, primary_concept_id, filespec, attribution,
		       visibility, approval_status, created_at
		FROM entity
		WHERE approval_status = 'pending'
		ORDER BY created_at, id
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending entities: %w", err)
	}
	defer rows.Close()

	var entities []models.Entity
	for rows.Next() {
		var e models.Entity
		var assetType, filespecJSON, attributionJSON sql.NullString
		var primaryConcept sql.NullString
		var createdAt int64

		err := rows.Scan(&e.ID, &e.Title, &assetType, &primaryConcept,
			&filespecJSON, &attributionJSON, &e.Visibility, &e.ApprovalStatus, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity row: %w", err)
		}

		e.AssetType = assetType.String
		if primaryConcept.Valid {
			id := primaryConcept.String
			e.PrimaryConceptID = &id
		}
		if filespecJSON.Valid && filespecJSON.String != "" {
			_ = json.Unmarshal([]byte(filespecJSON.String), &e.Filespec)
		}
		if attributionJSON.Valid && attributionJSON.String != "" {
			_ = json.Unmarshal([]byte(attributionJSON.String), &e.Attribution)
		}
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// HasEdges reports whether any edge touches the concept in either direction.
func (s *Store) HasEdges(ctx context.Context, conceptID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM concept_edge WHERE src_id = ? OR dst_id = ?
		)
	`, conceptID, conceptID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check edges for %s: %w", conceptID, err)
	}
	return exists, nil
}

// NeighborIDs returns the distinct concepts connected to conceptID by any
// edge, in either direction.
func (s *Store) NeighborIDs(ctx context.Context, conceptID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT CASE WHEN src_id = ? THEN dst_id ELSE src_id END AS neighbor_id
		FROM concept_edge
		WHERE src_id = ? OR dst_id = ?
	`, conceptID, conceptID, conceptID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch neighbors for %s: %w", conceptID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan neighbor row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NeighborLabels returns preferred labels of up to limit connected concepts,
// used as prompt context by the LLM classifier.
func (s *Store) NeighborLabels(ctx context.Context, conceptID string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT c.preferred_label
		FROM concept_edge ce
		JOIN concept c ON c.id = CASE WHEN ce.src_id = ? THEN ce.dst_id ELSE ce.src_id END
		WHERE ce.src_id = ? OR ce.dst_id = ?
		LIMIT ?
	`, conceptID, conceptID, conceptID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch neighbor labels for %s: %w", conceptID, err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("failed to scan label row: %w", err)
		}
		if label != "" {
			labels = append(labels, label)
		}
	}
	return labels, rows.Err()
}

// SaveResult upserts a classification result. The row is keyed by
// (target_type, target_id, classifier_id, classifier_version); re-running
// the same classifier version replaces the payload, never appends.
func (s *Store) SaveResult(ctx context.Context, result *models.ClassificationResult) error {
	scoresJSON, err := json.Marshal(result.Scores)
	if err != nil {
		return fmt.Errorf("failed to marshal scores: %w", err)
	}
	labelsJSON, err := json.Marshal(result.Labels)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}

	if result.ID == "" {
		result.ID = uuid.New().String()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	var confidence sql.NullFloat64
	if result.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *result.Confidence, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO classification (
			id, target_type, target_id, classifier_id, classifier_version,
			scores, labels, confidence, rationale, input_hash, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (target_type, target_id, classifier_id, classifier_version) DO UPDATE SET
			scores = excluded.scores,
			labels = excluded.labels,
			confidence = excluded.confidence,
			rationale = excluded.rationale,
			input_hash = excluded.input_hash,
			created_at = excluded.created_at
	`,
		result.ID,
		string(result.TargetType),
		result.TargetID,
		result.ClassifierID,
		result.ClassifierVersion,
		string(scoresJSON),
		string(labelsJSON),
		confidence,
		result.Rationale,
		result.InputHash,
		result.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save classification result: %w", err)
	}

	logger.Debug("Classification result saved",
		zap.String("target_id", result.TargetID),
		zap.String("classifier_id", result.ClassifierID),
	)
	return nil
}

// GetResult fetches one result by its identity quadruple.
func (s *Store) GetResult(ctx context.Context, targetType models.TargetType, targetID, classifierID, version string) (*models.ClassificationResult, error) {
	var r models.ClassificationResult
	var scoresJSON, labelsJSON string
	var confidence sql.NullFloat64
	var rationale, inputHash sql.NullString
	var createdAt int64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, scores, labels, confidence, rationale, input_hash, created_at
		FROM classification
		WHERE target_type = ? AND target_id = ? AND classifier_id = ? AND classifier_version = ?
	`, string(targetType), targetID, classifierID, version).Scan(
		&r.ID, &scoresJSON, &labelsJSON, &confidence, &rationale, &inputHash, &createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get classification result: %w", err)
	}

	r.TargetType = targetType
	r.TargetID = targetID
	r.ClassifierID = classifierID
	r.ClassifierVersion = version
	if err := json.Unmarshal([]byte(scoresJSON), &r.Scores); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scores: %w", err)
	}
	if err := json.Unmarshal([]byte(labelsJSON), &r.Labels); err != nil {
		return nil, fmt.Errorf("failed to unmarshal labels: %w", err)
	}
	if confidence.Valid {
		r.Confidence = &confidence.Float64
	}
	r.Rationale = rationale.String
	r.InputHash = inputHash.String
	r.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &r, nil
}

// CountResults counts rows for one target/classifier pair across versions.
func (s *Store) CountResults(ctx context.Context, targetType models.TargetType, targetID, classifierID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM classification
		WHERE target_type = ? AND target_id = ? AND classifier_id = ?
	`, string(targetType), targetID, classifierID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count classification results: %w", err)
	}
	return count, nil
}

// InsertConcept mirrors the ingestion collaborator's write path; the engine
// itself only uses it in tooling and tests.
func (s *Store) InsertConcept(ctx context.Context, c *models.Concept) error {
	altLabelsJSON, _ := json.Marshal(c.AltLabels)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO concept (id, preferred_label, definition, alt_labels, provenance, approval_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			preferred_label = excluded.preferred_label,
			definition = excluded.definition,
			alt_labels = excluded.alt_labels,
			provenance = excluded.provenance,
			approval_status = excluded.approval_status
	`, c.ID, c.PreferredLabel, c.Definition, string(altLabelsJSON), c.Provenance,
		string(c.ApprovalStatus), c.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert concept: %w", err)
	}
	return nil
}

func (s *Store) InsertEntity(ctx context.Context, e *models.Entity) error {
	filespecJSON, _ := json.Marshal(e.Filespec)
	attributionJSON, _ := json.Marshal(e.Attribution)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var primaryConcept sql.NullString
	if e.PrimaryConceptID != nil {
		primaryConcept = sql.NullString{String: *e.PrimaryConceptID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity (id, title, asset_type, primary_concept_id, filespec, attribution, visibility, approval_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			asset_type = excluded.asset_type,
			primary_concept_id = excluded.primary_concept_id,
			filespec = excluded.filespec,
			attribution = excluded.attribution,
			visibility = excluded.visibility,
			approval_status = excluded.approval_status
	`, e.ID, e.Title, e.AssetType, primaryConcept, string(filespecJSON),
		string(attributionJSON), e.Visibility, string(e.ApprovalStatus), e.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert entity: %w", err)
	}
	return nil
}

func (s *Store) InsertEdge(ctx context.Context, edge *models.Edge) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO concept_edge (src_id, dst_id, predicate, strength)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(src_id, dst_id, predicate) DO UPDATE SET strength = excluded.strength
	`, edge.SrcID, edge.DstID, edge.Predicate, edge.Strength)
	if err != nil {
		return fmt.Errorf("failed to insert edge: %w", err)
	}
	return nil
}

func scanConcept(rows *sql.Rows) (models.Concept, error) {
	var c models.Concept
	var definition, altLabelsJSON sql.NullString
	var createdAt int64

	err := rows.Scan(&c.ID, &c.PreferredLabel, &definition, &altLabelsJSON,
		&c.Provenance, &c.ApprovalStatus, &createdAt)
	if err != nil {
		return c, fmt.Errorf("failed to scan concept row: %w", err)
	}

	c.Definition = definition.String
	if altLabelsJSON.Valid && altLabelsJSON.String != "" {
		_ = json.Unmarshal([]byte(altLabelsJSON.String), &c.AltLabels)
	}
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	return c, nil
}
