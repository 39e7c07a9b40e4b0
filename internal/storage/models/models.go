package models

import "time"

type TargetType string

const (
	TargetConcept TargetType = "concept"
	TargetEntity  TargetType = "entity"
)

type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

// Provenance values for concepts: first-party coined, adapted, or external.
const (
	ProvenanceFirstParty = "1p"
	ProvenanceAdapted    = "adapted"
	ProvenanceThirdParty = "3p"
)

// EmbeddingSpace identifies one of the two independently maintained vector
// columns. Similarity queries never cross spaces.
type EmbeddingSpace string

const (
	SpaceHosted EmbeddingSpace = "hosted"
	SpaceLocal  EmbeddingSpace = "local"
)

type Concept struct {
	ID             string
	PreferredLabel string
	Definition     string
	AltLabels      []string
	Provenance     string
	ApprovalStatus ApprovalStatus
	CreatedAt      time.Time
}

type Filespec struct {
	URI       string `json:"uri"`
	MediaType string `json:"media_type,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

type Attribution struct {
	Creator string `json:"creator"`
	License string `json:"license,omitempty"`
	Source  string `json:"source,omitempty"`
}

type Entity struct {
	ID               string
	Title            string
	AssetType        string
	PrimaryConceptID *string
	Filespec         Filespec
	Attribution      Attribution
	Visibility       string
	ApprovalStatus   ApprovalStatus
	CreatedAt        time.Time
}

// Edge is a directed, typed relation between concepts. Predicates are the
// SKOS relations broader, narrower, and related.
type Edge struct {
	SrcID     string
	DstID     string
	Predicate string
	Strength  float64
}

// Target is the unit handed to a classifier: exactly one of Concept or
// Entity is set, matching Type.
type Target struct {
	Type    TargetType
	ID      string
	Concept *Concept
	Entity  *Entity
}

func ConceptTarget(c *Concept) Target {
	return Target{Type: TargetConcept, ID: c.ID, Concept: c}
}

func EntityTarget(e *Entity) Target {
	return Target{Type: TargetEntity, ID: e.ID, Entity: e}
}

// ClassificationResult is the engine's sole output type. One row exists per
// (target_type, target_id, classifier_id, classifier_version); re-running
// the same classifier version replaces the row.
type ClassificationResult struct {
	ID                string
	TargetType        TargetType
	TargetID          string
	ClassifierID      string
	ClassifierVersion string
	Scores            map[string]any
	Labels            map[string]any
	Confidence        *float64
	Rationale         string
	InputHash         string
	CreatedAt         time.Time
}

// PromotionReady reports the scores["promotion_ready"] flag; absent or
// non-boolean values (error results) read as false.
func (r *ClassificationResult) PromotionReady() bool {
	ready, _ := r.Scores["promotion_ready"].(bool)
	return ready
}

// IsError reports whether this result records an expected failure instead
// of a verdict.
func (r *ClassificationResult) IsError() bool {
	flagged, _ := r.Scores["error"].(bool)
	return flagged
}

func (r *ClassificationResult) BoolScore(name string) bool {
	v, _ := r.Scores[name].(bool)
	return v
}
