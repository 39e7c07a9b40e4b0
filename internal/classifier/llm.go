package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/semops/curator/internal/provider/llm"
	"github.com/semops/curator/internal/storage/models"
	"github.com/semops/curator/pkg/utils"
)

var conceptDimensions = []string{
	"definition_quality",
	"naming_quality",
	"scope_appropriateness",
	"semantic_fit",
}

var entityDimensions = []string{
	"title_quality",
	"concept_alignment",
	"metadata_completeness",
	"content_value",
}

// relatedLabelLimit caps the neighbor labels included as prompt context.
const relatedLabelLimit = 10

// LabelLookup is the slice of the store the LLM classifier needs.
type LabelLookup interface {
	NeighborLabels(ctx context.Context, conceptID string, limit int) ([]string, error)
}

// LLMClassifier scores targets with a rubric evaluated by a language
// model. The most expensive strategy, run last, and the only one whose
// rationale is written by the scorer itself.
type LLMClassifier struct {
	generator llm.Generator
	labels    LabelLookup
}

func NewLLMClassifier(generator llm.Generator, labels LabelLookup) *LLMClassifier {
	return &LLMClassifier{generator: generator, labels: labels}
}

func (c *LLMClassifier) ID() string      { return "llm-quality-v1" }
func (c *LLMClassifier) Version() string { return "1.0.0" }

// rubricResponse is the strict shape the model must return.
type rubricResponse struct {
	Scores         map[string]float64 `json:"scores"`
	Labels         map[string]any     `json:"labels"`
	Rationale      string             `json:"rationale"`
	PromotionReady bool               `json:"promotion_ready"`
}

func (c *LLMClassifier) Classify(ctx context.Context, target models.Target) (*models.ClassificationResult, error) {
	var prompt string
	var dimensions []string
	var inputText string

	switch target.Type {
	case models.TargetConcept:
		concept := target.Concept
		related, err := c.labels.NeighborLabels(ctx, concept.ID, relatedLabelLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch related concepts: %w", err)
		}
		relatedStr := "None"
		if len(related) > 0 {
			relatedStr = strings.Join(related, ", ")
		}
		prompt = fmt.Sprintf(conceptEvaluationPrompt,
			concept.ID,
			concept.PreferredLabel,
			concept.Definition,
			orUnknown(concept.Provenance),
			strings.Join(concept.AltLabels, ", "),
			relatedStr,
		)
		dimensions = conceptDimensions
		inputText = concept.PreferredLabel + "|" + concept.Definition

	case models.TargetEntity:
		entity := target.Entity
		primaryConcept := "None"
		if entity.PrimaryConceptID != nil {
			primaryConcept = *entity.PrimaryConceptID
		}
		attribution, _ := json.Marshal(entity.Attribution)
		prompt = fmt.Sprintf(entityEvaluationPrompt,
			entity.ID,
			entity.Title,
			orUnknown(entity.AssetType),
			primaryConcept,
			orUnknown(entity.Visibility),
			string(attribution),
		)
		dimensions = entityDimensions
		inputText = entity.Title + "|" + entity.AssetType

	default:
		return errorResult(c, target,
			fmt.Sprintf("Unknown target type: %s", target.Type),
			fmt.Sprintf("LLM classification not supported for %s", target.Type)), nil
	}

	response, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		result := errorResult(c, target,
			"LLM request failed",
			fmt.Sprintf("LLM evaluation failed: %v", err))
		result.Labels["error_message"] = err.Error()
		return result, nil
	}

	rubric, err := parseRubricResponse(response, dimensions)
	if err != nil {
		result := errorResult(c, target,
			"LLM response did not match the rubric shape",
			fmt.Sprintf("LLM evaluation failed: %v", err))
		result.Labels["error_message"] = err.Error()
		return result, nil
	}

	scores := make(map[string]any, len(rubric.Scores)+1)
	for dim, score := range rubric.Scores {
		scores[dim] = score
	}
	scores["promotion_ready"] = rubric.PromotionReady

	labels := rubric.Labels
	if labels == nil {
		labels = map[string]any{}
	}

	rationale := rubric.Rationale
	if rationale == "" {
		rationale = "LLM evaluation complete"
	}

	return &models.ClassificationResult{
		TargetType:        target.Type,
		TargetID:          target.ID,
		ClassifierID:      c.ID(),
		ClassifierVersion: c.Version(),
		Scores:            scores,
		Labels:            labels,
		Confidence:        confidence(0.75),
		Rationale:         rationale,
		InputHash:         utils.InputHash(inputText),
	}, nil
}

// parseRubricResponse extracts the JSON object from the model output,
// tolerating markdown code fences, and validates that every rubric
// dimension is present and in range.
func parseRubricResponse(response string, dimensions []string) (*rubricResponse, error) {
	jsonStr := response
	if idx := strings.Index(response, "```json"); idx >= 0 {
		jsonStr = response[idx+len("```json"):]
		if end := strings.Index(jsonStr, "```"); end >= 0 {
			jsonStr = jsonStr[:end]
		}
	} else if idx := strings.Index(response, "```"); idx >= 0 {
		jsonStr = response[idx+len("```"):]
		if end := strings.Index(jsonStr, "```"); end >= 0 {
			jsonStr = jsonStr[:end]
		}
	}

	var rubric rubricResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(jsonStr)), &rubric); err != nil {
		return nil, fmt.Errorf("invalid JSON in response: %w", err)
	}

	for _, dim := range dimensions {
		score, ok := rubric.Scores[dim]
		if !ok {
			return nil, fmt.Errorf("missing rubric dimension: %s", dim)
		}
		if score < 0 || score > 1 {
			return nil, fmt.Errorf("rubric dimension %s out of range: %v", dim, score)
		}
	}
	return &rubric, nil
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
