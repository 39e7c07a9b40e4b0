package classifier

const conceptEvaluationPrompt = `You are evaluating a concept for inclusion in a semantic knowledge base.

The knowledge base follows these principles:
- Concepts represent stable semantic units (ideas, principles, methodologies)
- First-party (1p) concepts are core intellectual property that operates in this system
- Third-party (3p) concepts are external references from industry/academia
- Concepts should be well-defined, appropriately scoped, and clearly named

Evaluate this concept:

**ID:** %s
**Preferred Label:** %s
**Definition:** %s
**Provenance:** %s
**Alternative Labels:** %s
**Related Concepts:** %s

Score each dimension from 0.0 to 1.0:

1. **definition_quality** - Is the definition clear, complete, and well-formed?
   - 0.0-0.3: Missing, vague, or circular
   - 0.4-0.6: Adequate but could be improved
   - 0.7-1.0: Clear, precise, and complete

2. **naming_quality** - Is the preferred_label appropriate and descriptive?
   - 0.0-0.3: Misleading, unclear, or inappropriate
   - 0.4-0.6: Acceptable but not ideal
   - 0.7-1.0: Clear, concise, and accurately descriptive

3. **scope_appropriateness** - Is the concept appropriately scoped?
   - 0.0-0.3: Too broad (should be split) or too narrow (should be merged)
   - 0.4-0.6: Scope is acceptable but boundaries could be clearer
   - 0.7-1.0: Well-scoped with clear boundaries

4. **semantic_fit** - Does this concept belong in a knowledge base?
   - 0.0-0.3: Not a concept (task, action, specific instance)
   - 0.4-0.6: Borderline - might be better as entity or merged with another concept
   - 0.7-1.0: Clearly a stable semantic unit worth preserving

Respond in JSON format:
{
  "scores": {
    "definition_quality": <float>,
    "naming_quality": <float>,
    "scope_appropriateness": <float>,
    "semantic_fit": <float>
  },
  "labels": {
    "needs_work": [<list of dimensions that need improvement>],
    "suggested_improvements": [<list of specific suggestions>]
  },
  "rationale": "<2-3 sentence summary of the evaluation>",
  "promotion_ready": <boolean - true if all scores >= 0.6>
}`

const entityEvaluationPrompt = `You are evaluating a content entity for a digital asset management system.

Entities represent content artifacts (blog posts, videos, documents) that:
- Must be connected to concepts in the knowledge base
- Have clear attribution and provenance
- Follow content quality standards

Evaluate this entity:

**ID:** %s
**Title:** %s
**Asset Type:** %s
**Primary Concept:** %s
**Visibility:** %s
**Attribution:** %s

Score each dimension from 0.0 to 1.0:

1. **title_quality** - Is the title clear and descriptive?
   - 0.0-0.3: Missing, vague, or misleading
   - 0.4-0.6: Acceptable but could be improved
   - 0.7-1.0: Clear, engaging, and accurately descriptive

2. **concept_alignment** - Does the content align with its primary concept?
   - 0.0-0.3: Misaligned or unrelated
   - 0.4-0.6: Loosely related
   - 0.7-1.0: Strongly aligned and supports the concept

3. **metadata_completeness** - Is the metadata sufficient?
   - 0.0-0.3: Missing critical fields
   - 0.4-0.6: Basic metadata present
   - 0.7-1.0: Comprehensive metadata

4. **content_value** - Does this content add value to the knowledge base?
   - 0.0-0.3: Duplicate, outdated, or low quality
   - 0.4-0.6: Acceptable but not distinctive
   - 0.7-1.0: Valuable, unique contribution

Respond in JSON format:
{
  "scores": {
    "title_quality": <float>,
    "concept_alignment": <float>,
    "metadata_completeness": <float>,
    "content_value": <float>
  },
  "labels": {
    "needs_work": [<list of dimensions that need improvement>],
    "suggested_improvements": [<list of specific suggestions>]
  },
  "rationale": "<2-3 sentence summary of the evaluation>",
  "promotion_ready": <boolean - true if all scores >= 0.6>
}`
