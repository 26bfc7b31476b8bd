// Package analysis provides the LLM-backed collaborators of the submission
// pipeline: the misinformation classifier, the content-policy validator, and
// the cluster template generator.
//
// All three run on a single completion provider (Anthropic or OpenAI) selected
// by configuration. Provider failures surface as ErrClassification or
// ErrTemplate depending on which operation was in flight; neither leaves any
// state behind, so callers can retry the whole submission.
package analysis

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for analysis operations.
var (
	// ErrClassification indicates the classifier or validator provider failed.
	ErrClassification = errors.New("classification unavailable")

	// ErrTemplate indicates the template generator provider failed.
	ErrTemplate = errors.New("template generation unavailable")
)

// Result is the immutable verdict produced once per submission.
type Result struct {
	Verdict     string  `json:"verdict"`
	Confidence  float64 `json:"confidence"`
	Category    string  `json:"category"`
	Explanation string  `json:"explanation"`
}

// ContentCheck is the outcome of the content-policy validation.
type ContentCheck struct {
	Valid bool
	// Reason is the rejection code when Valid is false.
	Reason string
}

// Rejection reason codes for content unsuitable for fact-checking.
const (
	ReasonPersonalAttack = "personal_attack"
	ReasonHateSpeech     = "hate_speech"
	ReasonThreat         = "threat"
	ReasonSpam           = "spam"
	ReasonPromotional    = "promotional"
	ReasonCyberbullying  = "cyberbullying"
	ReasonPrivate        = "private"
)

var rejectionMessages = map[string]string{
	ReasonPersonalAttack: "This content appears to be a personal attack or insult. We only analyze news and factual claims.",
	ReasonHateSpeech:     "This content contains hate speech or discriminatory language. We only verify news and public information.",
	ReasonThreat:         "This content contains threatening language. Please only submit news or factual claims for verification.",
	ReasonSpam:           "This content appears to be spam or promotional. We focus on verifying news and factual information.",
	ReasonPromotional:    "This content is promotional. We only fact-check news and informational claims.",
	ReasonCyberbullying:  "This content appears to be cyberbullying. We only analyze news and factual claims.",
	ReasonPrivate:        "This appears to be private communication. We only verify public news and factual claims.",
}

// RejectionMessage returns the user-facing message for a rejection code.
func RejectionMessage(code string) string {
	if msg, ok := rejectionMessages[code]; ok {
		return msg
	}
	return "Content not suitable for fact-checking"
}

// PolicyRejectionError reports content the validator refused to fact-check.
type PolicyRejectionError struct {
	Code string
}

// Error implements the error interface.
func (e *PolicyRejectionError) Error() string {
	return fmt.Sprintf("content rejected by policy: %s", e.Code)
}

// Message returns the user-facing rejection text.
func (e *PolicyRejectionError) Message() string {
	return RejectionMessage(e.Code)
}

// Classifier produces a verdict for a submission.
type Classifier interface {
	Analyze(ctx context.Context, text string) (*Result, error)
}

// Validator screens content for policy suitability before any clustering work.
type Validator interface {
	ValidateContent(ctx context.Context, text string) (*ContentCheck, error)
}

// TemplateGenerator produces the canonical representative text for a cluster.
type TemplateGenerator interface {
	GenerateTemplate(ctx context.Context, texts []string) (string, error)
}

// Completer is the minimal LLM contract the providers implement.
type Completer interface {
	// Complete sends a system and user prompt and returns the raw response text.
	Complete(ctx context.Context, system, user string) (string, error)
}
