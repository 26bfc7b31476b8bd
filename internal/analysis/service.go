package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const classifySystemPrompt = `You are a fact-checking assistant. Assess whether the submitted text is misinformation.
Respond with a single JSON object and nothing else:
{"verdict": "reliable" or "misinformation", "confidence": 0.0-1.0, "category": "short topic label", "explanation": "one or two sentences"}`

const validateSystemPrompt = `You screen submissions for a fact-checking service. Only news and factual claims are suitable.
Respond with a single JSON object and nothing else:
{"is_valid": true or false, "content_type": one of "personal_attack", "hate_speech", "threat", "spam", "promotional", "cyberbullying", "private", or "" when valid}`

const templateSystemPrompt = `You merge near-duplicate retellings of the same claim. Given numbered variants, write one canonical sentence that captures the shared claim.
Respond with the canonical sentence only, no quotes and no commentary.`

// Service implements Classifier, Validator, and TemplateGenerator on a
// completion provider.
type Service struct {
	completer Completer
	logger    *zap.Logger
}

// NewService creates an analysis service on the given provider.
func NewService(completer Completer, logger *zap.Logger) (*Service, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{completer: completer, logger: logger}, nil
}

// Analyze classifies a submission.
func (s *Service) Analyze(ctx context.Context, text string) (*Result, error) {
	raw, err := s.completer.Complete(ctx, classifySystemPrompt, text)
	if err != nil {
		s.logger.Error("classifier call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrClassification, err)
	}

	var result Result
	if err := json.Unmarshal(extractJSON(raw), &result); err != nil {
		s.logger.Error("classifier returned unparseable response", zap.Error(err))
		return nil, fmt.Errorf("%w: parsing response: %v", ErrClassification, err)
	}

	normalizeResult(&result)
	return &result, nil
}

// ValidateContent screens a submission against the content policy.
func (s *Service) ValidateContent(ctx context.Context, text string) (*ContentCheck, error) {
	raw, err := s.completer.Complete(ctx, validateSystemPrompt, text)
	if err != nil {
		s.logger.Error("content validation call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrClassification, err)
	}

	var parsed struct {
		IsValid     bool   `json:"is_valid"`
		ContentType string `json:"content_type"`
	}
	if err := json.Unmarshal(extractJSON(raw), &parsed); err != nil {
		s.logger.Error("content validation returned unparseable response", zap.Error(err))
		return nil, fmt.Errorf("%w: parsing response: %v", ErrClassification, err)
	}

	check := &ContentCheck{Valid: parsed.IsValid, Reason: parsed.ContentType}
	if !check.Valid && check.Reason == "" {
		check.Reason = ReasonSpam
	}
	return check, nil
}

// GenerateTemplate produces the canonical text for a set of cluster members.
func (s *Service) GenerateTemplate(ctx context.Context, texts []string) (string, error) {
	if len(texts) == 0 {
		return "", fmt.Errorf("%w: no texts provided", ErrTemplate)
	}
	if len(texts) == 1 {
		return texts[0], nil
	}

	var b strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}

	raw, err := s.completer.Complete(ctx, templateSystemPrompt, b.String())
	if err != nil {
		s.logger.Error("template generation call failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrTemplate, err)
	}

	template := strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"`))
	if template == "" {
		return "", fmt.Errorf("%w: empty template", ErrTemplate)
	}
	return template, nil
}

// normalizeResult clamps and defaults classifier output.
func normalizeResult(r *Result) {
	switch r.Verdict {
	case "reliable", "misinformation":
	default:
		r.Verdict = "reliable"
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
	if r.Category == "" {
		r.Category = "general"
	}
}

// extractJSON returns the outermost JSON object in a completion, tolerating
// code fences and surrounding prose.
func extractJSON(raw string) []byte {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return []byte(raw)
	}
	return []byte(raw[start : end+1])
}

var (
	_ Classifier        = (*Service)(nil)
	_ Validator         = (*Service)(nil)
	_ TemplateGenerator = (*Service)(nil)
)
