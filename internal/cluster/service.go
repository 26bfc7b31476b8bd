package cluster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wardend/internal/analysis"
	"github.com/fyrsmithlabs/wardend/internal/similarity"
	"github.com/fyrsmithlabs/wardend/internal/store"
)

const instrumentationName = "github.com/fyrsmithlabs/wardend/internal/cluster"

// PartialWriteError reports a submission that was persisted but whose cluster
// peers could not be relabeled. The new item exists; the listed peers still
// carry their previous cluster id and template.
type PartialWriteError struct {
	ItemID        string
	FailedPeerIDs []string
	Err           error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("item %s persisted but peer relabel failed for [%s]: %v",
		e.ItemID, strings.Join(e.FailedPeerIDs, ", "), e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}

// Oracle finds near-duplicate prior submissions and indexes new ones.
type Oracle interface {
	FindSimilar(ctx context.Context, text string) ([]similarity.Match, error)
	Add(ctx context.Context, id, text, clusterID string) error
}

// Repository is the slice of the store the submission pipeline writes to.
type Repository interface {
	Create(ctx context.Context, item *store.Item) error
	ApplyClusterPatch(ctx context.Context, ids []string, clusterID, template string) error
}

// Service runs the full submission pipeline: shape validation, content-policy
// check, classification, similarity lookup, cluster resolution, persistence.
type Service struct {
	validator  analysis.Validator
	classifier analysis.Classifier
	manager    *Manager
	oracle     Oracle
	repo       Repository
	logger     *zap.Logger

	tracer        trace.Tracer
	meter         metric.Meter
	submitCounter metric.Int64Counter
	rejectCounter metric.Int64Counter
}

// NewService creates the submission service.
func NewService(validator analysis.Validator, classifier analysis.Classifier, manager *Manager, oracle Oracle, repo Repository, logger *zap.Logger) (*Service, error) {
	if validator == nil {
		return nil, errors.New("content validator is required")
	}
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if manager == nil {
		return nil, errors.New("cluster manager is required")
	}
	if oracle == nil {
		return nil, errors.New("similarity oracle is required")
	}
	if repo == nil {
		return nil, errors.New("repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		validator:  validator,
		classifier: classifier,
		manager:    manager,
		oracle:     oracle,
		repo:       repo,
		logger:     logger,
		tracer:     otel.Tracer(instrumentationName),
		meter:      otel.Meter(instrumentationName),
	}

	s.initMetrics()

	return s, nil
}

func (s *Service) initMetrics() {
	var err error

	s.submitCounter, err = s.meter.Int64Counter(
		"wardend.submissions_total",
		metric.WithDescription("Total number of accepted submissions"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		s.logger.Warn("failed to create submission counter", zap.Error(err))
	}

	s.rejectCounter, err = s.meter.Int64Counter(
		"wardend.policy_rejections_total",
		metric.WithDescription("Total number of content policy rejections"),
		metric.WithUnit("{rejection}"),
	)
	if err != nil {
		s.logger.Warn("failed to create rejection counter", zap.Error(err))
	}
}

// Submit processes one submission end to end and returns the persisted item.
//
// Failures before the store create leave no trace. A peer relabel failure
// after the create returns a PartialWriteError naming the persisted item and
// the peers left behind.
func (s *Service) Submit(ctx context.Context, text string) (*store.Item, error) {
	ctx, span := s.tracer.Start(ctx, "cluster.submit")
	defer span.End()

	if err := ValidateText(text); err != nil {
		return nil, err
	}

	check, err := s.validator.ValidateContent(ctx, text)
	if err != nil {
		return nil, err
	}
	if !check.Valid {
		if s.rejectCounter != nil {
			s.rejectCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("reason", check.Reason),
			))
		}
		return nil, &analysis.PolicyRejectionError{Code: check.Reason}
	}

	result, err := s.classifier.Analyze(ctx, text)
	if err != nil {
		return nil, err
	}

	matches, err := s.oracle.FindSimilar(ctx, text)
	if err != nil {
		return nil, err
	}

	decision, err := s.manager.Resolve(ctx, text, matches)
	if err != nil {
		return nil, err
	}

	item := &store.Item{
		Text:            text,
		Verdict:         result.Verdict,
		Confidence:      result.Confidence,
		Category:        result.Category,
		Explanation:     result.Explanation,
		ClusterID:       decision.ClusterID,
		IsClusterHead:   decision.IsClusterHead,
		MessageTemplate: decision.MessageTemplate,
		Variations:      decision.Variations,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}

	if len(decision.PeerIDs) > 0 {
		if err := s.repo.ApplyClusterPatch(ctx, decision.PeerIDs, decision.ClusterID, decision.MessageTemplate); err != nil {
			return nil, &PartialWriteError{
				ItemID:        item.ID,
				FailedPeerIDs: decision.PeerIDs,
				Err:           err,
			}
		}
	}

	// Indexing is best effort: a missing index entry only weakens future
	// lookups, it never invalidates the stored record.
	if err := s.oracle.Add(ctx, item.ID, item.Text, item.ClusterID); err != nil {
		s.logger.Warn("failed to index submission",
			zap.String("id", item.ID),
			zap.Error(err),
		)
	}

	span.SetAttributes(
		attribute.String("verdict", item.Verdict),
		attribute.String("cluster_id", item.ClusterID),
		attribute.Int("matches", len(matches)),
	)
	if s.submitCounter != nil {
		s.submitCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("verdict", item.Verdict),
		))
	}

	s.logger.Info("submission processed",
		zap.String("id", item.ID),
		zap.String("verdict", item.Verdict),
		zap.String("cluster_id", item.ClusterID),
		zap.Bool("cluster_head", item.IsClusterHead),
		zap.Int("matches", len(matches)),
	)

	return item, nil
}
