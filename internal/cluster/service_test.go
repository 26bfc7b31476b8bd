package cluster

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wardend/internal/analysis"
	"github.com/fyrsmithlabs/wardend/internal/similarity"
	"github.com/fyrsmithlabs/wardend/internal/store"
)

type stubValidator struct {
	check *analysis.ContentCheck
	err   error
	calls int
}

func (s *stubValidator) ValidateContent(context.Context, string) (*analysis.ContentCheck, error) {
	s.calls++
	return s.check, s.err
}

type stubClassifier struct {
	result *analysis.Result
	err    error
}

func (s *stubClassifier) Analyze(context.Context, string) (*analysis.Result, error) {
	return s.result, s.err
}

type stubOracle struct {
	matches []similarity.Match
	findErr error
	addErr  error
	added   []string
}

func (s *stubOracle) FindSimilar(context.Context, string) ([]similarity.Match, error) {
	return s.matches, s.findErr
}

func (s *stubOracle) Add(_ context.Context, id, _, _ string) error {
	s.added = append(s.added, id)
	return s.addErr
}

type memRepo struct {
	mu         sync.Mutex
	created    []*store.Item
	patchIDs   []string
	patchErr   error
	createErr  error
	patchCalls int
}

func (r *memRepo) Create(_ context.Context, item *store.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	item.ID = uuid.NewString()
	r.created = append(r.created, item)
	return nil
}

func (r *memRepo) ApplyClusterPatch(_ context.Context, ids []string, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patchCalls++
	if r.patchErr != nil {
		return r.patchErr
	}
	r.patchIDs = append(r.patchIDs, ids...)
	return nil
}

type serviceFixture struct {
	validator  *stubValidator
	classifier *stubClassifier
	oracle     *stubOracle
	repo       *memRepo
	service    *Service
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		validator: &stubValidator{check: &analysis.ContentCheck{Valid: true}},
		classifier: &stubClassifier{result: &analysis.Result{
			Verdict:     store.VerdictMisinformation,
			Confidence:  0.93,
			Category:    "health",
			Explanation: "contradicts established medical consensus",
		}},
		oracle: &stubOracle{},
		repo:   &memRepo{},
	}
	manager, err := NewManager(&stubTemplates{template: "shared template"})
	require.NoError(t, err)
	f.service, err = NewService(f.validator, f.classifier, manager, f.oracle, f.repo, zap.NewNop())
	require.NoError(t, err)
	return f
}

func TestSubmitFoundsNewCluster(t *testing.T) {
	f := newFixture(t)

	item, err := f.service.Submit(context.Background(), "drinking bleach cures covid")
	require.NoError(t, err)

	assert.NotEmpty(t, item.ID)
	assert.Equal(t, store.VerdictMisinformation, item.Verdict)
	assert.InDelta(t, 0.93, item.Confidence, 1e-9)
	assert.Regexp(t, clusterIDPattern, item.ClusterID)
	assert.True(t, item.IsClusterHead)
	assert.Equal(t, "drinking bleach cures covid", item.MessageTemplate)
	assert.Zero(t, item.Variations)

	require.Len(t, f.repo.created, 1)
	assert.Zero(t, f.repo.patchCalls, "founding a cluster must not touch other records")
	assert.Equal(t, []string{item.ID}, f.oracle.added)
}

func TestSubmitJoinsExistingCluster(t *testing.T) {
	f := newFixture(t)
	f.oracle.matches = []similarity.Match{
		{ID: "a", Text: "bleach cures covid", ClusterID: "cluster_1_aaaaaaaaa"},
		{ID: "b", Text: "covid is cured by bleach", ClusterID: "cluster_1_aaaaaaaaa"},
	}

	item, err := f.service.Submit(context.Background(), "drinking bleach cures covid")
	require.NoError(t, err)

	assert.Equal(t, "cluster_1_aaaaaaaaa", item.ClusterID)
	assert.False(t, item.IsClusterHead)
	assert.Equal(t, "shared template", item.MessageTemplate)
	assert.EqualValues(t, 2, item.Variations)
	assert.ElementsMatch(t, []string{"a", "b"}, f.repo.patchIDs)
}

func TestSubmitRejectsOversizedText(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Submit(context.Background(), strings.Repeat("a", MaxTextLength+1))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, f.validator.calls, "shape rejection must precede any model call")
	assert.Empty(t, f.repo.created)
}

func TestSubmitPolicyRejection(t *testing.T) {
	f := newFixture(t)
	f.validator.check = &analysis.ContentCheck{Valid: false, Reason: analysis.ReasonHateSpeech}

	_, err := f.service.Submit(context.Background(), "some slur")
	var perr *analysis.PolicyRejectionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, analysis.ReasonHateSpeech, perr.Code)
	assert.Empty(t, f.repo.created, "rejected content must not be persisted")
}

func TestSubmitClassifierFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.classifier.err = analysis.ErrClassification

	_, err := f.service.Submit(context.Background(), "is this true")
	require.ErrorIs(t, err, analysis.ErrClassification)
	assert.Empty(t, f.repo.created)
	assert.Empty(t, f.oracle.added)
}

func TestSubmitOracleFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.oracle.findErr = similarity.ErrUnavailable

	_, err := f.service.Submit(context.Background(), "is this true")
	require.ErrorIs(t, err, similarity.ErrUnavailable)
	assert.Empty(t, f.repo.created)
}

func TestSubmitPartialWrite(t *testing.T) {
	f := newFixture(t)
	f.oracle.matches = []similarity.Match{
		{ID: "a", Text: "x", ClusterID: "cluster_1_aaaaaaaaa"},
	}
	f.repo.patchErr = errors.New("disk full")

	_, err := f.service.Submit(context.Background(), "x again")
	var pwe *PartialWriteError
	require.ErrorAs(t, err, &pwe)
	assert.NotEmpty(t, pwe.ItemID)
	assert.Equal(t, []string{"a"}, pwe.FailedPeerIDs)
	require.Len(t, f.repo.created, 1, "the new item itself was persisted")
	assert.Equal(t, f.repo.created[0].ID, pwe.ItemID)
}

func TestSubmitIndexFailureIsBestEffort(t *testing.T) {
	f := newFixture(t)
	f.oracle.addErr = similarity.ErrUnavailable

	item, err := f.service.Submit(context.Background(), "claim")
	require.NoError(t, err, "indexing failures must not fail the submission")
	require.Len(t, f.repo.created, 1)
	assert.Equal(t, f.repo.created[0].ID, item.ID)
}

// Two concurrent identical submissions may each found a cluster. That race is
// accepted: submissions are independent units of work with no cross-request
// coordination.
func TestSubmitConcurrentIdenticalTexts(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	items := make([]*store.Item, 2)
	for i := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()
			item, err := f.service.Submit(context.Background(), "same claim")
			require.NoError(t, err)
			items[i] = item
		}()
	}
	wg.Wait()

	require.Len(t, f.repo.created, 2)
	assert.NotEqual(t, items[0].ID, items[1].ID)
	assert.True(t, items[0].IsClusterHead)
	assert.True(t, items[1].IsClusterHead)
}
