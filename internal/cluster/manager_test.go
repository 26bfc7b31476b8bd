package cluster

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/wardend/internal/analysis"
	"github.com/fyrsmithlabs/wardend/internal/similarity"
)

type stubTemplates struct {
	template string
	err      error
	gotTexts []string
}

func (s *stubTemplates) GenerateTemplate(_ context.Context, texts []string) (string, error) {
	s.gotTexts = texts
	if s.err != nil {
		return "", s.err
	}
	return s.template, nil
}

var clusterIDPattern = regexp.MustCompile(`^cluster_\d+_[0-9a-z]{9}$`)

func TestValidateText(t *testing.T) {
	assert.NoError(t, ValidateText(strings.Repeat("a", MaxTextLength)))

	err := ValidateText(strings.Repeat("a", MaxTextLength+1))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	err = ValidateText("")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "text is required", verr.Reason)
}

func TestResolveNoMatches(t *testing.T) {
	templates := &stubTemplates{}
	m, err := NewManager(templates)
	require.NoError(t, err)

	decision, err := m.Resolve(context.Background(), "the earth is flat", nil)
	require.NoError(t, err)

	assert.Regexp(t, clusterIDPattern, decision.ClusterID)
	assert.True(t, decision.IsClusterHead)
	assert.Equal(t, "the earth is flat", decision.MessageTemplate)
	assert.Zero(t, decision.Variations)
	assert.Empty(t, decision.PeerIDs)
	assert.Nil(t, templates.gotTexts, "founding a cluster must not call the template generator")
}

func TestResolveAdoptsStrongestMatchCluster(t *testing.T) {
	templates := &stubTemplates{template: "Claims that vaccines cause autism"}
	m, err := NewManager(templates)
	require.NoError(t, err)

	matches := []similarity.Match{
		{ID: "a", Text: "vaccines cause autism", ClusterID: "cluster_1_aaaaaaaaa"},
		{ID: "b", Text: "vaccines are causing autism in kids", ClusterID: "cluster_1_aaaaaaaaa"},
	}

	decision, err := m.Resolve(context.Background(), "VACCINES CAUSE AUTISM!!!", matches)
	require.NoError(t, err)

	assert.Equal(t, "cluster_1_aaaaaaaaa", decision.ClusterID)
	assert.False(t, decision.IsClusterHead)
	assert.Equal(t, "Claims that vaccines cause autism", decision.MessageTemplate)
	assert.EqualValues(t, 2, decision.Variations)
	assert.Equal(t, []string{"a", "b"}, decision.PeerIDs)

	// Template input is the new text followed by the match texts.
	require.Len(t, templates.gotTexts, 3)
	assert.Equal(t, "VACCINES CAUSE AUTISM!!!", templates.gotTexts[0])
}

func TestResolveSynthesizesIDForUnlabeledMatch(t *testing.T) {
	templates := &stubTemplates{template: "tpl"}
	m, err := NewManager(templates)
	require.NoError(t, err)

	matches := []similarity.Match{{ID: "a", Text: "some claim", ClusterID: ""}}

	decision, err := m.Resolve(context.Background(), "some claim again", matches)
	require.NoError(t, err)

	assert.Regexp(t, clusterIDPattern, decision.ClusterID)
	assert.False(t, decision.IsClusterHead)
	assert.EqualValues(t, 1, decision.Variations)
}

func TestResolveTemplateFailure(t *testing.T) {
	templates := &stubTemplates{err: analysis.ErrTemplate}
	m, err := NewManager(templates)
	require.NoError(t, err)

	matches := []similarity.Match{{ID: "a", Text: "x", ClusterID: "cluster_1_aaaaaaaaa"}}

	_, err = m.Resolve(context.Background(), "y", matches)
	require.ErrorIs(t, err, analysis.ErrTemplate)
}

func TestNewClusterIDUniqueness(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		id := newClusterID()
		require.Regexp(t, clusterIDPattern, id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate cluster id %s", id)
		seen[id] = struct{}{}
	}
}

func TestNewManagerRequiresTemplates(t *testing.T) {
	_, err := NewManager(nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, analysis.ErrTemplate))
}
