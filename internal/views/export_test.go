package views

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/wardend/internal/store"
)

func exportFixtureReader(trending, recent []store.Item) *fakeReader {
	return &fakeReader{
		findFn: func(q store.Query) ([]store.Item, error) {
			if q.Sort == store.SortUpvotes {
				return trending, nil
			}
			return recent, nil
		},
	}
}

func TestExportMergesAndDeduplicates(t *testing.T) {
	ts := time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	trending := []store.Item{
		{ID: "t1", Timestamp: ts, Category: "health", Text: "bleach cures covid",
			Verdict: store.VerdictMisinformation, Confidence: 0.93, Explanation: "no clinical basis",
			Upvotes: 40, ClusterID: "cluster_1_aaaaaaaaa", Variations: 3},
		{ID: "t2", Timestamp: ts, Category: "politics", Text: "ballots were shredded",
			Verdict: store.VerdictMisinformation, Confidence: 0.88, Explanation: "no evidence found",
			Upvotes: 12, ClusterID: "cluster_2_bbbbbbbbb", Variations: 1},
	}
	recent := []store.Item{
		trending[0], // duplicate, the trending copy must win
		{ID: "r1", Timestamp: ts, Category: "general", Text: "the sky is blue",
			Verdict: store.VerdictReliable, Confidence: 0.99, Explanation: "observable fact",
			Upvotes: 0, ClusterID: "cluster_3_ccccccccc", Variations: 0},
	}

	reader := exportFixtureReader(trending, recent)
	svc := newViewsService(t, reader)
	svc.now = func() time.Time { return time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC) }

	filename, data, err := svc.Export(context.Background())
	require.NoError(t, err)

	assert.Regexp(t, `^wardend-report-\d+\.csv$`, filename)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 4, "header plus three deduplicated rows")
	assert.Equal(t, csvHeader, lines[0])

	assert.True(t, strings.HasPrefix(lines[1], "t1,"))
	assert.True(t, strings.HasSuffix(lines[1], ",Trending"))
	assert.True(t, strings.HasSuffix(lines[2], ",Trending"))
	assert.True(t, strings.HasSuffix(lines[3], ",Recent"))

	// The seven-day window bounds the trending query, not the recent one.
	require.Len(t, reader.findCalls, 2)
	assert.Equal(t, svc.now().Add(-exportWindow), reader.findCalls[0].Since)
	assert.Equal(t, exportTopCount, reader.findCalls[0].Limit)
	assert.True(t, reader.findCalls[1].Since.IsZero())
	assert.Equal(t, exportRecentMax, reader.findCalls[1].Limit)
}

func TestExportQuotingSurvivesRoundTrip(t *testing.T) {
	ts := time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	items := []store.Item{
		{ID: "q1", Timestamp: ts, Category: "health",
			Text:        `they said "miracle cure", then vanished`,
			Verdict:     store.VerdictMisinformation,
			Confidence:  0.91,
			Explanation: `quotes the fake "study"`,
			Upvotes:     7, ClusterID: "cluster_1_aaaaaaaaa", Variations: 2},
	}

	svc := newViewsService(t, exportFixtureReader(items, nil))

	_, data, err := svc.Export(context.Background())
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err, "the document must parse as standard CSV")
	require.Len(t, records, 2)

	row := records[1]
	assert.Equal(t, "q1", row[0])
	assert.Equal(t, "2026-02-14T09:30:00.000Z", row[1])
	assert.Equal(t, `they said "miracle cure", then vanished`, row[3])
	assert.Equal(t, "91", row[5], "confidence exported as rounded percent")
	assert.Equal(t, `quotes the fake "study"`, row[6])
	assert.Equal(t, "Trending", row[10])
}

func TestExportEmptyStore(t *testing.T) {
	svc := newViewsService(t, exportFixtureReader(nil, nil))

	_, data, err := svc.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, csvHeader+"\n", string(data))
}

func TestExportDegradesWhenStoreUnavailable(t *testing.T) {
	reader := &fakeReader{
		findFn: func(q store.Query) ([]store.Item, error) {
			return nil, fmt.Errorf("opening database: %w", store.ErrUnavailable)
		},
	}
	svc := newViewsService(t, reader)

	filename, data, err := svc.Export(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, `^wardend-report-\d+\.csv$`, filename)
	assert.Equal(t, csvHeader+"\n", string(data), "an unreachable store yields a header-only report")

	otherErr := &fakeReader{
		findFn: func(q store.Query) ([]store.Item, error) {
			return nil, errors.New("disk is on fire")
		},
	}
	_, _, err = newViewsService(t, otherErr).Export(context.Background())
	require.Error(t, err, "only an unavailable store degrades")
}
