package views

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wardend/internal/store"
)

// csvHeader is the fixed export schema consumed by downstream spreadsheets.
const csvHeader = "ID,Timestamp,Category,Content,Verdict,Confidence,Explanation,Upvotes,Cluster ID,Variations,Type"

const (
	rowTypeTrending = "Trending"
	rowTypeRecent   = "Recent"
)

// Export builds the CSV report: the five most-upvoted records of the last
// seven days followed by the twenty-five most recent, deduplicated by id with
// the trending copy winning. Returns the suggested filename and the document.
// A store outage yields a header-only document rather than an error.
func (s *Service) Export(ctx context.Context) (string, []byte, error) {
	trending, err := s.reader.Find(ctx, store.Query{
		Since: s.now().Add(-exportWindow),
		Sort:  store.SortUpvotes,
		Limit: exportTopCount,
	})
	if err != nil {
		if !errors.Is(err, store.ErrUnavailable) {
			return "", nil, fmt.Errorf("loading trending rows: %w", err)
		}
		s.logger.Warn("store unavailable, exporting empty report", zap.Error(err))
		trending = nil
	}

	recent, err := s.reader.Find(ctx, store.Query{
		Sort:  store.SortRecent,
		Limit: exportRecentMax,
	})
	if err != nil {
		if !errors.Is(err, store.ErrUnavailable) {
			return "", nil, fmt.Errorf("loading recent rows: %w", err)
		}
		s.logger.Warn("store unavailable, exporting empty report", zap.Error(err))
		recent = nil
	}

	seen := make(map[string]struct{}, len(trending))
	rows := make([]store.Item, 0, len(trending)+len(recent))
	types := make([]string, 0, cap(rows))
	for _, item := range trending {
		seen[item.ID] = struct{}{}
		rows = append(rows, item)
		types = append(types, rowTypeTrending)
	}
	for _, item := range recent {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		rows = append(rows, item)
		types = append(types, rowTypeRecent)
	}

	var b strings.Builder
	b.WriteString(csvHeader)
	b.WriteByte('\n')
	for i, item := range rows {
		b.WriteString(renderRow(item, types[i]))
		b.WriteByte('\n')
	}

	filename := fmt.Sprintf("wardend-report-%d.csv", s.now().UnixMilli())
	return filename, []byte(b.String()), nil
}

// renderRow emits one CSV record. Content and Explanation are always quoted
// (they carry free text) with internal quotes doubled; the remaining columns
// are machine-generated values that never contain separators.
func renderRow(item store.Item, rowType string) string {
	fields := []string{
		item.ID,
		item.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		item.Category,
		quote(item.Text),
		item.Verdict,
		strconv.Itoa(int(math.Round(item.Confidence * 100))),
		quote(item.Explanation),
		strconv.FormatInt(item.Upvotes, 10),
		item.ClusterID,
		strconv.FormatInt(item.Variations, 10),
		rowType,
	}
	return strings.Join(fields, ",")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
