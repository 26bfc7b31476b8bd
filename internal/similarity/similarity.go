// Package similarity finds near-duplicate prior submissions for a new text.
//
// The index is an embedded chromem-go vector database. Matches are resolved
// in two steps: a cosine-similarity query over the index yields candidate
// ids, and the current record state (text, cluster id) is hydrated from the
// store, since cluster labels on indexed metadata go stale as later
// submissions relabel members. The hydrated cluster id is still only a
// snapshot taken at query time; no locking of the matched records is implied.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/wardend/internal/sanitize"
	"github.com/fyrsmithlabs/wardend/internal/store"
)

// ErrUnavailable indicates the similarity index could not serve the request.
var ErrUnavailable = errors.New("similarity index unavailable")

// Match is a prior record judged similar enough to a new submission to
// warrant clustering, ordered similarity-descending.
type Match struct {
	ID        string
	Text      string
	ClusterID string
	Score     float32
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// RecordSource hydrates the current state of candidate records.
type RecordSource interface {
	GetByIDs(ctx context.Context, ids []string) ([]store.Item, error)
}

// Config holds the index configuration.
type Config struct {
	// Path is the directory for persistent index storage.
	Path string

	// Collection is the chromem collection name.
	Collection string

	// MaxMatches bounds the number of candidates returned per query.
	MaxMatches int

	// MinSimilarity is the cosine-similarity cutoff below which a candidate
	// is not considered a near-duplicate.
	MinSimilarity float32
}

// Index is the similarity oracle over persisted submissions.
type Index struct {
	collection *chromem.Collection
	records    RecordSource
	config     Config
	logger     *zap.Logger
}

// New creates a persistent similarity index at cfg.Path.
func New(cfg Config, embedder Embedder, records RecordSource, logger *zap.Logger) (*Index, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if records == nil {
		return nil, errors.New("record source is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Collection == "" {
		cfg.Collection = "claims"
	}
	cfg.Collection = sanitize.Identifier(cfg.Collection)
	if cfg.MaxMatches <= 0 {
		cfg.MaxMatches = 5
	}

	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db, err := chromem.NewPersistentDB(cfg.Path, false)
	if err != nil {
		return nil, fmt.Errorf("opening chromem DB: %w", err)
	}

	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}

	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", cfg.Collection, err)
	}

	logger.Info("similarity index opened",
		zap.String("path", cfg.Path),
		zap.String("collection", cfg.Collection),
		zap.Int("max_matches", cfg.MaxMatches),
		zap.Float64("min_similarity", float64(cfg.MinSimilarity)),
	)

	return &Index{
		collection: collection,
		records:    records,
		config:     cfg,
		logger:     logger,
	}, nil
}

// FindSimilar returns prior records similar to text, ordered
// similarity-descending. An empty result is a valid "no match", not an error.
func (i *Index) FindSimilar(ctx context.Context, text string) ([]Match, error) {
	count := i.collection.Count()
	if count == 0 {
		return nil, nil
	}

	// chromem requires nResults <= document count.
	k := i.config.MaxMatches
	if k > count {
		k = count
	}

	results, err := i.collection.Query(ctx, text, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: querying index: %v", ErrUnavailable, err)
	}

	scores := make(map[string]float32, len(results))
	ids := make([]string, 0, len(results))
	for _, r := range results {
		if r.Similarity < i.config.MinSimilarity {
			continue
		}
		scores[r.ID] = r.Similarity
		ids = append(ids, r.ID)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	items, err := i.records.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: hydrating candidates: %v", ErrUnavailable, err)
	}

	matches := make([]Match, 0, len(items))
	for _, item := range items {
		matches = append(matches, Match{
			ID:        item.ID,
			Text:      item.Text,
			ClusterID: item.ClusterID,
			Score:     scores[item.ID],
		})
	}
	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Score > matches[b].Score
	})

	i.logger.Debug("similarity lookup",
		zap.Int("candidates", len(results)),
		zap.Int("matches", len(matches)),
	)

	return matches, nil
}

// Add indexes a newly persisted submission so later lookups can find it.
func (i *Index) Add(ctx context.Context, id, text, clusterID string) error {
	doc := chromem.Document{
		ID:      id,
		Content: text,
		Metadata: map[string]string{
			"cluster_id": clusterID,
		},
	}
	if err := i.collection.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("%w: indexing document: %v", ErrUnavailable, err)
	}
	return nil
}
