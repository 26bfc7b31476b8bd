package store

import "time"

// Item is the persisted unit: one analyzed submission with its verdict and
// cluster membership. Analysis fields and Text are immutable after creation;
// cluster fields may be rewritten by a later submission's clustering decision,
// and Upvotes by the upvote operation.
type Item struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	Text            string    `gorm:"not null" json:"text"`
	Verdict         string    `gorm:"index" json:"verdict"`
	Confidence      float64   `json:"confidence"`
	Category        string    `gorm:"index" json:"category"`
	Explanation     string    `json:"explanation"`
	Timestamp       time.Time `gorm:"index" json:"timestamp"`
	Upvotes         int64     `json:"upvotes"`
	ClusterID       string    `gorm:"index" json:"clusterId"`
	IsClusterHead   bool      `json:"isClusterHead"`
	MessageTemplate string    `json:"messageTemplate"`
	Variations      int64     `json:"variations"`
}

// Verdict values produced by the classifier.
const (
	VerdictReliable       = "reliable"
	VerdictMisinformation = "misinformation"
)

// SortKey selects the ordering of a Find query.
type SortKey string

const (
	// SortUpvotes orders by upvotes desc, timestamp desc.
	SortUpvotes SortKey = "upvotes"
	// SortRecent orders by timestamp desc.
	SortRecent SortKey = "recent"
	// SortConfidence orders by confidence desc, timestamp desc.
	SortConfidence SortKey = "confidence"
)

// Query describes a sorted, bounded read over items.
type Query struct {
	// Since restricts results to items with Timestamp >= Since. Zero means
	// no time bound.
	Since time.Time
	// Category filters by category when non-empty.
	Category string
	// Sort selects the ordering. Defaults to SortRecent.
	Sort SortKey
	// Limit bounds the result size. Values <= 0 default to 50.
	Limit int
}

// Totals is the result of the global aggregate pass.
type Totals struct {
	Detections int64
	Upvotes    int64
}
