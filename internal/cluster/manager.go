// Package cluster assigns incoming submissions to near-duplicate clusters and
// orchestrates the full submission pipeline.
package cluster

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/wardend/internal/analysis"
	"github.com/fyrsmithlabs/wardend/internal/similarity"
)

// MaxTextLength is the inclusive upper bound on submission length.
const MaxTextLength = 5000

// ValidationError rejects a submission on shape before any model call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// ValidateText checks basic submission shape. Texts of exactly MaxTextLength
// characters are accepted.
func ValidateText(text string) error {
	if text == "" {
		return &ValidationError{Reason: "text is required"}
	}
	if len([]rune(text)) > MaxTextLength {
		return &ValidationError{Reason: fmt.Sprintf("text exceeds maximum length of %d characters", MaxTextLength)}
	}
	return nil
}

// Decision is the cluster assignment for one submission, plus the relabeling
// its peers need so all members converge on the same cluster id and template.
type Decision struct {
	ClusterID       string
	IsClusterHead   bool
	MessageTemplate string
	Variations      int64
	PeerIDs         []string
}

// Manager decides cluster membership for incoming submissions.
type Manager struct {
	templates analysis.TemplateGenerator
}

// NewManager creates a cluster manager.
func NewManager(templates analysis.TemplateGenerator) (*Manager, error) {
	if templates == nil {
		return nil, errors.New("template generator is required")
	}
	return &Manager{templates: templates}, nil
}

// Resolve maps a submission and its similarity matches to a cluster decision.
//
// Without matches the submission founds a new cluster: it becomes the head,
// its own text is the template, and variations starts at zero. With k matches
// it joins the cluster of the strongest match (founding one when that match
// was never labeled), a shared template is generated over all k+1 texts, the
// peers each gain one variation, and the new member records variations = k.
func (m *Manager) Resolve(ctx context.Context, text string, matches []similarity.Match) (*Decision, error) {
	if len(matches) == 0 {
		return &Decision{
			ClusterID:       newClusterID(),
			IsClusterHead:   true,
			MessageTemplate: text,
			Variations:      0,
		}, nil
	}

	clusterID := matches[0].ClusterID
	if clusterID == "" {
		clusterID = newClusterID()
	}

	texts := make([]string, 0, len(matches)+1)
	texts = append(texts, text)
	peerIDs := make([]string, 0, len(matches))
	for _, match := range matches {
		texts = append(texts, match.Text)
		peerIDs = append(peerIDs, match.ID)
	}

	template, err := m.templates.GenerateTemplate(ctx, texts)
	if err != nil {
		return nil, err
	}

	return &Decision{
		ClusterID:       clusterID,
		IsClusterHead:   false,
		MessageTemplate: template,
		Variations:      int64(len(matches)),
		PeerIDs:         peerIDs,
	}, nil
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// newClusterID generates a cluster label unique by construction: a millisecond
// timestamp plus nine random base36 characters.
func newClusterID() string {
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure leaves the timestamp as the distinguishing part.
		for i := range buf {
			buf[i] = 0
		}
	}
	for i, b := range buf {
		buf[i] = base36[int(b)%len(base36)]
	}
	return fmt.Sprintf("cluster_%d_%s", time.Now().UnixMilli(), buf)
}
