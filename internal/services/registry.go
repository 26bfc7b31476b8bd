package services

import (
	"github.com/fyrsmithlabs/wardend/internal/cluster"
	"github.com/fyrsmithlabs/wardend/internal/similarity"
	"github.com/fyrsmithlabs/wardend/internal/store"
	"github.com/fyrsmithlabs/wardend/internal/views"
)

// Registry provides access to all wardend services.
// Use accessor methods to retrieve individual services.
type Registry interface {
	Submissions() *cluster.Service
	Views() *views.Service
	Store() store.Store
	Similarity() *similarity.Index
}

// Options configures the registry with service instances.
type Options struct {
	Submissions *cluster.Service
	Views       *views.Service
	Store       store.Store
	Similarity  *similarity.Index
}

// registry is the concrete implementation of Registry.
type registry struct {
	submissions *cluster.Service
	views       *views.Service
	store       store.Store
	similarity  *similarity.Index
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		submissions: opts.Submissions,
		views:       opts.Views,
		store:       opts.Store,
		similarity:  opts.Similarity,
	}
}

func (r *registry) Submissions() *cluster.Service { return r.submissions }
func (r *registry) Views() *views.Service         { return r.views }
func (r *registry) Store() store.Store            { return r.store }
func (r *registry) Similarity() *similarity.Index { return r.similarity }
