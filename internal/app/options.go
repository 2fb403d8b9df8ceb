package app

import (
	"github.com/okian/matchform/internal/adapters/storage"
	"github.com/okian/matchform/internal/domain/features"
	"github.com/okian/matchform/internal/domain/model"
	"github.com/okian/matchform/internal/domain/rating"
	"github.com/okian/matchform/pkg/logger"
)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger. The engine and the aggregator get
// named children of it.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithEngineOptions appends options for the rating engine.
func WithEngineOptions(opts ...rating.Option) Option {
	return func(p *Pipeline) {
		p.engineOpts = append(p.engineOpts, opts...)
	}
}

// WithSpec sets the aggregation spec.
func WithSpec(spec features.Spec) Option {
	return func(p *Pipeline) {
		p.spec = spec
	}
}

// WithStore sets the rating store. The store must be empty when a snapshot
// is restored.
func WithStore(store rating.Store) Option {
	return func(p *Pipeline) {
		if store != nil {
			p.store = store
		}
	}
}

// WithStorage persists every run to db.
func WithStorage(db *storage.DB) Option {
	return func(p *Pipeline) {
		p.db = db
	}
}

// WithSnapshot resumes the rating state from snap before the first run.
func WithSnapshot(snap model.RatingSnapshot) Option {
	return func(p *Pipeline) {
		p.snapshot = &snap
	}
}

// WithDedupeSize sizes the match-id deduper.
func WithDedupeSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.dedupeSize = n
		}
	}
}
