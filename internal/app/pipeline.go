// Package app wires ingestion, rating replay, aggregation and persistence
// into a single batch pipeline.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/matchform/internal/adapters/repository"
	"github.com/okian/matchform/internal/adapters/storage"
	"github.com/okian/matchform/internal/domain/dedupe"
	"github.com/okian/matchform/internal/domain/features"
	"github.com/okian/matchform/internal/domain/model"
	"github.com/okian/matchform/internal/domain/rating"
	"github.com/okian/matchform/pkg/logger"
	"github.com/okian/matchform/pkg/metrics"
)

// Pipeline stages, used as metric labels.
const (
	StageValidate  = "validate"
	StageReplay    = "replay"
	StageJoin      = "join"
	StageAggregate = "aggregate"
	StagePersist   = "persist"
)

const defaultDedupeSize = 4096

// defaultColumns are aggregated when no spec is given.
var defaultColumns = []string{"goals", "shots", "tackles"} //nolint:gochecknoglobals // static default

// Pipeline runs batches through the rating engine and the aggregator. The
// rating state carries over between runs, so later batches must not start
// before the previous watermark. Not safe for concurrent use.
type Pipeline struct {
	store      rating.Store
	engine     *rating.Engine
	aggregator *features.Aggregator
	deduper    dedupe.Deduper
	db         *storage.DB
	logger     logger.Logger

	engineOpts []rating.Option
	spec       features.Spec
	snapshot   *model.RatingSnapshot
	dedupeSize int
}

// Result is the outcome of one run.
type Result struct {
	RunID    string
	Matches  []model.RatedMatch
	Snapshot model.RatingSnapshot
	Table    *model.Table
	Report   features.Report
	Dropped  []string // ids of duplicate results that were skipped
}

// New builds a pipeline. It fails when the aggregation spec is invalid or
// the snapshot cannot be restored.
func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		spec:       features.DefaultSpec(defaultColumns...),
		dedupeSize: defaultDedupeSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("pipeline")
	}
	if p.store == nil {
		p.store = repository.NewMemoryStore()
	}

	engineOpts := append([]rating.Option{rating.WithLogger(p.logger.Named("rating"))}, p.engineOpts...)
	p.engine = rating.NewEngine(p.store, engineOpts...)

	agg, err := features.NewAggregator(p.spec, features.WithLogger(p.logger.Named("features")))
	if err != nil {
		return nil, err
	}
	p.aggregator = agg
	p.deduper = dedupe.NewInMemoryDeduper(dedupe.WithCapacity(p.dedupeSize))

	if p.snapshot != nil {
		if err := p.engine.Restore(context.Background(), *p.snapshot); err != nil {
			return nil, fmt.Errorf("restore snapshot: %w", err)
		}
	}
	return p, nil
}

// Engine returns the rating engine.
func (p *Pipeline) Engine() *rating.Engine {
	return p.engine
}

// Run replays results, attaches pre-match ratings to the records of table,
// enriches them with aggregates and persists the run when storage is
// configured. table may be nil when only ratings are wanted.
//
// Every input check runs before the rating state or the seen match ids
// change, so a rejected batch can be corrected and submitted again.
func (p *Pipeline) Run(ctx context.Context, results []model.MatchResult, table *model.Table) (*Result, error) {
	started := time.Now()
	res := &Result{RunID: uuid.NewString(), Table: table}

	if err := model.ValidateResults(results); err != nil {
		metrics.RecordPipelineError(StageValidate)
		return nil, err
	}
	kept, dropped := dedupe.Unseen(ctx, p.deduper, results)

	if table != nil {
		records, n := dedupe.Records(ctx, dedupe.NewInMemoryDeduper(dedupe.WithCapacity(len(table.Records))), table.Records)
		if n > 0 {
			p.logger.Warn(ctx, "duplicate records dropped", logger.Int("count", n))
		}
		table.Records = records
		if err := p.aggregator.Check(table); err != nil {
			metrics.RecordPipelineError(StageValidate)
			return nil, err
		}
		if err := matchRecords(kept, table); err != nil {
			metrics.RecordPipelineError(StageJoin)
			return nil, err
		}
	}

	rated, err := p.engine.Replay(ctx, kept)
	if err != nil {
		metrics.RecordPipelineError(StageReplay)
		return nil, fmt.Errorf("replay: %w", err)
	}
	dedupe.Commit(ctx, p.deduper, kept)
	for _, id := range dropped {
		metrics.RecordDuplicateMatch()
		p.logger.Warn(ctx, "duplicate match dropped", logger.String("match", id))
	}
	res.Dropped = dropped
	res.Matches = rated
	res.Snapshot = p.engine.Snapshot(ctx)

	if table != nil {
		p.join(ctx, rated, table)
		report, err := p.aggregator.Apply(ctx, table)
		if err != nil {
			metrics.RecordPipelineError(StageAggregate)
			return nil, fmt.Errorf("aggregate: %w", err)
		}
		res.Report = report
		p.logMissing(ctx, report)
	}

	if p.db != nil {
		if err := p.persist(ctx, res, started); err != nil {
			metrics.RecordPipelineError(StagePersist)
			return nil, err
		}
	}

	metrics.UpdateLastRun(float64(time.Now().Unix()))
	p.logger.Info(ctx, "run finished",
		logger.String("run", res.RunID),
		logger.Int("matches", len(rated)),
		logger.Int("records", res.Report.Records),
		logger.Duration("took", time.Since(started)))
	return res, nil
}

// matchRecords checks every record of a match in results against that
// result: the team and the opponent must be its two sides and the
// timestamps must agree.
func matchRecords(results []model.MatchResult, table *model.Table) error {
	byID := make(map[string]model.MatchResult, len(results))
	for _, m := range results {
		byID[m.ID] = m
	}
	for i, r := range table.Records {
		m, ok := byID[r.MatchID]
		if !ok {
			continue
		}
		sides := (r.TeamID == m.HomeID && r.OpponentID == m.AwayID) ||
			(r.TeamID == m.AwayID && r.OpponentID == m.HomeID)
		if !sides {
			return fmt.Errorf("record %d: %w: %s v %s not in match %s (%s v %s)",
				i, ErrRecordMismatch, r.TeamID, r.OpponentID, r.MatchID, m.HomeID, m.AwayID)
		}
		if !r.Timestamp.Equal(m.Timestamp) {
			return fmt.Errorf("record %d: %w: match %s at %s, result at %s",
				i, ErrRecordMismatch, r.MatchID, r.Timestamp.Format(time.RFC3339), m.Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// join writes pre-match ratings onto every record. Records of a replayed
// match take the ratings the engine saw before that match. Records of
// matches not yet played are rated from the current state when they lie
// after the watermark; anything else keeps unknown ratings.
func (p *Pipeline) join(ctx context.Context, rated []model.RatedMatch, table *model.Table) {
	byID := make(map[string]model.RatedMatch, len(rated))
	for _, m := range rated {
		byID[m.Match.ID] = m
	}
	watermark := p.engine.Watermark()
	previewed := 0

	for _, r := range table.Records {
		if m, ok := byID[r.MatchID]; ok {
			team, opp, _ := m.Perspective(r.TeamID)
			r.SetRatings(team, opp)
			continue
		}
		if watermark.IsZero() || r.Timestamp.After(watermark) {
			homeID, awayID := r.OpponentID, r.TeamID
			if r.Home {
				homeID, awayID = r.TeamID, r.OpponentID
			}
			preview := p.engine.Preview(ctx, homeID, awayID, r.Timestamp)
			team, opp, _ := preview.Perspective(r.TeamID)
			r.SetRatings(team, opp)
			previewed++
		}
	}
	if previewed > 0 {
		p.logger.Info(ctx, "upcoming records rated from current state", logger.Int("records", previewed))
	}
}

func (p *Pipeline) persist(ctx context.Context, res *Result, started time.Time) error {
	records := 0
	if res.Table != nil {
		records = len(res.Table.Records)
	}
	run := storage.Run{
		ID:            res.RunID,
		StartedAt:     started,
		FinishedAt:    time.Now(),
		AsOf:          res.Snapshot.AsOf,
		Matches:       len(res.Matches),
		Records:       records,
		HomeAdvantage: res.Snapshot.HomeAdvantage,
	}
	if err := p.db.SaveRun(ctx, run, res.Snapshot); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if res.Table == nil {
		return nil
	}
	n, err := p.db.SaveFeatures(ctx, res.RunID, res.Table.Records, p.aggregator.Spec().OutputColumns())
	if err != nil {
		return fmt.Errorf("save features: %w", err)
	}
	p.logger.Debug(ctx, "run persisted", logger.String("run", res.RunID), logger.Int("feature_rows", n))
	return nil
}

func (p *Pipeline) logMissing(ctx context.Context, report features.Report) {
	for _, c := range report.MissingColumns() {
		p.logger.Debug(ctx, "missing aggregate values",
			logger.String("column", c),
			logger.Int("count", report.Missing[c]))
	}
	if cols := report.MissingColumns(); len(cols) > 0 {
		p.logger.Info(ctx, "aggregation left gaps",
			logger.Int("columns", len(cols)),
			logger.Int("records", report.Records))
	}
}
