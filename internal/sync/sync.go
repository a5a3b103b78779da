// ABOUTME: Sync orchestrator: pull, merge, push and apply one cycle at a time.
// ABOUTME: Local data is only written after the last network step succeeds.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/harperreed/nutrition/internal/merge"
	"github.com/harperreed/nutrition/internal/metrics"
	"github.com/harperreed/nutrition/internal/models"
	"github.com/harperreed/nutrition/internal/remote"
	"github.com/harperreed/nutrition/internal/tracker"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// ErrInProgress is returned by TrySync when another cycle is running.
var ErrInProgress = errors.New("sync already in progress")

// Store is the local side of a sync cycle.
type Store interface {
	Snapshot() (models.Snapshot, uint64)
	SyncMeta() tracker.SyncMeta
	ApplySynced(synced models.Snapshot, base uint64, lastSync models.Stamp) (int, error)
	MarkPushed(base uint64, lastSync models.Stamp)
}

// Remote is the server side of a sync cycle.
type Remote interface {
	Pull(ctx context.Context, since models.Stamp) (*remote.PullResponse, error)
	Push(ctx context.Context, req remote.PushRequest) (*remote.PushResponse, error)
}

// State is where the syncer is in its cycle.
type State int32

const (
	StateIdle State = iota
	StatePulling
	StateMerging
	StatePushing
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePulling:
		return "pulling"
	case StateMerging:
		return "merging"
	case StatePushing:
		return "pushing"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Outcome summarises a finished cycle.
type Outcome string

const (
	OutcomeUpToDate Outcome = "up_to_date"
	OutcomePulled   Outcome = "pulled"
	OutcomePushed   Outcome = "pushed"
	OutcomeMerged   Outcome = "merged"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Result describes one cycle.
type Result struct {
	Outcome  Outcome
	Days     int // days written locally
	Report   merge.Report
	Conflict bool // the server saw another writer between our pull and push
	LastSync models.Stamp
	Err      *remote.Error
	Duration time.Duration
}

// Message is the text shown to the user for this result.
func (r Result) Message() string {
	switch r.Outcome {
	case OutcomeUpToDate:
		return "Already up to date."
	case OutcomePulled:
		return fmt.Sprintf("Downloaded %d day(s) from the server.", r.Days)
	case OutcomePushed:
		return "Uploaded your changes."
	case OutcomeMerged:
		return fmt.Sprintf("Merged changes from this device and the server (%d day(s)).", r.Days)
	case OutcomeSkipped:
		return "A sync is already running."
	case OutcomeFailed:
		if r.Err != nil {
			return r.Err.Kind.Message()
		}
		return "Sync failed."
	default:
		return string(r.Outcome)
	}
}

// Syncer runs sync cycles between a Store and a Remote.
type Syncer struct {
	store   Store
	remote  Remote
	log     zerolog.Logger
	timeout time.Duration
	now     func() time.Time

	sem   *semaphore.Weighted
	state atomic.Int32
	last  atomic.Pointer[Result]
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the syncer's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Syncer) { s.log = l }
}

// WithTimeout bounds a whole cycle. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Syncer) { s.timeout = d }
}

// WithClock sets the time source used for merge stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// NewSyncer creates a syncer.
func NewSyncer(store Store, client Remote, opts ...Option) *Syncer {
	s := &Syncer{
		store:   store,
		remote:  client,
		log:     zerolog.Nop(),
		timeout: DefaultTimeout,
		now:     time.Now,
		sem:     semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current cycle state.
func (s *Syncer) State() State {
	return State(s.state.Load())
}

// LastResult returns the most recent finished cycle, if any.
func (s *Syncer) LastResult() (Result, bool) {
	r := s.last.Load()
	if r == nil {
		return Result{}, false
	}
	return *r, true
}

// Sync runs one cycle, waiting for a running cycle to finish first.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return s.finish(Result{}, remote.Classify(err))
	}
	defer s.sem.Release(1)
	return s.cycle(ctx)
}

// TrySync runs one cycle unless another is running, in which case it returns
// an OutcomeSkipped result and ErrInProgress.
func (s *Syncer) TrySync(ctx context.Context) (Result, error) {
	if !s.sem.TryAcquire(1) {
		return Result{Outcome: OutcomeSkipped}, ErrInProgress
	}
	defer s.sem.Release(1)
	return s.cycle(ctx)
}

func (s *Syncer) setState(st State) {
	s.state.Store(int32(st))
	s.log.Debug().Stringer("state", st).Msg("sync state")
}

func (s *Syncer) cycle(ctx context.Context) (Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()

	local, version := s.store.Snapshot()
	meta := s.store.SyncMeta()

	s.setState(StatePulling)
	pulled, err := s.remote.Pull(ctx, meta.LastSync)
	if err != nil {
		return s.finish(Result{Duration: time.Since(start)}, err)
	}

	if !pulled.HasUpdates && !meta.Pending {
		return s.finish(Result{Outcome: OutcomeUpToDate, LastSync: meta.LastSync, Duration: time.Since(start)}, nil)
	}

	res := Result{}
	base := meta.LastSync
	toPush := local

	if pulled.HasUpdates {
		s.setState(StateMerging)
		base = pulled.LastSync
		if !meta.Pending {
			res.Outcome = OutcomePulled
			res.LastSync = pulled.LastSync
			return s.apply(res, *pulled.Data, version, start)
		}
		toPush, res.Report = merge.Snapshots(*pulled.Data, local, s.now())
		toPush.UpdatedAt = models.At(s.now())
		res.Outcome = OutcomeMerged
		s.log.Info().
			Int("adopted", res.Report.Count(merge.ActionAdopted)).
			Int("replaced", res.Report.Count(merge.ActionReplaced)).
			Int("unioned", res.Report.Count(merge.ActionUnioned)).
			Int("skipped_meals", res.Report.SkippedMeals).
			Msg("merged server changes")
	} else {
		res.Outcome = OutcomePushed
	}

	s.setState(StatePushing)
	pushed, err := s.remote.Push(ctx, remote.PushRequest{Snapshot: toPush, BaseUpdatedAt: base})
	if err != nil {
		return s.finish(Result{Duration: time.Since(start)}, err)
	}
	res.LastSync = pushed.LastSync

	if pushed.Conflict {
		// The server merged our push with a write we never saw; fetch its copy.
		res.Conflict = true
		s.log.Warn().Str("base", base.String()).Msg("server reported a concurrent writer, refetching")
		s.setState(StatePulling)
		again, err := s.remote.Pull(ctx, base)
		if err != nil {
			return s.finish(Result{Duration: time.Since(start)}, err)
		}
		if again.HasUpdates {
			res.Outcome = OutcomeMerged
			res.LastSync = again.LastSync
			return s.apply(res, *again.Data, version, start)
		}
	}

	if res.Outcome == OutcomePushed {
		s.store.MarkPushed(version, res.LastSync)
		res.Duration = time.Since(start)
		return s.finish(res, nil)
	}
	return s.apply(res, toPush, version, start)
}

func (s *Syncer) apply(res Result, synced models.Snapshot, version uint64, start time.Time) (Result, error) {
	n, err := s.store.ApplySynced(synced, version, res.LastSync)
	res.Days = n
	res.Duration = time.Since(start)
	if err != nil {
		s.setState(StateFailed)
		res.Outcome = OutcomeFailed
		metrics.SyncCycles.WithLabelValues(string(OutcomeFailed)).Inc()
		s.log.Error().Err(err).Msg("saving synced data failed")
		s.last.Store(&res)
		return res, fmt.Errorf("apply synced data: %w", err)
	}
	return s.finish(res, nil)
}

// finish records a cycle. A non-nil err is classified and makes the result a failure.
func (s *Syncer) finish(res Result, err error) (Result, error) {
	if err != nil {
		re := remote.Classify(err)
		res.Outcome = OutcomeFailed
		res.Err = re
		s.setState(StateFailed)
		s.log.Error().Err(re).Stringer("kind", re.Kind).Msg("sync failed")
		metrics.SyncCycles.WithLabelValues(string(OutcomeFailed)).Inc()
		s.last.Store(&res)
		return res, re
	}

	s.setState(StateIdle)
	s.log.Info().
		Str("outcome", string(res.Outcome)).
		Int("days", res.Days).
		Bool("conflict", res.Conflict).
		Dur("took", res.Duration).
		Msg("sync complete")
	metrics.SyncCycles.WithLabelValues(string(res.Outcome)).Inc()
	s.last.Store(&res)
	return res, nil
}
