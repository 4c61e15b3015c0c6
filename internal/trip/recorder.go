package trip

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/example/rendezvous/internal/geo"
	"github.com/example/rendezvous/internal/models"
	"github.com/example/rendezvous/internal/observability"
)

// Recorder owns the single current trip: append-only coordinate/speed log
// with distance-based dedup, start/stop lifecycle, and dual persistence.
// Local saves are synchronous; the remote mirror is best-effort and a
// failed mirror is superseded by the next successful one.
type Recorder struct {
	mu        sync.Mutex
	local     LocalStore
	remote    RemoteStore
	logger    *slog.Logger
	minSample float64 // meters
	current   *models.Trip
	seq       uint64

	// mirrorMu serializes remote writes; mirroredSeq drops snapshots
	// that were overtaken by a newer one.
	mirrorMu    sync.Mutex
	mirroredSeq uint64

	newID func() string
	now   func() time.Time
}

func NewRecorder(local LocalStore, remote RemoteStore, minSampleMeters float64, logger *slog.Logger) *Recorder {
	r := &Recorder{
		local:     local,
		remote:    remote,
		logger:    logger,
		minSample: minSampleMeters,
		newID:     newTripID,
		now:       time.Now,
	}
	// Restore an in-progress trip after process death.
	if t, ok, err := local.Load(); err != nil {
		logger.Warn("trip restore failed", "error", err)
	} else if ok && !t.Ended() {
		r.current = t
	}
	return r
}

// Current returns a copy of the in-progress trip, or nil.
func (r *Recorder) Current() *models.Trip {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil
	}
	cp := *r.current
	return &cp
}

// Start allocates a fresh trip. Any prior trip must have been stopped;
// starting over an unfinished trip abandons it in the history store.
func (r *Recorder) Start(ctx context.Context) *models.Trip {
	r.mu.Lock()
	t := &models.Trip{
		TripID:    r.newID(),
		StartTime: r.now().UnixMilli(),
		StartTrip: true,
	}
	r.current = t
	r.persistLocked(ctx)
	cp := *t
	r.mu.Unlock()
	observability.TripsStartedTotal.Inc()
	return &cp
}

// Stop closes the current trip. A nil current trip is a no-op.
func (r *Recorder) Stop(ctx context.Context) *models.Trip {
	r.mu.Lock()
	t := r.current
	if t == nil {
		r.mu.Unlock()
		return nil
	}
	end := r.now().UnixMilli()
	t.EndTime = &end
	final := *t
	r.current = nil
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	if err := r.local.Clear(); err != nil {
		r.logger.Warn("clearing local trip failed", "error", err, "trip_id", final.TripID)
	}
	// The final snapshot write completes even though the trip is closed.
	r.mirror(context.WithoutCancel(ctx), &final, seq)
	observability.TripsCompletedTotal.Inc()
	return &final
}

// AppendPoint records a fix if it moved at least the minimum sampling
// distance from the last stored point. Returns whether it was stored.
// Without a current trip this is a no-op.
func (r *Recorder) AppendPoint(ctx context.Context, c models.Coord, speed float64) bool {
	r.mu.Lock()
	t := r.current
	if t == nil {
		r.mu.Unlock()
		return false
	}
	if n := len(t.Coordinates); n > 0 {
		if geo.Distance(t.Coordinates[n-1], c) < r.minSample {
			r.mu.Unlock()
			return false
		}
	}
	t.Coordinates = append(t.Coordinates, c)
	t.Speeds = append(t.Speeds, speed)
	r.persistLocked(ctx)
	r.mu.Unlock()
	observability.TripPointsTotal.Inc()
	return true
}

// MarkArrivedAtPilot flips the monotonic arrival flag while running.
func (r *Recorder) MarkArrivedAtPilot(ctx context.Context) {
	r.setFlag(ctx, func(t *models.Trip) bool {
		if t.ArrivedAtPilot {
			return false
		}
		t.ArrivedAtPilot = true
		return true
	})
}

// MarkArrivedAtAirport flips the monotonic arrival flag while running.
func (r *Recorder) MarkArrivedAtAirport(ctx context.Context) {
	r.setFlag(ctx, func(t *models.Trip) bool {
		if t.ArrivedAtAirport {
			return false
		}
		t.ArrivedAtAirport = true
		return true
	})
}

func (r *Recorder) setFlag(ctx context.Context, mutate func(*models.Trip) bool) {
	r.mu.Lock()
	if r.current == nil || !mutate(r.current) {
		r.mu.Unlock()
		return
	}
	r.persistLocked(ctx)
	r.mu.Unlock()
}

// History fetches all persisted trips. Transport failure yields an empty
// result; trip history is best-effort.
func (r *Recorder) History(ctx context.Context) []*models.Trip {
	trips, err := r.remote.List(ctx)
	if err != nil {
		r.logger.Warn("trip history fetch failed", "error", err)
		return nil
	}
	return trips
}

// Delete removes one trip from the remote store.
func (r *Recorder) Delete(ctx context.Context, tripID string) bool {
	if err := r.remote.Delete(ctx, tripID); err != nil {
		r.logger.Warn("trip delete failed", "error", err, "trip_id", tripID)
		return false
	}
	return true
}

// persistLocked saves locally and kicks off an async remote mirror.
// Called with the mutex held.
func (r *Recorder) persistLocked(ctx context.Context) {
	t := r.current
	if err := r.local.Save(t); err != nil {
		r.logger.Warn("local trip save failed", "error", err, "trip_id", t.TripID)
	}
	cp := *t
	r.seq++
	// Mirrors outlive the request that queued them; stopping a trip does
	// not cancel the final write.
	go r.mirror(context.WithoutCancel(ctx), &cp, r.seq)
}

// mirror pushes one snapshot remotely. A snapshot overtaken by a newer
// one is dropped; failures are logged and left for the next mutation's
// mirror to supersede.
func (r *Recorder) mirror(ctx context.Context, t *models.Trip, seq uint64) {
	r.mirrorMu.Lock()
	defer r.mirrorMu.Unlock()
	if seq <= r.mirroredSeq {
		return
	}
	if err := r.remote.Save(ctx, t); err != nil {
		r.logger.Warn("remote trip mirror failed", "error", err, "trip_id", t.TripID)
		return
	}
	r.mirroredSeq = seq
}

func newTripID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
