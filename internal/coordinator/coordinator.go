package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/rendezvous/internal/camera"
	"github.com/example/rendezvous/internal/geo"
	"github.com/example/rendezvous/internal/geostore"
	"github.com/example/rendezvous/internal/models"
	"github.com/example/rendezvous/internal/observability"
	"github.com/example/rendezvous/internal/route"
	"github.com/example/rendezvous/internal/session"
	"github.com/example/rendezvous/internal/trip"
)

// Sink receives the coordinator's presentation outputs. The concrete map
// rendering lives on the other side of this boundary.
type Sink interface {
	PublishCamera(camera.Directive)
	// PublishRoute receives the full drawable path in travel order.
	PublishRoute(waypoints []models.Coord)
}

// Publisher forwards accepted position updates to the ingest pipeline.
type Publisher interface {
	PublishPosition(ctx context.Context, key string, u models.PositionUpdate) error
}

// Config carries the coordinator's tunable thresholds.
type Config struct {
	MeetupDistance   float64 // meters; below this the primary leg is suppressed
	GeofenceRadiusKm float64
	DriverRefresh    time.Duration
	PilotRefresh     time.Duration
}

// roleProfile groups everything that depends on the active role, selected
// once per role change instead of branching at every call site.
type roleProfile struct {
	role            models.Role
	ownKey          string
	counterpartKey  string
	refreshInterval time.Duration
}

func profileFor(r models.Role, cfg Config) roleProfile {
	p := roleProfile{
		role:           r,
		ownKey:         models.LocationKeyFor(r),
		counterpartKey: models.LocationKeyFor(r.Other()),
	}
	if r == models.RoleDriver {
		p.refreshInterval = cfg.DriverRefresh
	} else {
		p.refreshInterval = cfg.PilotRefresh
	}
	return p
}

// Coordinator is the single authoritative reactor translating raw
// position, role, and remote counterpart state into published locations,
// camera directives, drawn routes, and trip mutations. All mutable slots
// are owned here and accessed only under the mutex.
type Coordinator struct {
	cfg      Config
	logger   *slog.Logger
	store    geostore.Store
	provider route.Provider
	cache    *route.Cache
	recorder *trip.Recorder
	sessions session.Store
	sink     Sink
	producer Publisher // optional

	mu            sync.Mutex
	settings      session.Settings
	profile       roleProfile
	position      *models.Coord
	counterpart   *models.Coord
	airport       *models.Coord
	sensorBearing *float64
	legs          map[route.Purpose]*route.Route
	initialCamera bool
	preZoom       bool
	// watches maps center key to its live geofence watch; re-armed
	// whenever the center coordinate moves.
	watches map[string]*geoWatch

	// roleCtx scopes in-flight route resolutions, geofence subscriptions
	// and the refresh ticker to the current role; role changes cancel it.
	roleCtx    context.Context
	roleCancel context.CancelFunc
	baseCtx    context.Context
}

func New(cfg Config, store geostore.Store, provider route.Provider, cache *route.Cache,
	recorder *trip.Recorder, sessions session.Store, sink Sink, producer Publisher,
	logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		cfg:           cfg,
		logger:        logger,
		store:         store,
		provider:      provider,
		cache:         cache,
		recorder:      recorder,
		sessions:      sessions,
		sink:          sink,
		producer:      producer,
		legs:          make(map[route.Purpose]*route.Route),
		initialCamera: true,
		preZoom:       true,
		watches:       make(map[string]*geoWatch),
	}
	if s, ok, err := sessions.Load(); err != nil {
		logger.Warn("session restore failed", "error", err)
	} else if ok {
		c.settings = s
		c.position = s.LastCoord
	}
	if !c.settings.AutoFollowSet {
		c.settings.AutoFollow = true
		c.settings.AutoFollowSet = true
	}
	return c
}

// Start activates the coordinator. If a role was restored from the
// session it resumes its subscriptions and refresh cadence immediately.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	c.baseCtx = ctx
	role := c.settings.Role
	c.mu.Unlock()
	if role.Valid() {
		c.activateRole(role)
	}
}

// Role returns the active role, or "" before login.
func (c *Coordinator) Role() models.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.Role
}

// LoginAs sets the active role explicitly.
func (c *Coordinator) LoginAs(role models.Role) {
	if !role.Valid() {
		return
	}
	c.activateRole(role)
}

// SwitchRole flips between the two roles. A no-op before login.
func (c *Coordinator) SwitchRole() {
	c.mu.Lock()
	cur := c.settings.Role
	c.mu.Unlock()
	if !cur.Valid() {
		return
	}
	c.activateRole(cur.Other())
}

// activateRole atomically swaps owned/observed keys, cancels work tied to
// the old role, re-subscribes geofences, and forces a camera recompute.
func (c *Coordinator) activateRole(role models.Role) {
	c.mu.Lock()
	if c.roleCancel != nil {
		c.roleCancel()
	}
	c.settings.Role = role
	c.profile = profileFor(role, c.cfg)
	// Route and camera state computed under the old role is stale. Old
	// watches die with the cancelled role context.
	c.legs = make(map[route.Purpose]*route.Route)
	c.counterpart = nil
	c.watches = make(map[string]*geoWatch)
	c.preZoom = true
	base := c.baseCtx
	if base == nil {
		base = context.Background()
	}
	c.roleCtx, c.roleCancel = context.WithCancel(base)
	rctx := c.roleCtx
	settings := c.settings
	c.mu.Unlock()

	if err := c.sessions.Save(settings); err != nil {
		c.logger.Warn("saving session failed", "error", err)
	}
	c.logger.Info("role activated", "role", string(role))

	c.subscribeGeofences(rctx)
	go c.refreshLoop(rctx)
	c.refresh(rctx)
}

// OnPositionUpdate ingests one raw fix. It never blocks on a network
// round trip: publishing and mirroring happen on child tasks.
func (c *Coordinator) OnPositionUpdate(ctx context.Context, coord models.Coord, speed float64) {
	observability.PositionUpdatesTotal.Inc()

	c.mu.Lock()
	c.position = &coord
	c.settings.LastCoord = &coord
	profile := c.profile
	settings := c.settings
	first := c.initialCamera
	c.mu.Unlock()

	if err := c.sessions.Save(settings); err != nil {
		c.logger.Warn("saving session failed", "error", err)
	}
	if !profile.role.Valid() {
		// No role yet: record locally, publish nothing.
		return
	}

	update := models.PositionUpdate{Coord: coord, Speed: speed, Timestamp: time.Now().UnixMilli()}
	go func() {
		pctx := context.WithoutCancel(ctx)
		if err := c.store.SetLocation(pctx, profile.ownKey, coord); err != nil {
			c.logger.Warn("publishing location failed", "key", profile.ownKey, "error", err)
		}
		if c.producer != nil {
			if err := c.producer.PublishPosition(pctx, profile.ownKey, update); err != nil {
				c.logger.Warn("position publish failed", "error", err)
			}
		}
	}()

	c.recorder.AppendPoint(ctx, coord, speed)

	if first {
		c.mu.Lock()
		c.initialCamera = false
		c.mu.Unlock()
		c.emitCamera()
	}
}

// SetBearing feeds the live compass bearing used by DRIVER camera poses.
func (c *Coordinator) SetBearing(deg float64) {
	c.mu.Lock()
	c.sensorBearing = &deg
	c.mu.Unlock()
}

// SetAutoFollow toggles camera directives. While disabled, state keeps
// updating but nothing is emitted, preserving manual framing.
func (c *Coordinator) SetAutoFollow(enabled bool) {
	c.mu.Lock()
	c.settings.AutoFollow = enabled
	settings := c.settings
	role := c.settings.Role
	c.mu.Unlock()
	if err := c.sessions.Save(settings); err != nil {
		c.logger.Warn("saving session failed", "error", err)
	}
	// Restart the refresh cadence so a re-enable recomputes promptly.
	if enabled && role.Valid() {
		c.activateRole(role)
	}
}

// SetAirport publishes the shared airport waypoint and re-arms its
// geofence. Whichever participant last set it owns the key.
func (c *Coordinator) SetAirport(ctx context.Context, coord models.Coord) error {
	c.mu.Lock()
	c.airport = &coord
	rctx := c.roleCtx
	c.mu.Unlock()
	if err := c.store.SetLocation(ctx, models.KeyAirportLocation, coord); err != nil {
		return err
	}
	if rctx != nil {
		c.armGeofence(rctx, models.KeyAirportLocation, coord)
	}
	return nil
}

// StartTrip begins recording. Only meaningful once a role is active.
func (c *Coordinator) StartTrip(ctx context.Context) *models.Trip {
	t := c.recorder.Start(ctx)
	c.mu.Lock()
	c.settings.TripRunning = true
	settings := c.settings
	c.mu.Unlock()
	if err := c.sessions.Save(settings); err != nil {
		c.logger.Warn("saving session failed", "error", err)
	}
	return t
}

// StopTrip closes the current trip. A DRIVER stopping the trip also
// clears all published rendezvous keys; the meeting is over.
func (c *Coordinator) StopTrip(ctx context.Context) *models.Trip {
	t := c.recorder.Stop(ctx)
	c.mu.Lock()
	c.settings.TripRunning = false
	settings := c.settings
	role := c.profile.role
	c.mu.Unlock()
	if err := c.sessions.Save(settings); err != nil {
		c.logger.Warn("saving session failed", "error", err)
	}
	if t != nil && role == models.RoleDriver {
		for _, key := range []string{models.KeyDriverLocation, models.KeyPilotLocation, models.KeyAirportLocation} {
			if err := c.store.RemoveLocation(ctx, key); err != nil {
				c.logger.Warn("clearing location failed", "key", key, "error", err)
			}
		}
	}
	return t
}

// CameraAnimationDone is reported by the presentation layer after a
// directive's animation finishes or is cancelled; both outcomes trigger
// the same marker and route refresh.
func (c *Coordinator) CameraAnimationDone(completed bool) {
	c.mu.Lock()
	c.preZoom = false
	rctx := c.roleCtx
	c.mu.Unlock()
	if rctx != nil {
		c.refresh(rctx)
	}
}

// refreshLoop re-derives remote state and camera at the role's cadence.
func (c *Coordinator) refreshLoop(ctx context.Context) {
	c.mu.Lock()
	interval := c.profile.refreshInterval
	c.mu.Unlock()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refresh(ctx)
		}
	}
}

// refresh resolves the counterpart and airport, decides which route legs
// are active, and re-emits the drawable path and camera.
func (c *Coordinator) refresh(ctx context.Context) {
	c.mu.Lock()
	profile := c.profile
	c.mu.Unlock()
	if !profile.role.Valid() {
		return
	}

	if coord, ok, err := c.store.GetLocation(ctx, profile.counterpartKey); err != nil {
		c.logger.Debug("counterpart lookup failed", "key", profile.counterpartKey, "error", err)
	} else if ok {
		c.mu.Lock()
		c.counterpart = &coord
		c.mu.Unlock()
		// The watch follows the counterpart: re-armed on every move.
		c.armGeofence(ctx, profile.counterpartKey, coord)
	}
	if coord, ok, err := c.store.GetLocation(ctx, models.KeyAirportLocation); err != nil {
		c.logger.Debug("airport lookup failed", "error", err)
	} else if ok {
		c.mu.Lock()
		c.airport = &coord
		c.mu.Unlock()
		// An airport set by the other participant still gets a watch.
		c.armGeofence(ctx, models.KeyAirportLocation, coord)
	}

	c.mu.Lock()
	counterpart := c.counterpart
	airport := c.airport
	pos := c.position
	c.mu.Unlock()
	// Watches are armed above even before the first fix; route and
	// camera work need a position.
	if pos == nil {
		return
	}
	position := *pos

	var driverPos, pilotPos *models.Coord
	if profile.role == models.RoleDriver {
		driverPos, pilotPos = &position, counterpart
	} else {
		driverPos, pilotPos = counterpart, &position
	}

	// Once driver and pilot have met, only the airport leg matters.
	met := driverPos != nil && pilotPos != nil &&
		geo.Distance(*driverPos, *pilotPos) < c.cfg.MeetupDistance

	if met {
		c.dropLeg(route.PurposePrimary)
	} else if driverPos != nil && pilotPos != nil {
		c.resolveRoute(ctx, *driverPos, *pilotPos, route.PurposePrimary)
	}
	if pilotPos != nil && airport != nil {
		c.resolveRoute(ctx, *pilotPos, *airport, route.PurposeSecondary)
	}

	c.publishRoute()
	c.emitCamera()
}

// resolveRoute serves a leg from cache when fresh, otherwise asks the
// provider, selects the best candidate, and replaces the leg. Provider
// failure retains the prior leg unchanged.
func (c *Coordinator) resolveRoute(ctx context.Context, origin, destination models.Coord, purpose route.Purpose) {
	if r, ok := c.cache.Get(origin, destination); ok {
		observability.RouteCacheHitsTotal.Inc()
		c.setLeg(purpose, &r)
		return
	}
	observability.RouteRequestsTotal.Inc()
	candidates, err := c.provider.GetRoutes(ctx, origin, destination)
	if err != nil {
		observability.RouteFailuresTotal.Inc()
		c.logger.Warn("route request failed", "purpose", string(purpose), "error", err)
		return
	}
	best, ok := route.SelectBest(candidates)
	if !ok {
		observability.RouteFailuresTotal.Inc()
		c.logger.Warn("route request returned no candidates", "purpose", string(purpose))
		return
	}
	c.cache.Set(origin, destination, best)
	c.setLeg(purpose, &best)
}

func (c *Coordinator) setLeg(purpose route.Purpose, r *route.Route) {
	c.mu.Lock()
	c.legs[purpose] = r
	c.mu.Unlock()
}

func (c *Coordinator) dropLeg(purpose route.Purpose) {
	c.mu.Lock()
	delete(c.legs, purpose)
	c.mu.Unlock()
}

// publishRoute concatenates active legs in travel order
// (driver -> pilot -> airport) into one continuous path.
func (c *Coordinator) publishRoute() {
	c.mu.Lock()
	primary := c.legs[route.PurposePrimary]
	secondary := c.legs[route.PurposeSecondary]
	c.mu.Unlock()

	var path []models.Coord
	if primary != nil {
		path = append(path, primary.Waypoints...)
	}
	if secondary != nil {
		path = append(path, secondary.Waypoints...)
	}
	if len(path) == 0 {
		return
	}
	c.sink.PublishRoute(path)
}

// emitCamera derives and publishes a camera directive unless auto-follow
// is off. Stored state is updated either way.
func (c *Coordinator) emitCamera() {
	c.mu.Lock()
	if !c.settings.AutoFollow || c.position == nil || !c.profile.role.Valid() {
		c.mu.Unlock()
		return
	}
	in := camera.Input{
		Role:          c.profile.role,
		Position:      *c.position,
		Counterpart:   c.counterpart,
		Airport:       c.airport,
		SensorBearing: c.sensorBearing,
		PreZoom:       c.preZoom,
	}
	if primary := c.legs[route.PurposePrimary]; primary != nil {
		in.Waypoints = primary.Waypoints
	} else if secondary := c.legs[route.PurposeSecondary]; secondary != nil {
		in.Waypoints = secondary.Waypoints
	}
	c.mu.Unlock()

	d, err := camera.Derive(in)
	if err != nil {
		// Missing prerequisite state; recoverable, no directive.
		c.logger.Debug("camera derivation skipped", "error", err)
		return
	}
	c.sink.PublishCamera(d)
}

// subscribeGeofences arms radius watches around the counterpart and the
// airport for the active role's triad of interest.
func (c *Coordinator) subscribeGeofences(ctx context.Context) {
	c.mu.Lock()
	profile := c.profile
	c.mu.Unlock()

	for _, key := range []string{profile.counterpartKey, models.KeyAirportLocation} {
		coord, ok, err := c.store.GetLocation(ctx, key)
		if err != nil || !ok {
			// Not published yet; refresh arms the watch once the key
			// resolves, and SetAirport arms the airport's.
			continue
		}
		c.armGeofence(ctx, key, coord)
	}
}

// geoWatch is one live geofence subscription and the center it covers.
type geoWatch struct {
	center models.Coord
	cancel context.CancelFunc
	query  geostore.Query
}

// armGeofence ensures a single watch exists for centerKey at center. A
// prior watch whose center moved is closed before the new one arms, so
// the fence tracks the key instead of going stale at its first resolved
// position and superseded fences cannot keep firing.
func (c *Coordinator) armGeofence(ctx context.Context, centerKey string, center models.Coord) {
	c.mu.Lock()
	if w, ok := c.watches[centerKey]; ok {
		if w.center == center {
			c.mu.Unlock()
			return
		}
		w.cancel()
		w.query.Close()
	}
	wctx, cancel := context.WithCancel(ctx)
	q := c.store.SubscribeGeoQuery(wctx, center, c.cfg.GeofenceRadiusKm)
	c.watches[centerKey] = &geoWatch{center: center, cancel: cancel, query: q}
	c.mu.Unlock()
	go c.consumeGeofence(wctx, centerKey, q)
}

// consumeGeofence drains one watch's events. An ENTER of our own key
// means we arrived at whatever the watch's center represents.
func (c *Coordinator) consumeGeofence(ctx context.Context, centerKey string, q geostore.Query) {
	defer q.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.Events():
			if !ok {
				return
			}
			c.onGeofenceEvent(ctx, centerKey, e)
		}
	}
}

func (c *Coordinator) onGeofenceEvent(ctx context.Context, centerKey string, e geostore.Event) {
	switch e.Kind {
	case geostore.EventError:
		c.logger.Warn("geofence query error", "center", centerKey, "error", e.Err)
		return
	case geostore.EventReady:
		return
	}
	observability.GeofenceEventsTotal.WithLabelValues(centerKey, string(e.Kind)).Inc()

	c.mu.Lock()
	profile := c.profile
	c.mu.Unlock()

	// Track the counterpart's movements reported by its own geofence.
	if e.Key == profile.counterpartKey && (e.Kind == geostore.EventMoved || e.Kind == geostore.EventEntered) {
		coord := e.Coord
		c.mu.Lock()
		c.counterpart = &coord
		c.mu.Unlock()
	}

	if e.Key != profile.ownKey || e.Kind != geostore.EventEntered {
		return
	}
	switch centerKey {
	case profile.counterpartKey:
		if profile.role == models.RoleDriver {
			c.recorder.MarkArrivedAtPilot(ctx)
		}
	case models.KeyAirportLocation:
		c.recorder.MarkArrivedAtAirport(ctx)
		// Auto-stop is the driver's alone; the pilot only flags arrival.
		if profile.role == models.RoleDriver {
			c.logger.Info("airport arrival, stopping trip")
			c.StopTrip(ctx)
		}
	}
}
