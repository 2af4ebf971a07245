// Package hub owns the authoritative scale states of a running server. It
// stages commands from transports, advances every state once per tick and
// turns dirty states into sync frames for connected subscribers.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MerchantPug/Pehkui/internal/net/proto"
	"github.com/MerchantPug/Pehkui/internal/persist"
	"github.com/MerchantPug/Pehkui/internal/sim"
	"github.com/MerchantPug/Pehkui/internal/telemetry"
	"github.com/MerchantPug/Pehkui/logging"
	loggingLifecycle "github.com/MerchantPug/Pehkui/logging/lifecycle"
	loggingNetwork "github.com/MerchantPug/Pehkui/logging/network"
	loggingScaling "github.com/MerchantPug/Pehkui/logging/scaling"
	"github.com/MerchantPug/Pehkui/registry"
	"github.com/MerchantPug/Pehkui/scale"
)

var (
	ErrUnknownType   = errors.New("hub: unknown scale type")
	ErrUnknownState  = errors.New("hub: state not tracked")
	ErrInvalidEntity = errors.New("hub: invalid entity id")
	ErrQueueFull     = errors.New("hub: command queue full")
)

// Key identifies one tracked state.
type Key struct {
	Entity string
	Type   registry.ID
}

func (k Key) String() string {
	return k.Entity + "/" + k.Type.String()
}

func compareKeys(a, b Key) int {
	if a.Entity != b.Entity {
		if a.Entity < b.Entity {
			return -1
		}
		return 1
	}
	return a.Type.Compare(b.Type)
}

// entity groups the states of one owner so typed modifiers can read the
// owner's other scales.
type entity struct {
	id            string
	authoritative bool
	states        map[*scale.Type]*scale.Data
}

func newEntity(id string, authoritative bool) *entity {
	return &entity{id: id, authoritative: authoritative, states: make(map[*scale.Type]*scale.Data)}
}

func (e *entity) Authoritative() bool {
	return e != nil && e.authoritative
}

func (e *entity) ScaleData(t *scale.Type) *scale.Data {
	if e == nil {
		return nil
	}
	return e.states[t]
}

// Config controls hub behaviour.
type Config struct {
	CommandCapacity  int
	DefaultTickDelay int32
	// AutosaveTicks saves every tracked state each time the tick counter
	// is a multiple of it. Zero disables autosave.
	AutosaveTicks uint64
	// AutoTrack accepts commands for untracked states of registered types
	// and tracks them when the command is applied.
	AutoTrack bool

	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Store     *persist.Store
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		CommandCapacity:  256,
		DefaultTickDelay: scale.DefaultScaleTickDelay,
	}
}

// Hub is safe for concurrent use. Step and Flush are expected to be driven
// by a single loop goroutine.
type Hub struct {
	mu          sync.Mutex
	regs        *scale.Registries
	cfg         Config
	entities    map[string]*entity
	states      map[Key]*scale.Data
	listened    map[*scale.Type]func()
	subscribers map[string]*Subscriber

	commands    *sim.CommandBuffer
	tick        atomic.Uint64
	nextSession atomic.Uint64

	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher
}

// New constructs a hub over regs.
func New(regs *scale.Registries, cfg Config) *Hub {
	if regs == nil {
		regs = scale.NewRegistries()
	}
	if cfg.CommandCapacity <= 0 {
		cfg.CommandCapacity = DefaultConfig().CommandCapacity
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Hub{
		regs:        regs,
		cfg:         cfg,
		entities:    make(map[string]*entity),
		states:      make(map[Key]*scale.Data),
		listened:    make(map[*scale.Type]func()),
		subscribers: make(map[string]*Subscriber),
		commands:    sim.NewCommandBuffer(cfg.CommandCapacity, metrics),
		logger:      logger,
		metrics:     metrics,
		publisher:   publisher,
	}
}

// Registries returns the registries the hub resolves identifiers against.
func (h *Hub) Registries() *scale.Registries {
	return h.regs
}

// Tick returns the number of completed steps.
func (h *Hub) Tick() uint64 {
	return h.tick.Load()
}

// Track starts simulating the state for (entityID, typeID), restoring it
// from the store when a document exists. Tracking an existing state returns
// it unchanged.
func (h *Hub) Track(ctx context.Context, entityID string, typeID registry.ID) (*scale.Data, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.trackLocked(ctx, entityID, typeID)
}

func (h *Hub) trackLocked(ctx context.Context, entityID string, typeID registry.ID) (*scale.Data, error) {
	if entityID == "" || len(entityID) > proto.MaxEntityIDLength {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEntity, entityID)
	}
	key := Key{Entity: entityID, Type: typeID}
	if data, ok := h.states[key]; ok {
		return data, nil
	}
	typ, ok := h.regs.Types.Lookup(typeID)
	if !ok || typ == scale.Invalid {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typeID)
	}

	owner, ok := h.entities[entityID]
	if !ok {
		owner = newEntity(entityID, true)
		h.entities[entityID] = owner
	}
	data := scale.NewBuilder().Type(typ).Entity(owner).Build()
	if h.cfg.DefaultTickDelay > 0 {
		data.SetScaleTickDelay(h.cfg.DefaultTickDelay)
	}

	tick := h.tick.Load()
	subject := logging.Entity(entityID)
	restored := false
	if h.cfg.Store != nil {
		doc, found, err := h.cfg.Store.Load(entityID, typeID)
		switch {
		case err != nil:
			h.logger.Printf("hub: load %s failed, using defaults: %v", key, err)
		case found:
			for _, skipped := range data.FromDocument(doc, h.regs.Modifiers) {
				loggingScaling.ModifierUnresolved(ctx, h.publisher, tick, subject, typeID.String(), loggingScaling.ModifierUnresolvedPayload{ID: skipped, Source: "store"})
			}
			restored = true
			loggingScaling.StateLoaded(ctx, h.publisher, tick, subject, typeID.String(), loggingScaling.PersistencePayload{Key: key.String()})
		}
	}

	h.listenLocked(typ)
	owner.states[typ] = data
	h.states[key] = data
	data.MarkForSync(true)
	h.metrics.Store(telemetry.MetricTrackedStates, uint64(len(h.states)))
	loggingLifecycle.EntityTracked(ctx, h.publisher, tick, subject, typeID.String(), loggingLifecycle.EntityPayload{Restored: restored})
	return data, nil
}

func (h *Hub) listenLocked(typ *scale.Type) {
	if _, ok := h.listened[typ]; ok {
		return
	}
	metrics := h.metrics
	h.listened[typ] = typ.Subscribe(func(*scale.Data) {
		metrics.Add(telemetry.MetricScaleUpdates, 1)
	})
}

// Release saves and stops simulating the state. It reports whether the
// state was tracked.
func (h *Hub) Release(ctx context.Context, entityID string, typeID registry.ID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := Key{Entity: entityID, Type: typeID}
	data, ok := h.states[key]
	if !ok {
		return false
	}
	if err := h.saveLocked(ctx, key, data); err != nil {
		h.logger.Printf("hub: save %s on release failed: %v", key, err)
	}
	delete(h.states, key)
	if owner, ok := h.entities[entityID]; ok {
		delete(owner.states, data.ScaleType())
		if len(owner.states) == 0 {
			delete(h.entities, entityID)
		}
	}
	h.metrics.Store(telemetry.MetricTrackedStates, uint64(len(h.states)))
	loggingLifecycle.EntityReleased(ctx, h.publisher, h.tick.Load(), logging.Entity(entityID), typeID.String())
	return true
}

// State returns the tracked data for key. The data is owned by the loop
// goroutine; other callers should use View.
func (h *Hub) State(key Key) (*scale.Data, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.states[key]
	return data, ok
}

// View is a point-in-time copy of one tracked state.
type View struct {
	Entity    string   `json:"entity"`
	ScaleType string   `json:"scaleType"`
	Scale     float32  `json:"scale"`
	BaseScale float32  `json:"baseScale"`
	Target    float32  `json:"target"`
	Ticks     int32    `json:"ticks"`
	Delay     int32    `json:"delay"`
	Modifiers []string `json:"modifiers,omitempty"`
	Pending   int      `json:"pending,omitempty"`
	Dirty     bool     `json:"dirty,omitempty"`
}

// View returns a copy of the state for key.
func (h *Hub) View(key Key) (View, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.states[key]
	if !ok {
		return View{}, false
	}
	return h.viewLocked(key, data), true
}

// Views returns copies of every tracked state in key order.
func (h *Hub) Views() []View {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := h.sortedKeysLocked()
	views := make([]View, 0, len(keys))
	for _, key := range keys {
		views = append(views, h.viewLocked(key, h.states[key]))
	}
	return views
}

func (h *Hub) viewLocked(key Key, data *scale.Data) View {
	view := View{
		Entity:    key.Entity,
		ScaleType: key.Type.String(),
		Scale:     data.Scale(),
		BaseScale: data.BaseScale(),
		Target:    data.TargetScale(),
		Ticks:     data.ScaleTicks(),
		Delay:     data.ScaleTickDelay(),
		Pending:   h.commands.PendingFor(key.Entity, key.Type.String()),
		Dirty:     data.ShouldSync(),
	}
	for _, m := range data.Modifiers() {
		if id, ok := h.regs.Modifiers.IDOf(m); ok {
			view.Modifiers = append(view.Modifiers, id.String())
		}
	}
	return view
}

func (h *Hub) sortedKeysLocked() []Key {
	keys := make([]Key, 0, len(h.states))
	for key := range h.states {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

// Enqueue stages cmd for the next Step.
func (h *Hub) Enqueue(cmd sim.Command) error {
	typeID, ok := registry.ParseID(cmd.ScaleType)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, cmd.ScaleType)
	}
	if typ, ok := h.regs.Types.Lookup(typeID); !ok || typ == scale.Invalid {
		return fmt.Errorf("%w: %s", ErrUnknownType, typeID)
	}
	if cmd.EntityID == "" {
		return ErrInvalidEntity
	}
	if !h.cfg.AutoTrack {
		h.mu.Lock()
		_, tracked := h.states[Key{Entity: cmd.EntityID, Type: typeID}]
		h.mu.Unlock()
		if !tracked {
			return fmt.Errorf("%w: %s/%s", ErrUnknownState, cmd.EntityID, typeID)
		}
	}
	cmd.ScaleType = typeID.String()
	cmd.OriginTick = h.tick.Load()
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = time.Now()
	}
	if !h.commands.Push(cmd) {
		return ErrQueueFull
	}
	return nil
}

// Pending reports the number of staged commands.
func (h *Hub) Pending() int {
	return h.commands.Len()
}

func (h *Hub) QueueStats() sim.BufferStats {
	return h.commands.Stats()
}

// Step advances the simulation one tick: staged commands are applied in
// arrival order, then every state ticks in key order.
func (h *Hub) Step(ctx context.Context) uint64 {
	commands := h.commands.Drain()

	h.mu.Lock()
	defer h.mu.Unlock()

	tick := h.tick.Add(1)
	for _, cmd := range commands {
		h.applyLocked(ctx, tick, cmd)
	}

	for _, key := range h.sortedKeysLocked() {
		data := h.states[key]
		moving := data.Transitioning()
		data.Tick()
		if moving && !data.Transitioning() {
			loggingScaling.TransitionCompleted(ctx, h.publisher, tick, logging.Entity(key.Entity), key.Type.String(), loggingScaling.TransitionCompletedPayload{
				Scale: data.BaseScale(),
				Ticks: data.ScaleTickDelay(),
			})
		}
	}

	if h.cfg.AutosaveTicks > 0 && tick%h.cfg.AutosaveTicks == 0 {
		if err := h.saveAllLocked(ctx); err != nil {
			h.logger.Printf("hub: autosave at tick %d: %v", tick, err)
		}
	}

	h.metrics.Add(telemetry.MetricTicks, 1)
	h.metrics.Store(telemetry.MetricTrackedStates, uint64(len(h.states)))
	return tick
}

func (h *Hub) applyLocked(ctx context.Context, tick uint64, cmd sim.Command) {
	subject := logging.Entity(cmd.EntityID)
	extra := map[string]any{"command_id": cmd.ID, "origin_tick": cmd.OriginTick}
	reject := func(reason string) {
		h.metrics.Add(telemetry.MetricCommandsRejected, 1)
		loggingScaling.CommandRejected(ctx, h.publisher, tick, subject, cmd.ScaleType, loggingScaling.CommandRejectedPayload{
			Command: string(cmd.Type),
			Reason:  reason,
		}, extra)
	}

	typeID, ok := registry.ParseID(cmd.ScaleType)
	if !ok {
		reject(ErrUnknownType.Error())
		return
	}
	data, ok := h.states[Key{Entity: cmd.EntityID, Type: typeID}]
	if !ok && h.cfg.AutoTrack {
		tracked, err := h.trackLocked(ctx, cmd.EntityID, typeID)
		if err != nil {
			reject(err.Error())
			return
		}
		data, ok = tracked, true
	}
	if !ok {
		reject(ErrUnknownState.Error())
		return
	}

	outcome, err := cmd.Apply(data, h.regs.Modifiers)
	if err != nil {
		reject(err.Error())
		return
	}
	h.metrics.Add(telemetry.MetricCommandsApplied, 1)

	payload := loggingScaling.ScaleChangedPayload{
		Operation: string(cmd.Type),
		Previous:  outcome.Previous,
		Target:    outcome.Target,
		Delay:     outcome.Delay,
	}
	if cmd.Scale != nil {
		payload.Operation = cmd.Scale.Operation
		payload.Operand = cmd.Scale.Operand
	}
	loggingScaling.ScaleChanged(ctx, h.publisher, tick, subject, cmd.ScaleType, payload, extra)
}

// Flush encodes every dirty state as a sync frame and clears its dirty
// flag. Frames are ordered by key.
func (h *Hub) Flush(ctx context.Context) [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()

	var (
		frames [][]byte
		bytes  int
	)
	for _, key := range h.sortedKeysLocked() {
		data := h.states[key]
		if !data.ShouldSync() {
			continue
		}
		frame, err := h.encodeLocked(key, data)
		if err != nil {
			h.logger.Printf("hub: encode %s: %v", key, err)
			continue
		}
		data.MarkForSync(false)
		frames = append(frames, frame)
		bytes += len(frame)
	}
	if len(frames) > 0 {
		h.metrics.Add(telemetry.MetricSyncFrames, uint64(len(frames)))
		h.metrics.Add(telemetry.MetricSyncBytes, uint64(bytes))
		loggingNetwork.SyncFlushed(ctx, h.publisher, h.tick.Load(), loggingNetwork.SyncFlushedPayload{Frames: len(frames), Bytes: bytes})
	}
	return frames
}

// Snapshot encodes every tracked state without touching dirty flags.
func (h *Hub) Snapshot() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

func (h *Hub) snapshotLocked() [][]byte {
	keys := h.sortedKeysLocked()
	frames := make([][]byte, 0, len(keys))
	for _, key := range keys {
		frame, err := h.encodeLocked(key, h.states[key])
		if err != nil {
			h.logger.Printf("hub: encode %s: %v", key, err)
			continue
		}
		frames = append(frames, frame)
	}
	return frames
}

func (h *Hub) encodeLocked(key Key, data *scale.Data) ([]byte, error) {
	payload, err := data.MarshalWire(h.regs.Modifiers)
	if err != nil {
		return nil, err
	}
	return proto.EncodeSyncFrame(proto.SyncFrame{
		Entity:    key.Entity,
		ScaleType: key.Type.String(),
		Payload:   payload,
	})
}

// Average merges the states at src into the state at dst.
func (h *Hub) Average(ctx context.Context, dst Key, src ...Key) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	target, ok := h.states[dst]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownState, dst)
	}
	sources := make([]*scale.Data, 0, len(src))
	for _, key := range src {
		data, ok := h.states[key]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownState, key)
		}
		sources = append(sources, data)
	}
	if err := target.AverageFrom(sources...); err != nil {
		return err
	}
	loggingScaling.StateAveraged(ctx, h.publisher, h.tick.Load(), logging.Entity(dst.Entity), dst.Type.String(), loggingScaling.StateAveragedPayload{
		Sources: len(sources),
		Scale:   target.BaseScale(),
	})
	return nil
}

// SaveAll writes every tracked state to the store.
func (h *Hub) SaveAll(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.saveAllLocked(ctx)
}

func (h *Hub) saveAllLocked(ctx context.Context) error {
	var errs []error
	for _, key := range h.sortedKeysLocked() {
		if err := h.saveLocked(ctx, key, h.states[key]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Hub) saveLocked(ctx context.Context, key Key, data *scale.Data) error {
	if h.cfg.Store == nil {
		return nil
	}
	if err := h.cfg.Store.Save(key.Entity, key.Type, data.ToDocument(h.regs.Modifiers)); err != nil {
		h.metrics.Add(telemetry.MetricSaveErrors, 1)
		return fmt.Errorf("save %s: %w", key, err)
	}
	h.metrics.Add(telemetry.MetricSaves, 1)
	loggingScaling.StateSaved(ctx, h.publisher, h.tick.Load(), logging.Entity(key.Entity), key.Type.String(), loggingScaling.PersistencePayload{Key: key.String()})
	return nil
}

// Run steps the hub at interval until ctx is cancelled, broadcasting the
// frames flushed after each step. Every state is saved on the way out.
func (h *Hub) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second / 20
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := h.SaveAll(context.WithoutCancel(ctx)); err != nil {
				h.logger.Printf("hub: final save: %v", err)
			}
			return nil
		case <-ticker.C:
			h.Step(ctx)
			if frames := h.Flush(ctx); len(frames) > 0 {
				h.Broadcast(frames)
			}
		}
	}
}

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Subscriber is a connected session receiving sync frames.
type Subscriber struct {
	id   string
	conn Conn
	mu   sync.Mutex
}

// ID returns the session identifier.
func (s *Subscriber) ID() string {
	return s.id
}

// WriteMessage serialises writes to the underlying connection.
func (s *Subscriber) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

// Greeting renders the first text message of a session given the number
// of snapshot frames that follow it.
type Greeting func(sessionID string, frames int) ([]byte, error)

// Subscribe registers conn, writes the greeting followed by a full
// snapshot, and only then lets broadcasts through to the session.
func (h *Hub) Subscribe(conn Conn, greeting Greeting) (*Subscriber, error) {
	id := fmt.Sprintf("session-%d", h.nextSession.Add(1))
	sub := &Subscriber{id: id, conn: conn}
	sub.mu.Lock()

	h.mu.Lock()
	h.subscribers[id] = sub
	h.metrics.Store(telemetry.MetricSessions, uint64(len(h.subscribers)))
	frames := h.snapshotLocked()
	h.mu.Unlock()

	err := sub.writeSnapshotLocked(greeting, frames)
	sub.mu.Unlock()
	if err != nil {
		h.Disconnect(id)
		return nil, err
	}
	return sub, nil
}

func (s *Subscriber) writeSnapshotLocked(greeting Greeting, frames [][]byte) error {
	if greeting != nil {
		data, err := greeting(s.id, len(frames))
		if err != nil {
			return fmt.Errorf("render greeting: %w", err)
		}
		if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return err
		}
	}
	for _, frame := range frames {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			return err
		}
	}
	return nil
}

// Disconnect removes the session and closes its connection. It reports
// whether the session was registered.
func (h *Hub) Disconnect(sessionID string) bool {
	h.mu.Lock()
	sub, ok := h.subscribers[sessionID]
	if ok {
		delete(h.subscribers, sessionID)
	}
	h.metrics.Store(telemetry.MetricSessions, uint64(len(h.subscribers)))
	h.mu.Unlock()

	if ok {
		sub.conn.Close()
	}
	return ok
}

// Sessions returns the number of connected subscribers.
func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Broadcast writes frames to every subscriber as binary messages.
// Subscribers whose writes fail are disconnected.
func (h *Hub) Broadcast(frames [][]byte) {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		for _, frame := range frames {
			if err := sub.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				h.logger.Printf("hub: write to %s failed: %v", sub.id, err)
				h.Disconnect(sub.id)
				break
			}
		}
	}
}

// Close disconnects every subscriber and detaches the hub's listeners.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subscribers
	h.subscribers = make(map[string]*Subscriber)
	for typ, cancel := range h.listened {
		cancel()
		delete(h.listened, typ)
	}
	h.metrics.Store(telemetry.MetricSessions, 0)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.conn.Close()
	}
}
