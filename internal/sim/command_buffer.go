package sim

import (
	"sync"

	"github.com/MerchantPug/Pehkui/internal/telemetry"
)

const commandBufferOccupancyMetricKey = "scale_command_buffer_occupancy"

// BufferStats is a point-in-time view of a CommandBuffer.
type BufferStats struct {
	Len       int    `json:"len"`
	Capacity  int    `json:"capacity"`
	HighWater int    `json:"highWater"`
	Dropped   uint64 `json:"dropped"`
}

// CommandBuffer stages scale commands in a fixed-size ring and counts how
// many are waiting per state. Producers may be concurrent; Drain is called
// by the simulation loop only.
type CommandBuffer struct {
	mu        sync.Mutex
	ring      []Command
	head      int
	count     int
	highWater int
	dropped   uint64
	perState  map[stateRef]int
	metrics   telemetry.Metrics
}

type stateRef struct {
	entity    string
	scaleType string
}

func refOf(cmd Command) stateRef {
	return stateRef{entity: cmd.EntityID, scaleType: cmd.ScaleType}
}

func NewCommandBuffer(capacity int, metrics telemetry.Metrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &CommandBuffer{
		ring:     make([]Command, capacity),
		perState: make(map[stateRef]int),
		metrics:  metrics,
	}
}

func (b *CommandBuffer) Capacity() int {
	if b == nil {
		return 0
	}
	return len(b.ring)
}

// Push stages cmd behind everything already queued. It reports false and
// counts a drop when the ring is full.
func (b *CommandBuffer) Push(cmd Command) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == len(b.ring) {
		b.dropped++
		b.metrics.Add(telemetry.MetricCommandsDropped, 1)
		return false
	}
	b.ring[(b.head+b.count)%len(b.ring)] = cmd
	b.count++
	b.highWater = max(b.highWater, b.count)
	b.perState[refOf(cmd)]++
	b.metrics.Store(commandBufferOccupancyMetricKey, uint64(b.count))
	return true
}

// Drain removes every staged command in arrival order.
func (b *CommandBuffer) Drain() []Command {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	out := make([]Command, 0, b.count)
	for b.count > 0 {
		out = append(out, b.ring[b.head])
		b.ring[b.head] = Command{}
		b.head = (b.head + 1) % len(b.ring)
		b.count--
	}
	clear(b.perState)
	b.metrics.Store(commandBufferOccupancyMetricKey, 0)
	return out
}

func (b *CommandBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// PendingFor reports how many staged commands target the given state.
// scaleType must be in canonical identifier form.
func (b *CommandBuffer) PendingFor(entityID, scaleType string) int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.perState[stateRef{entity: entityID, scaleType: scaleType}]
}

func (b *CommandBuffer) Dropped() uint64 {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

func (b *CommandBuffer) Stats() BufferStats {
	if b == nil {
		return BufferStats{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Len:       b.count,
		Capacity:  len(b.ring),
		HighWater: b.highWater,
		Dropped:   b.dropped,
	}
}
