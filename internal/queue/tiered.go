package queue

import (
	"time"

	"github.com/Alexishere01/aerolink/internal/classify"
)

// Packet is a queued packet awaiting long-range transmission, per §3.
type Packet struct {
	Payload      []byte
	Dest         byte
	Priority     classify.Tier
	EnqueueTime  time.Time
	RelayRequest bool
}

// Tier capacities and staleness TTLs, §3 exactly.
const (
	Tier0Capacity = 10
	Tier1Capacity = 20
	Tier2Capacity = 30
)

var tierTTL = [3]time.Duration{
	1000 * time.Millisecond,
	2000 * time.Millisecond,
	5000 * time.Millisecond,
}

// TTL returns the staleness timeout for tier t.
func TTL(t classify.Tier) time.Duration {
	return tierTTL[t]
}

// Tiered is the three-ring priority queue C3 specifies.
type Tiered struct {
	rings [3]*Ring[Packet]
}

// NewTiered constructs the queue with the fixed tier capacities.
func NewTiered() *Tiered {
	return &Tiered{
		rings: [3]*Ring[Packet]{
			NewRing[Packet](Tier0Capacity + 1),
			NewRing[Packet](Tier1Capacity + 1),
			NewRing[Packet](Tier2Capacity + 1),
		},
	}
}

// Enqueue places pkt on its tier's ring, returning ErrFull if the
// tier is at capacity.
func (q *Tiered) Enqueue(pkt Packet) error {
	return q.rings[pkt.Priority].Enqueue(pkt)
}

// PeekHead returns the head packet of tier t, or nil if empty.
func (q *Tiered) PeekHead(t classify.Tier) *Packet {
	return q.rings[t].PeekHead()
}

// DropHead removes the head packet of tier t.
func (q *Tiered) DropHead(t classify.Tier) {
	q.rings[t].DropHead()
}

// Count returns the occupancy of tier t.
func (q *Tiered) Count(t classify.Tier) int {
	return q.rings[t].Count()
}

// IsEmpty reports whether tier t has no queued packets.
func (q *Tiered) IsEmpty(t classify.Tier) bool {
	return q.rings[t].Empty()
}

// IsFull reports whether tier t is at capacity.
func (q *Tiered) IsFull(t classify.Tier) bool {
	return q.rings[t].Full()
}
