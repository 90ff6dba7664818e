// Package classify maps a MAVLink message id to a priority tier, an
// "essential for long-range" flag, and blacklist/rate-limit
// decisions, per the exact tables the transport core requires.
package classify

import "time"

// Tier is a priority class for the tiered packet queue (C3).
type Tier int

const (
	// TierCritical (T0) carries commands that must pre-empt everything else.
	TierCritical Tier = iota
	// TierImportant (T1) carries frequent telemetry.
	TierImportant
	// TierRoutine (T2) carries everything else.
	TierRoutine
)

func (t Tier) String() string {
	switch t {
	case TierCritical:
		return "T0"
	case TierImportant:
		return "T1"
	case TierRoutine:
		return "T2"
	default:
		return "unknown"
	}
}

// Message ids named by the tier/essential/rate-limit tables. These
// mirror the vocabulary internal/actuators's MAVLink constants use,
// restricted to the ids this package's tables actually reference.
const (
	MsgHeartbeat         = 0
	MsgGPSRawInt         = 24
	MsgAttitude          = 30
	MsgGlobalPositionInt = 33
	MsgSetMode           = 11
	MsgParamSet          = 23
	MsgMissionRequest    = 40
	MsgMissionItem       = 39
	MsgMissionCount      = 44
	MsgCommandLong       = 76
	MsgCommandAck        = 77
	MsgDoSetMode         = 176
)

var tierCritical = map[byte]struct{}{
	MsgCommandLong:    {},
	MsgSetMode:        {},
	MsgDoSetMode:      {},
	MsgParamSet:       {},
	MsgMissionItem:    {},
	MsgMissionCount:   {},
}

var tierImportant = map[byte]struct{}{
	MsgHeartbeat:         {},
	MsgGPSRawInt:         {},
	MsgAttitude:          {},
	MsgGlobalPositionInt: {},
}

// Essential is the set of message ids allowed onto the long-range
// link, independent of tier membership — an essential id not in
// T0/T1 still enqueues at T2.
var Essential = map[byte]struct{}{
	MsgHeartbeat:         {},
	MsgAttitude:          {},
	MsgGlobalPositionInt: {},
	74:                   {}, // VFR_HUD
	MsgCommandLong:       {},
	MsgCommandAck:        {},
	147:                  {}, // BATTERY_STATUS
	253:                  {}, // STATUSTEXT
}

// DefaultBlacklist is the deployment-constant set of message ids whose
// traffic is dropped before enqueue (outbound) and discarded before
// delivery (inbound). Values are the high-rate sensor streams the
// reference deployment excludes from the air interface.
var DefaultBlacklist = map[byte]struct{}{
	88:  {}, // HIL_OPTICAL_FLOW
	100: {}, // OPTICAL_FLOW
	106: {}, // HIL_SENSOR
	27:  {}, // RAW_IMU
	129: {}, // SCALED_IMU3
	132: {},
	241: {}, // DISTANCE_SENSOR
}

// RateLimit is the minimum interval between accepted enqueues of a
// given message id.
type RateLimit struct {
	limits map[byte]time.Duration
	last   [256]time.Time
}

// DefaultRateLimits constructs the rate-limit table with the three
// entries §3 requires (plus any caller additions via Set).
func DefaultRateLimits() *RateLimit {
	rl := &RateLimit{limits: make(map[byte]time.Duration)}
	rl.limits[MsgGPSRawInt] = 500 * time.Millisecond
	rl.limits[MsgAttitude] = 500 * time.Millisecond
	rl.limits[MsgGlobalPositionInt] = 333 * time.Millisecond
	return rl
}

// Set installs or overrides the minimum interval for id.
func (rl *RateLimit) Set(id byte, interval time.Duration) {
	rl.limits[id] = interval
}

// Allow reports whether an enqueue of id at time now is accepted, and
// if so records now as the last accepted time. Ids with no configured
// limit are always allowed.
func (rl *RateLimit) Allow(id byte, now time.Time) bool {
	interval, limited := rl.limits[id]
	if !limited {
		return true
	}
	if !rl.last[id].IsZero() && now.Sub(rl.last[id]) < interval {
		return false
	}
	rl.last[id] = now
	return true
}

// Classifier bundles the blacklist and rate-limit state, matching
// internal/actuators's constructor-with-state idiom.
type Classifier struct {
	Blacklist map[byte]struct{}
	RateLimit *RateLimit
}

// New constructs a Classifier with the default blacklist and rate
// limits, overridable per deployment via the exported fields.
func New() *Classifier {
	return &Classifier{
		Blacklist: cloneSet(DefaultBlacklist),
		RateLimit: DefaultRateLimits(),
	}
}

func cloneSet(src map[byte]struct{}) map[byte]struct{} {
	dst := make(map[byte]struct{}, len(src))
	for k := range src {
		dst[k] = struct{}{}
	}
	return dst
}

// TierOf returns the priority tier for id; ids in neither the critical
// nor important table fall through to routine.
func TierOf(id byte) Tier {
	if _, ok := tierCritical[id]; ok {
		return TierCritical
	}
	if _, ok := tierImportant[id]; ok {
		return TierImportant
	}
	return TierRoutine
}

// IsEssential reports whether id belongs to the long-range essential set.
func IsEssential(id byte) bool {
	_, ok := Essential[id]
	return ok
}

// Decision is the outcome of classifying an outbound message.
type Decision struct {
	Tier        Tier
	Essential   bool
	Blacklisted bool
	RateLimited bool
}

// Accepted reports whether the message should be enqueued at all.
func (d Decision) Accepted() bool {
	return !d.Blacklisted && !d.RateLimited
}

// Classify applies the send-path classification order — blacklist,
// then rate-limit, then tier assignment — per §4.2.
func (c *Classifier) Classify(id byte, now time.Time) Decision {
	if _, blacklisted := c.Blacklist[id]; blacklisted {
		return Decision{Blacklisted: true}
	}
	if !c.RateLimit.Allow(id, now) {
		return Decision{RateLimited: true}
	}
	return Decision{
		Tier:      TierOf(id),
		Essential: IsEssential(id),
	}
}

// IsBlacklisted reports whether id is on the inbound discard list,
// used by the receiver (C5) before delivering a payload locally.
func (c *Classifier) IsBlacklisted(id byte) bool {
	_, ok := c.Blacklist[id]
	return ok
}
