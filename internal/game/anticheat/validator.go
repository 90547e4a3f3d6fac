// Package anticheat validates incoming location samples for physical
// plausibility: speed, clock skew, accuracy, and device fingerprint churn.
package anticheat

import (
	"fmt"
	"sync"
	"time"

	"github.com/antozhu/manhunt/internal/geo"
	"github.com/antozhu/manhunt/internal/model"
)

// Violation severities and thresholds.
// Speed limits mirror the escalation ladder: fast vehicle, aircraft, teleport.
const (
	SpeedFastKmh     = 150.0
	SpeedAircraftKmh = 300.0
	SpeedTeleportKmh = 1000.0

	SeveritySpeedFast     = 5
	SeveritySpeedAircraft = 7
	SeverityTeleport      = 9
	SeverityClockSkew     = 6
	SeverityFingerprint   = 6
	SeverityLowAccuracy   = 2

	// MaxAccuracyM: samples with worse reported accuracy are low-confidence.
	MaxAccuracyM = 100.0

	// ClockSkewTolerance: samples older than the last stored one by more
	// than this are treated as replay or clock skew.
	ClockSkewTolerance = 5 * time.Second

	// RejectSeverity: violations at or above this reject the update.
	RejectSeverity = 9
	// RespondSeverity: violations at or above this trigger an automated
	// response (session flag, optional per-player pause) but are accepted.
	RespondSeverity = 7

	fingerprintWindow    = 24 * time.Hour
	fingerprintMaxChange = 3
	sampleRingSize       = 32
)

// Violation types.
const (
	TypeTeleport    = "TELEPORT"
	TypeSpeed       = "SPEED"
	TypeClockSkew   = "CLOCK_SKEW"
	TypeFingerprint = "FINGERPRINT_CHURN"
	TypeLowAccuracy = "LOW_ACCURACY"
)

// Sample is one incoming location report.
type Sample struct {
	Coord       model.Coordinate
	AccuracyM   float64
	Timestamp   time.Time
	Fingerprint string
	Metadata    map[string]string
}

// Violation is one detected implausibility.
type Violation struct {
	Type     string `json:"type"`
	Severity int    `json:"severity"`
	Detail   string `json:"detail"`
}

// Result is the outcome of validating one sample.
type Result struct {
	Valid         bool        `json:"valid"`
	LowConfidence bool        `json:"lowConfidence"`
	Violations    []Violation `json:"violations"`
}

// MaxSeverity returns the highest violation severity, 0 when clean.
func (r Result) MaxSeverity() int {
	max := 0
	for _, v := range r.Violations {
		if v.Severity > max {
			max = v.Severity
		}
	}
	return max
}

// playerState is the bounded per-player history. Append-only ring; no
// locking beyond the validator map mutex is needed.
type playerState struct {
	samples [sampleRingSize]Sample
	count   int
	next    int

	fingerprint        string
	fingerprintChanges []time.Time
	lastSeverity       int
}

func (st *playerState) last() *Sample {
	if st.count == 0 {
		return nil
	}
	idx := (st.next - 1 + sampleRingSize) % sampleRingSize
	return &st.samples[idx]
}

func (st *playerState) push(s Sample) {
	st.samples[st.next] = s
	st.next = (st.next + 1) % sampleRingSize
	if st.count < sampleRingSize {
		st.count++
	}
}

// Validator scores location samples per player.
type Validator struct {
	mu      sync.Mutex
	players map[string]*playerState
}

// NewValidator returns an empty validator.
func NewValidator() *Validator {
	return &Validator{players: make(map[string]*playerState)}
}

// Validate scores one sample. Accepted samples (severity < RejectSeverity)
// are recorded as the new last-known state; rejected ones are not.
func (v *Validator) Validate(playerID string, s Sample) Result {
	v.mu.Lock()
	defer v.mu.Unlock()

	st, ok := v.players[playerID]
	if !ok {
		st = &playerState{}
		v.players[playerID] = st
	}

	var res Result

	if s.AccuracyM > MaxAccuracyM {
		res.LowConfidence = true
		res.Violations = append(res.Violations, Violation{
			Type:     TypeLowAccuracy,
			Severity: SeverityLowAccuracy,
			Detail:   fmt.Sprintf("accuracy %.0fm exceeds %.0fm", s.AccuracyM, MaxAccuracyM),
		})
	}

	if last := st.last(); last != nil {
		if d := last.Timestamp.Sub(s.Timestamp); d > ClockSkewTolerance {
			res.Violations = append(res.Violations, Violation{
				Type:     TypeClockSkew,
				Severity: SeverityClockSkew,
				Detail:   fmt.Sprintf("sample %.1fs older than last stored", d.Seconds()),
			})
		} else if dt := s.Timestamp.Sub(last.Timestamp); dt > 0 {
			meters := geo.HaversineMeters(last.Coord, s.Coord)
			kmh := meters / dt.Seconds() * 3.6
			switch {
			case kmh > SpeedTeleportKmh:
				res.Violations = append(res.Violations, Violation{
					Type:     TypeTeleport,
					Severity: SeverityTeleport,
					Detail:   fmt.Sprintf("%.0f km/h over %.0fm", kmh, meters),
				})
			case kmh > SpeedAircraftKmh:
				res.Violations = append(res.Violations, Violation{
					Type:     TypeSpeed,
					Severity: SeveritySpeedAircraft,
					Detail:   fmt.Sprintf("%.0f km/h over %.0fm", kmh, meters),
				})
			case kmh > SpeedFastKmh:
				res.Violations = append(res.Violations, Violation{
					Type:     TypeSpeed,
					Severity: SeveritySpeedFast,
					Detail:   fmt.Sprintf("%.0f km/h over %.0fm", kmh, meters),
				})
			}
		}
	}

	if s.Fingerprint != "" && s.Fingerprint != st.fingerprint {
		if st.fingerprint != "" {
			st.fingerprintChanges = append(st.fingerprintChanges, s.Timestamp)
			st.fingerprintChanges = pruneOld(st.fingerprintChanges, s.Timestamp.Add(-fingerprintWindow))
			if len(st.fingerprintChanges) > fingerprintMaxChange {
				res.Violations = append(res.Violations, Violation{
					Type:     TypeFingerprint,
					Severity: SeverityFingerprint,
					Detail:   fmt.Sprintf("%d fingerprint changes in 24h", len(st.fingerprintChanges)),
				})
			}
		}
		st.fingerprint = s.Fingerprint
	}

	res.Valid = res.MaxSeverity() < RejectSeverity
	st.lastSeverity = res.MaxSeverity()
	if res.Valid {
		st.push(s)
	}
	return res
}

// LastSeverity returns the severity of the player's most recent sample.
// The kill pipeline refuses proposals from killers at RespondSeverity or above.
func (v *Validator) LastSeverity(playerID string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if st, ok := v.players[playerID]; ok {
		return st.lastSeverity
	}
	return 0
}

// Forget drops all state for a player (game end, leave).
func (v *Validator) Forget(playerID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.players, playerID)
}

func pruneOld(ts []time.Time, cutoff time.Time) []time.Time {
	out := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}
