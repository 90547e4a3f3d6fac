// Package shrink drives the optional shrinking zone: a wall-clock schedule
// of WAITING → SHRINKING → HOLDING stages ending in FINAL, plus the
// out-of-zone damage loop.
package shrink

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/antozhu/manhunt/internal/geo"
	"github.com/antozhu/manhunt/internal/model"
	"github.com/antozhu/manhunt/internal/store"
)

// Engine advances per-game zone state. All methods are idempotent with
// respect to now: recomputing from persisted state yields the same snapshot.
type Engine struct {
	store store.Store
}

// NewEngine returns an Engine backed by the given store.
func NewEngine(st store.Store) *Engine {
	return &Engine{store: st}
}

// Advance computes the zone state implied by now and persists it only when
// it changed. Creates the initial state on the first call for a game.
// Returns the current state, or nil when the game has no shrinking zone.
func (e *Engine) Advance(ctx context.Context, game *model.Game, now time.Time) (*model.GameZoneState, error) {
	cfg := game.Settings.ShrinkingZone
	if cfg == nil {
		return nil, nil
	}

	prev, err := e.store.GetZoneState(ctx, game.ID)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		prev = initialState(game.ID, cfg, now)
	}

	next := step(prev, cfg, game.ID, now)
	if !next.Equal(prev) || prevIsNew(prev, cfg, game.ID, now) {
		next.LastUpdated = now
		if err := e.store.PutZoneState(ctx, next); err != nil {
			return nil, err
		}
	}
	return next, nil
}

// prevIsNew reports whether the state was just created and never persisted.
func prevIsNew(prev *model.GameZoneState, cfg *model.ShrinkingZoneConfig, gameID string, now time.Time) bool {
	fresh := initialState(gameID, cfg, now)
	return prev.Equal(fresh) && prev.LastUpdated.Equal(now)
}

func initialState(gameID string, cfg *model.ShrinkingZoneConfig, now time.Time) *model.GameZoneState {
	next := cfg.Stages[0].TargetRadiusM
	return &model.GameZoneState{
		GameID:            gameID,
		CurrentStageIndex: 0,
		CurrentPhase:      model.PhaseWaiting,
		CurrentCenter:     cfg.InitialCenter,
		CurrentRadiusM:    cfg.InitialRadiusM,
		NextRadiusM:       &next,
		PhaseEndTime:      now.Add(time.Duration(cfg.Stages[0].WaitSec) * time.Second),
		LastUpdated:       now,
	}
}

// stageStartRadius is the radius at the start of a stage's shrink: the
// previous stage's target, or the configured initial radius for stage 0.
func stageStartRadius(cfg *model.ShrinkingZoneConfig, stageIndex int) float64 {
	if stageIndex == 0 {
		return cfg.InitialRadiusM
	}
	return cfg.Stages[stageIndex-1].TargetRadiusM
}

// step walks phase transitions until phaseEndTime passes now, then applies
// radius interpolation for an in-flight shrink. Tolerant to missed ticks:
// any number of elapsed phases are crossed in one call.
func step(prev *model.GameZoneState, cfg *model.ShrinkingZoneConfig, gameID string, now time.Time) *model.GameZoneState {
	s := *prev
	if s.NextRadiusM != nil {
		next := *prev.NextRadiusM
		s.NextRadiusM = &next
	}

	for s.CurrentPhase != model.PhaseFinal && !now.Before(s.PhaseEndTime) {
		stage := cfg.Stages[s.CurrentStageIndex]
		switch s.CurrentPhase {
		case model.PhaseWaiting:
			s.CurrentPhase = model.PhaseShrinking
			s.CurrentCenter = newCenter(s, cfg, gameID)
			s.PhaseEndTime = s.PhaseEndTime.Add(time.Duration(stage.ShrinkSec) * time.Second)
		case model.PhaseShrinking:
			s.CurrentRadiusM = stage.TargetRadiusM
			s.CurrentPhase = model.PhaseHolding
			s.PhaseEndTime = s.PhaseEndTime.Add(time.Duration(stage.HoldSec) * time.Second)
		case model.PhaseHolding:
			if s.CurrentStageIndex+1 >= len(cfg.Stages) {
				s.CurrentPhase = model.PhaseFinal
				s.NextRadiusM = nil
				return &s
			}
			s.CurrentStageIndex++
			next := cfg.Stages[s.CurrentStageIndex]
			nr := next.TargetRadiusM
			s.NextRadiusM = &nr
			s.CurrentPhase = model.PhaseWaiting
			s.PhaseEndTime = s.PhaseEndTime.Add(time.Duration(next.WaitSec) * time.Second)
		}
	}

	if s.CurrentPhase == model.PhaseShrinking {
		stage := cfg.Stages[s.CurrentStageIndex]
		from := stageStartRadius(cfg, s.CurrentStageIndex)
		total := float64(stage.ShrinkSec)
		remaining := s.PhaseEndTime.Sub(now).Seconds()
		elapsed := total - remaining
		if elapsed < 0 {
			elapsed = 0
		}
		s.CurrentRadiusM = from + (stage.TargetRadiusM-from)*elapsed/total
	}
	return &s
}

// newCenter applies the stage's center policy when shrinking begins.
// RANDOM_WITHIN_PREVIOUS draws from a gameID+stage seeded RNG so repeated
// advances pick the same center.
func newCenter(s model.GameZoneState, cfg *model.ShrinkingZoneConfig, gameID string) model.Coordinate {
	stage := cfg.Stages[s.CurrentStageIndex]
	switch stage.NewCenterPolicy {
	case model.CenterFixed:
		if stage.FixedCenter != nil {
			return *stage.FixedCenter
		}
		return s.CurrentCenter
	case model.CenterRandomWithinPrevious:
		h := fnv.New64a()
		h.Write([]byte(gameID))
		rng := rand.New(rand.NewSource(int64(h.Sum64()) ^ int64(s.CurrentStageIndex+1)))

		prevRadius := stageStartRadius(cfg, s.CurrentStageIndex)
		maxShift := prevRadius - stage.TargetRadiusM
		if maxShift <= 0 {
			return s.CurrentCenter
		}
		bearing := rng.Float64() * 360
		dist := rng.Float64() * maxShift
		return geo.Destination(s.CurrentCenter, bearing, dist)
	default: // KEEP
		return s.CurrentCenter
	}
}
