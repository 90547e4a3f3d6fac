package shrink

import (
	"context"
	"time"

	"github.com/antozhu/manhunt/internal/game/assign"
	"github.com/antozhu/manhunt/internal/geo"
	"github.com/antozhu/manhunt/internal/model"
	"github.com/antozhu/manhunt/internal/store"
)

const (
	// DamageToleranceM is the grace band outside the zone edge before
	// damage starts, absorbing GPS jitter.
	DamageToleranceM = 10.0
	// LocationMaxAge guards against punishing players whose device went
	// quiet; stale samples are skipped.
	LocationMaxAge = 5 * time.Minute
)

// Damage is one player's loss from a single tick.
type Damage struct {
	PlayerID string
	Amount   float64
	Health   float64
	Died     bool
}

// DamageReport summarizes one damage tick for a game.
type DamageReport struct {
	Damaged  []Damage
	WinnerID string
}

// Damager applies out-of-zone damage each tick and removes the dead from
// the elimination cycle.
type Damager struct {
	store  store.Store
	assign *assign.Engine
}

// NewDamager returns a Damager using the given store and assignment engine.
func NewDamager(st store.Store, eng *assign.Engine) *Damager {
	return &Damager{store: st, assign: eng}
}

// Tick applies one round of zone damage for game at now. Players outside
// currentRadius plus tolerance lose damagePerTickPerMeterOutside per excess
// meter, capped at maxDamagePerTick. A death rewires the cycle; when one
// ACTIVE player remains the game completes with that player as winner.
// The whole tick commits in one conditional transaction on the game.
func (d *Damager) Tick(ctx context.Context, game *model.Game, state *model.GameZoneState, now time.Time) (DamageReport, error) {
	cfg := game.Settings.ShrinkingZone
	if cfg == nil || state == nil || game.Status != model.GameActive || game.Paused() {
		return DamageReport{}, nil
	}

	players, err := d.store.PlayersByGame(ctx, game.ID)
	if err != nil {
		return DamageReport{}, err
	}

	var report DamageReport
	err = d.store.Transact(ctx, game.ID, game.Version, func(tx store.Tx) error {
		report = DamageReport{}
		deaths := 0

		for i, p := range players {
			if p.Status != model.PlayerActive {
				continue
			}

			// An earlier death this tick may have rewired this player's
			// target; damage the staged row, not the pre-tick snapshot.
			cur, err := tx.GetPlayer(ctx, p.ID)
			if err != nil {
				return err
			}
			if cur != nil {
				p = cur
				players[i] = cur
			}

			if !p.HasRecentLocation(now, LocationMaxAge) {
				continue
			}
			dist := geo.HaversineMeters(state.CurrentCenter, *p.Location)
			if dist <= state.CurrentRadiusM+DamageToleranceM {
				continue
			}

			excess := dist - state.CurrentRadiusM
			amount := cfg.DamagePerTickPerMeter * excess
			if cfg.MaxDamagePerTick > 0 && amount > cfg.MaxDamagePerTick {
				amount = cfg.MaxDamagePerTick
			}
			p.Health -= amount
			dmg := Damage{PlayerID: p.ID, Amount: amount, Health: p.Health}

			if p.Health <= 0 {
				p.Health = 0
				p.Status = model.PlayerDead
				p.TargetID = ""
				p.TargetName = ""
				dmg.Died = true
				deaths++
				if err := tx.PutPlayer(ctx, p); err != nil {
					return err
				}
				res, err := d.assign.RemoveFromCycle(ctx, tx, game.ID, p, now)
				if err != nil {
					return err
				}
				if res.WinnerID != "" {
					report.WinnerID = res.WinnerID
				}
			} else {
				if err := tx.PutPlayer(ctx, p); err != nil {
					return err
				}
			}
			report.Damaged = append(report.Damaged, dmg)
		}

		if report.WinnerID == "" && deaths > 0 {
			var survivor *model.Player
			alive := 0
			for _, p := range players {
				if p.Status == model.PlayerActive {
					alive++
					survivor = p
				}
			}
			if alive == 1 {
				report.WinnerID = survivor.ID
			}
		}
		if report.WinnerID != "" {
			game.Status = model.GameCompleted
			game.WinnerID = report.WinnerID
			ended := now
			game.EndedAt = &ended
			return tx.PutGame(ctx, game)
		}
		return nil
	})
	if err != nil {
		return DamageReport{}, err
	}
	return report, nil
}
