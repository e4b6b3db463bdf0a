package racesim

import (
	"math/rand"

	"justapengu.in/pitwall/pkg/track"
)

const (
	speedVariationBase   = 0.98
	speedVariationSpread = 0.04
	traitVariationBase   = 0.995
	traitJitterScale     = 0.01
)

// Engine advances every driver by one fixed tick. It is not safe for concurrent use.
type Engine struct {
	config  RaceConfig
	drivers []*Driver
	player  *Driver
	rng     *rand.Rand
}

// NewEngine expects a validated config with defaults applied.
func NewEngine(config RaceConfig, rng *rand.Rand) *Engine {
	e := &Engine{
		config: config,
		rng:    rng,
	}

	for _, profile := range config.Drivers {
		driver := NewDriver(profile)

		if profile.Name == config.Player.Name {
			e.player = driver
		}

		e.drivers = append(e.drivers, driver)
	}

	return e
}

func (e *Engine) Drivers() []*Driver {
	return e.drivers
}

func (e *Engine) Player() *Driver {
	return e.player
}

func (e *Engine) Reset() {
	for _, driver := range e.drivers {
		driver.Reset()
	}
}

// Finished reports whether every driver has completed the race distance.
func (e *Engine) Finished() bool {
	for _, driver := range e.drivers {
		if !driver.Finished(e.config.Laps) {
			return false
		}
	}

	return true
}

// Step moves every unfinished driver forward by one tick and returns the laps completed during it.
// raceClock is the wall-clock race time in seconds and is what lap times are measured against.
func (e *Engine) Step(raceClock float64) []Lap {
	var laps []Lap

	for _, driver := range e.drivers {
		if driver.Finished(e.config.Laps) {
			continue
		}

		driver.DistanceIntoLap += track.KPHToMPS(e.speedKPH(driver)) * e.config.TickSeconds()

		if driver.DistanceIntoLap >= e.config.LapLengthMeters {
			overshoot := driver.DistanceIntoLap - e.config.LapLengthMeters

			laps = append(laps, driver.completeLap(raceClock, e.config.PitPenaltySeconds))

			if driver.Finished(e.config.Laps) {
				driver.finish(raceClock, overshoot)
			}
		}
	}

	return laps
}

func (e *Engine) speedKPH(driver *Driver) float64 {
	if driver.InPit {
		return e.config.PitLaneSpeedKPH
	}

	paceMultiplier := e.config.ReferencePace / driver.Profile.BasePace
	variation := speedVariationBase + e.rng.Float64()*speedVariationSpread
	trait := traitVariationBase + (e.rng.Float64()-0.5)*driver.Profile.PaceJitter*traitJitterScale

	return e.config.NominalSpeedKPH * paceMultiplier * variation * trait
}
