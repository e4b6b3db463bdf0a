package racesim

import (
	"math"
)

const (
	speedWaveAmplitude  = 35
	speedNoise          = 15
	baseTelemetrySpeed  = 250
	brakingZoneSine     = -0.6
	temperatureNoiseC   = 100
	tyreNoiseC          = 10
	pitThrottleMin      = 20
	pitThrottleSpread   = 10
	brakingTempFraction = 0.7
	tyreTempFraction    = 0.6
)

// PlayerTelemetry is the synthetic car data for the player's driver on a single tick. Every
// numeric value is rounded to one decimal place.
type PlayerTelemetry struct {
	Name           string  `json:"name"`
	Team           string  `json:"team"`
	SpeedKPH       float64 `json:"speedKph"`
	ThrottlePct    float64 `json:"throttlePct"`
	BrakePct       float64 `json:"brakePct"`
	BrakeTempC     float64 `json:"brakeTempC"`
	TireTempC      float64 `json:"tireTempC"`
	FuelRemainingL float64 `json:"fuelRemainingL"`
	CurrentLap     int     `json:"currentLap"`
	PitLap         int     `json:"pitLap"`
	InPit          bool    `json:"inPit"`
	TrackMeters    int     `json:"trackMeters"`
}

// PlayerTelemetry builds telemetry for the player's car from its current lap progress. The lap
// progress drives a sinusoidal speed trace and places braking zones where the faster wave dips.
func (e *Engine) PlayerTelemetry(raceClock float64) PlayerTelemetry {
	driver := e.player
	model := e.config.Player.TelemetryModel

	expectedLapTime := driver.Profile.BasePace*driver.Profile.Consistency + (e.rng.Float64()-0.5)*2*driver.Profile.PaceJitter
	progress := 0.0

	if expectedLapTime > 0 {
		progress = (raceClock - driver.LapStartTime) / expectedLapTime
	}

	var speed, throttle, brake float64

	braking := math.Sin(progress*8*math.Pi) < brakingZoneSine

	switch {
	case driver.InPit:
		speed = e.config.PitLaneSpeedKPH
		throttle = pitThrottleMin + e.rng.Float64()*pitThrottleSpread
		brake = 0
		braking = false
	case braking:
		speed = baseTelemetrySpeed + math.Sin(progress*4*math.Pi)*speedWaveAmplitude + e.rng.Float64()*speedNoise
		throttle = model.ThrottlePct.Min
		brake = model.BrakePct.Min + model.BrakePct.Range()*(0.6+e.rng.Float64()*0.4)
	default:
		speed = baseTelemetrySpeed + math.Sin(progress*4*math.Pi)*speedWaveAmplitude + e.rng.Float64()*speedNoise
		throttle = model.ThrottlePct.Min + model.ThrottlePct.Range()*(0.6+e.rng.Float64()*0.4)
		brake = model.BrakePct.Min
	}

	brakeTemp := model.BrakeTempC.Min + e.rng.Float64()*temperatureNoiseC
	if braking {
		brakeTemp += model.BrakeTempC.Range() * brakingTempFraction
	}

	tyreTemp := model.TireTempC.Min + model.TireTempC.Range()*tyreTempFraction + e.rng.Float64()*tyreNoiseC

	lapsCompleted := driver.CurrentLap - 1
	if lapsCompleted > e.config.Laps {
		lapsCompleted = e.config.Laps
	}

	fuel := math.Max(0, model.InitialFuelL-float64(lapsCompleted)*model.FuelConsumptionRateLPerLap)

	return PlayerTelemetry{
		Name:           driver.Profile.Name,
		Team:           e.config.Player.Team,
		SpeedKPH:       round(speed, 1),
		ThrottlePct:    round(throttle, 1),
		BrakePct:       round(brake, 1),
		BrakeTempC:     round(brakeTemp, 1),
		TireTempC:      round(tyreTemp, 1),
		FuelRemainingL: round(fuel, 1),
		CurrentLap:     driver.CurrentLap,
		PitLap:         driver.Profile.PitLap,
		InPit:          driver.InPit,
		TrackMeters:    driver.TrackMeters(e.config.LapLengthMeters),
	}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))

	return math.Round(v*scale) / scale
}
