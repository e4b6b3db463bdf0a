package racesim

import (
	"time"
)

const (
	DefaultRaceID = "SIM-TX25"

	defaultLaps              = 5
	defaultLapLengthMeters   = 3500 // ~45 second laps at 280 kph
	defaultTickHz            = 20
	maxTickHz                = 1000
	defaultPitPenaltySeconds = 22.0
	defaultPitLaneSpeedKPH   = 80
	defaultNominalSpeedKPH   = 280
)

type Band struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

func (b Band) Range() float64 {
	return b.Max - b.Min
}

type Weather struct {
	Condition   string  `json:"condition" yaml:"condition"`
	AirTempC    float64 `json:"airTempC" yaml:"air_temp_c"`
	TrackTempC  float64 `json:"trackTempC" yaml:"track_temp_c"`
	HumidityPct float64 `json:"humidityPct" yaml:"humidity_pct"`
	WindKPH     float64 `json:"windKph" yaml:"wind_kph"`
	WindDirDeg  float64 `json:"windDirDeg" yaml:"wind_dir_deg"`
	Rain        bool    `json:"rain" yaml:"rain"`
}

// DriverProfile is the fixed description of a competitor for the lifetime of a session.
type DriverProfile struct {
	Name          string  `json:"name" yaml:"name"`
	Team          string  `json:"team" yaml:"team"`
	StartPosition int     `json:"startPosition" yaml:"start_position"`
	BasePace      float64 `json:"basePace" yaml:"base_pace"`
	PaceJitter    float64 `json:"paceJitter" yaml:"pace_jitter"`
	Consistency   float64 `json:"consistency" yaml:"consistency"`
	PitLap        int     `json:"pitLap" yaml:"pit_lap"`
}

type TelemetryModel struct {
	InitialFuelL               float64 `json:"initialFuelL" yaml:"initial_fuel_l"`
	FuelConsumptionRateLPerLap float64 `json:"fuelConsumptionRateLPerLap" yaml:"fuel_consumption_rate_l_per_lap"`
	BrakeTempC                 Band    `json:"brakeTempC" yaml:"brake_temp_c"`
	TireTempC                  Band    `json:"tireTempC" yaml:"tire_temp_c"`
	ThrottlePct                Band    `json:"throttlePct" yaml:"throttle_pct"`
	BrakePct                   Band    `json:"brakePct" yaml:"brake_pct"`
}

// PlayerConfig names the driver whose car produces live telemetry.
type PlayerConfig struct {
	Name           string         `json:"name" yaml:"name"`
	Team           string         `json:"team" yaml:"team"`
	TelemetryModel TelemetryModel `json:"telemetryModel" yaml:"telemetry_model"`
}

// RaceConfig is immutable for the lifetime of a session.
type RaceConfig struct {
	RaceID            string  `json:"raceId" yaml:"race_id"`
	Laps              int     `json:"laps" yaml:"laps"`
	LapLengthMeters   float64 `json:"lapLengthMeters" yaml:"lap_length_meters"`
	TickHz            int     `json:"tickHz" yaml:"tick_hz"`
	PitPenaltySeconds float64 `json:"pitPenaltySeconds" yaml:"pit_penalty_seconds"`
	PitLaneSpeedKPH   float64 `json:"pitLaneSpeedKph" yaml:"pit_lane_speed_kph"`
	NominalSpeedKPH   float64 `json:"nominalSpeedKph" yaml:"nominal_speed_kph"`

	// ReferencePace is the lap time (seconds) that runs at exactly NominalSpeedKPH. Zero means
	// the fastest base pace on the grid.
	ReferencePace float64 `json:"referencePace" yaml:"reference_pace"`

	Weather Weather         `json:"weather" yaml:"weather"`
	Drivers []DriverProfile `json:"drivers" yaml:"drivers"`
	Player  PlayerConfig    `json:"player" yaml:"player"`
}

func DefaultRaceConfig() RaceConfig {
	return RaceConfig{
		RaceID:            DefaultRaceID,
		Laps:              defaultLaps,
		LapLengthMeters:   defaultLapLengthMeters,
		TickHz:            defaultTickHz,
		PitPenaltySeconds: defaultPitPenaltySeconds,
		PitLaneSpeedKPH:   defaultPitLaneSpeedKPH,
		NominalSpeedKPH:   defaultNominalSpeedKPH,
		ReferencePace:     84.90,
		Weather: Weather{
			Condition:   "Dry",
			AirTempC:    27.0,
			TrackTempC:  39.0,
			HumidityPct: 48,
			WindKPH:     9.5,
			WindDirDeg:  210,
		},
		Drivers: []DriverProfile{
			{Name: "Carlos Sainz", Team: "Williams Racing", StartPosition: 1, BasePace: 85.30, PaceJitter: 0.22, Consistency: 0.99, PitLap: 3},
			{Name: "Max Verstappen", Team: "Red Bull Racing", StartPosition: 2, BasePace: 84.90, PaceJitter: 0.25, Consistency: 0.99, PitLap: 3},
			{Name: "Lewis Hamilton", Team: "Ferrari", StartPosition: 3, BasePace: 85.10, PaceJitter: 0.27, Consistency: 0.98, PitLap: 3},
			{Name: "Lando Norris", Team: "McLaren", StartPosition: 4, BasePace: 85.40, PaceJitter: 0.28, Consistency: 0.98, PitLap: 3},
			{Name: "Charles Leclerc", Team: "Ferrari", StartPosition: 5, BasePace: 85.25, PaceJitter: 0.29, Consistency: 0.98, PitLap: 3},
			{Name: "George Russell", Team: "Mercedes", StartPosition: 6, BasePace: 85.50, PaceJitter: 0.30, Consistency: 0.98, PitLap: 3},
			{Name: "Fernando Alonso", Team: "Aston Martin", StartPosition: 7, BasePace: 85.70, PaceJitter: 0.32, Consistency: 0.98, PitLap: 3},
			{Name: "Oscar Piastri", Team: "McLaren", StartPosition: 8, BasePace: 85.85, PaceJitter: 0.31, Consistency: 0.98, PitLap: 3},
			{Name: "Yuki Tsunoda", Team: "Red Bull Racing", StartPosition: 9, BasePace: 85.60, PaceJitter: 0.33, Consistency: 0.97, PitLap: 3},
			{Name: "Pierre Gasly", Team: "Alpine", StartPosition: 10, BasePace: 86.00, PaceJitter: 0.35, Consistency: 0.97, PitLap: 3},
		},
		Player: PlayerConfig{
			Name: "Carlos Sainz",
			Team: "Williams Racing",
			TelemetryModel: TelemetryModel{
				InitialFuelL:               20,
				FuelConsumptionRateLPerLap: 2.35,
				BrakeTempC:                 Band{Min: 450, Max: 950},
				TireTempC:                  Band{Min: 85, Max: 110},
				ThrottlePct:                Band{Min: 0, Max: 100},
				BrakePct:                   Band{Min: 0, Max: 100},
			},
		},
	}
}

// TickPeriod is the wall-clock interval between two simulation steps.
func (c RaceConfig) TickPeriod() time.Duration {
	return time.Second / time.Duration(c.TickHz)
}

func (c RaceConfig) TickSeconds() float64 {
	return 1 / float64(c.TickHz)
}

func (c RaceConfig) FastestBasePace() float64 {
	var fastest float64

	for _, driver := range c.Drivers {
		if fastest == 0 || driver.BasePace < fastest {
			fastest = driver.BasePace
		}
	}

	return fastest
}

func (c RaceConfig) Driver(name string) (DriverProfile, bool) {
	for _, driver := range c.Drivers {
		if driver.Name == name {
			return driver, true
		}
	}

	return DriverProfile{}, false
}

func (c RaceConfig) withDefaults() RaceConfig {
	if c.RaceID == "" {
		c.RaceID = DefaultRaceID
	}

	if c.ReferencePace == 0 {
		c.ReferencePace = c.FastestBasePace()
	}

	if c.Player.Team == "" {
		if profile, ok := c.Driver(c.Player.Name); ok {
			c.Player.Team = profile.Team
		}
	}

	drivers := make([]DriverProfile, len(c.Drivers))
	copy(drivers, c.Drivers)

	for i := range drivers {
		if drivers[i].StartPosition == 0 {
			drivers[i].StartPosition = i + 1
		}
	}

	c.Drivers = drivers

	return c
}

// Validate rejects configurations that cannot run. It is called once at session creation; the
// tick loop never re-checks any of these.
func (c RaceConfig) Validate() error {
	switch {
	case c.Laps < 1:
		return invalidConfig("laps must be at least 1, got %d", c.Laps)
	case c.LapLengthMeters <= 0:
		return invalidConfig("lap length must be positive, got %v", c.LapLengthMeters)
	case c.TickHz <= 0:
		return invalidConfig("tick rate must be positive, got %d", c.TickHz)
	case c.TickHz > maxTickHz:
		return invalidConfig("tick rate cannot exceed %dHz, got %d", maxTickHz, c.TickHz)
	case c.PitPenaltySeconds < 0:
		return invalidConfig("pit penalty cannot be negative, got %v", c.PitPenaltySeconds)
	case c.PitLaneSpeedKPH <= 0:
		return invalidConfig("pit lane speed must be positive, got %v", c.PitLaneSpeedKPH)
	case c.NominalSpeedKPH <= 0:
		return invalidConfig("nominal speed must be positive, got %v", c.NominalSpeedKPH)
	case c.ReferencePace < 0:
		return invalidConfig("reference pace cannot be negative, got %v", c.ReferencePace)
	case len(c.Drivers) == 0:
		return invalidConfig("at least one driver is required")
	}

	seen := make(map[string]bool)

	for _, driver := range c.Drivers {
		switch {
		case driver.Name == "":
			return invalidConfig("driver name is required")
		case seen[driver.Name]:
			return invalidConfig("duplicate driver %q", driver.Name)
		case driver.BasePace <= 0:
			return invalidConfig("driver %q: base pace must be positive, got %v", driver.Name, driver.BasePace)
		case driver.PaceJitter < 0:
			return invalidConfig("driver %q: pace jitter cannot be negative, got %v", driver.Name, driver.PaceJitter)
		case driver.Consistency < 0 || driver.Consistency > 1:
			return invalidConfig("driver %q: consistency must be within [0, 1], got %v", driver.Name, driver.Consistency)
		case driver.PitLap < 0:
			return invalidConfig("driver %q: pit lap cannot be negative, got %d", driver.Name, driver.PitLap)
		}

		seen[driver.Name] = true
	}

	if !seen[c.Player.Name] {
		return invalidConfig("player %q is not on the grid", c.Player.Name)
	}

	model := c.Player.TelemetryModel

	for name, band := range map[string]Band{
		"brake temperature": model.BrakeTempC,
		"tyre temperature":  model.TireTempC,
		"throttle":          model.ThrottlePct,
		"brake":             model.BrakePct,
	} {
		if band.Min > band.Max {
			return invalidConfig("%s band has min %v above max %v", name, band.Min, band.Max)
		}
	}

	if model.FuelConsumptionRateLPerLap < 0 || model.InitialFuelL < 0 {
		return invalidConfig("fuel values cannot be negative")
	}

	return nil
}
