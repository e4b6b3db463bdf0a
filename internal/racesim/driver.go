package racesim

import (
	"github.com/pkg/errors"

	"justapengu.in/pitwall/pkg/track"
)

// Lap is emitted by the engine whenever a driver crosses the line.
type Lap struct {
	DriverName string
	LapNumber  int
	LapTime    float64
	TotalTime  float64

	// CompletedAt is the race clock value at which the lap finished.
	CompletedAt float64

	PitEntry bool
	PitExit  bool
}

type DriverStatus int

const (
	DriverRacing DriverStatus = iota
	DriverInPit
	DriverFinished
)

func (s DriverStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *DriverStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "racing":
		*s = DriverRacing
	case "in pit":
		*s = DriverInPit
	case "finished":
		*s = DriverFinished
	default:
		return errors.Errorf("racesim: unknown driver status %q", text)
	}

	return nil
}

func (s DriverStatus) String() string {
	switch s {
	case DriverInPit:
		return "in pit"
	case DriverFinished:
		return "finished"
	default:
		return "racing"
	}
}

// Driver is the mutable race state of one competitor. It is owned by an Engine and must only be
// mutated while the owning session holds its lock.
type Driver struct {
	Profile DriverProfile

	CurrentLap      int
	DistanceIntoLap float64
	TotalTime       float64
	LapStartTime    float64
	LastLapTime     float64
	LapTimes        []float64

	InPit            bool
	PitLapsRemaining int
	HasPitted        bool

	// FinishedAt is the race clock at which the driver crossed the line for the last time.
	// FinishOvershoot orders drivers who crossed it during the same tick.
	FinishedAt      float64
	FinishOvershoot float64
}

func NewDriver(profile DriverProfile) *Driver {
	d := &Driver{Profile: profile}
	d.Reset()

	return d
}

func (d *Driver) Reset() {
	d.CurrentLap = 1
	d.DistanceIntoLap = 0
	d.TotalTime = 0
	d.LapStartTime = 0
	d.LastLapTime = 0
	d.LapTimes = nil
	d.InPit = false
	d.PitLapsRemaining = 0
	d.HasPitted = false
	d.FinishedAt = 0
	d.FinishOvershoot = 0
}

func (d *Driver) Finished(laps int) bool {
	return d.CurrentLap > laps
}

func (d *Driver) Status(laps int) DriverStatus {
	switch {
	case d.Finished(laps):
		return DriverFinished
	case d.InPit:
		return DriverInPit
	default:
		return DriverRacing
	}
}

// TrackMeters is the cumulative distance covered since the start of the race.
func (d *Driver) TrackMeters(lapLength float64) int {
	return track.Meters(d.CurrentLap, d.DistanceIntoLap, lapLength)
}

// completeLap closes the current lap at raceClock and advances the pit state machine. A driver in
// the pit lane leaves it once PitLapsRemaining runs out; a driver finishing their planned pit lap
// enters the pit lane and takes the time penalty exactly once per race.
func (d *Driver) completeLap(raceClock, pitPenalty float64) Lap {
	lapTime := raceClock - d.LapStartTime

	d.LapTimes = append(d.LapTimes, lapTime)
	d.LastLapTime = lapTime
	d.TotalTime += lapTime
	d.DistanceIntoLap = 0
	d.LapStartTime = raceClock

	lap := Lap{
		DriverName:  d.Profile.Name,
		LapNumber:   d.CurrentLap,
		LapTime:     lapTime,
		CompletedAt: raceClock,
	}

	if d.InPit {
		d.PitLapsRemaining--

		if d.PitLapsRemaining <= 0 {
			d.PitLapsRemaining = 0
			d.InPit = false
			lap.PitExit = true
		}
	} else if d.CurrentLap == d.Profile.PitLap && !d.HasPitted {
		d.InPit = true
		d.PitLapsRemaining = 1
		d.HasPitted = true
		d.TotalTime += pitPenalty
		lap.PitEntry = true
	}

	d.CurrentLap++
	lap.TotalTime = d.TotalTime

	return lap
}

// finish takes the chequered flag. A driver whose pit lap was the final lap never rejoins the
// track, so the pit state is cleared here.
func (d *Driver) finish(raceClock, overshoot float64) {
	d.FinishedAt = raceClock
	d.FinishOvershoot = overshoot
	d.InPit = false
	d.PitLapsRemaining = 0
}
