package racesim

import (
	"math"
	"sort"

	"justapengu.in/pitwall/pkg/track"
)

type LeaderboardEntry struct {
	Position           int          `json:"position"`
	Name               string       `json:"name"`
	Team               string       `json:"team"`
	Lap                int          `json:"lap"`
	TotalTime          float64      `json:"totalTime"`
	LastLapTime        float64      `json:"lastLapTime"`
	Gap                float64      `json:"gap"`
	Interval           float64      `json:"interval"`
	TrackMeters        int          `json:"trackMeters"`
	MetersBehindLeader float64      `json:"metersBehindLeader"`
	Status             DriverStatus `json:"status"`
	InPit              bool         `json:"inPit"`
	Finished           bool         `json:"finished"`
}

// Leaderboard is ordered from the leader backwards.
type Leaderboard []LeaderboardEntry

// Position returns the entry for the named driver.
func (l Leaderboard) Position(name string) (LeaderboardEntry, bool) {
	for _, entry := range l {
		if entry.Name == name {
			return entry, true
		}
	}

	return LeaderboardEntry{}, false
}

type placedDriver struct {
	driver *Driver
	meters int
	status DriverStatus
}

func (p placedDriver) finished() bool {
	return p.status == DriverFinished
}

// BuildLeaderboard orders drivers by track position, furthest first. Drivers who have finished
// are classified ahead of everyone still racing, in the order they crossed the line. Equal track
// positions keep the order in which drivers were configured. Gaps are converted from meters into
// seconds using the nominal racing speed, except between two finishers, where the difference in
// crossing time is used.
func BuildLeaderboard(drivers []*Driver, config RaceConfig) Leaderboard {
	ordered := make([]placedDriver, len(drivers))

	for i, driver := range drivers {
		ordered[i] = placedDriver{
			driver: driver,
			meters: driver.TrackMeters(config.LapLengthMeters),
			status: driver.Status(config.Laps),
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]

		switch {
		case a.finished() != b.finished():
			return a.finished()
		case a.finished() && a.driver.FinishedAt != b.driver.FinishedAt:
			return a.driver.FinishedAt < b.driver.FinishedAt
		case a.finished():
			return a.driver.FinishOvershoot > b.driver.FinishOvershoot
		default:
			return a.meters > b.meters
		}
	})

	referenceSpeed := track.KPHToMPS(config.NominalSpeedKPH)

	gap := func(ahead, behind placedDriver) float64 {
		var seconds float64

		if ahead.finished() && behind.finished() {
			crossedAhead := ahead.driver.FinishedAt - ahead.driver.FinishOvershoot/referenceSpeed
			crossedBehind := behind.driver.FinishedAt - behind.driver.FinishOvershoot/referenceSpeed

			seconds = crossedBehind - crossedAhead
		} else {
			seconds = float64(ahead.meters-behind.meters) / referenceSpeed
		}

		return math.Max(0, seconds)
	}

	entries := make(Leaderboard, 0, len(ordered))

	for i, p := range ordered {
		var metersBehindLeader, gapToLeader, interval float64

		if i > 0 {
			metersBehindLeader = math.Max(0, float64(ordered[0].meters-p.meters))
			gapToLeader = gap(ordered[0], p)
			interval = gap(ordered[i-1], p)
		}

		entries = append(entries, LeaderboardEntry{
			Position:           i + 1,
			Name:               p.driver.Profile.Name,
			Team:               p.driver.Profile.Team,
			Lap:                p.driver.CurrentLap,
			TotalTime:          round(p.driver.TotalTime, 3),
			LastLapTime:        round(p.driver.LastLapTime, 3),
			Gap:                round(gapToLeader, 3),
			Interval:           round(interval, 3),
			TrackMeters:        p.meters,
			MetersBehindLeader: round(metersBehindLeader, 1),
			Status:             p.status,
			InPit:              p.status == DriverInPit,
			Finished:           p.finished(),
		})
	}

	return entries
}

type Overtake struct {
	Driver string
	Passed string

	// Position is the position the overtaking driver now holds; From is where they were.
	Position int
	From     int
}

// OrderTracker compares successive leaderboards to detect position changes.
type OrderTracker struct {
	previous []string
}

func NewOrderTracker() *OrderTracker {
	return &OrderTracker{}
}

// Observe records the order of entries and returns the drivers that moved up relative to the
// previously observed order. The first observation never reports an overtake.
func (o *OrderTracker) Observe(entries []LeaderboardEntry) []Overtake {
	current := make([]string, len(entries))

	for i, entry := range entries {
		current[i] = entry.Name
	}

	previousPositions := make(map[string]int, len(o.previous))

	for i, name := range o.previous {
		previousPositions[name] = i
	}

	var overtakes []Overtake

	for i := 0; i < len(current) && i < len(o.previous); i++ {
		if current[i] == o.previous[i] {
			continue
		}

		from, ok := previousPositions[current[i]]

		if !ok || from <= i {
			continue
		}

		overtakes = append(overtakes, Overtake{
			Driver:   current[i],
			Passed:   o.previous[i],
			Position: i + 1,
			From:     from + 1,
		})
	}

	o.previous = current

	return overtakes
}

func (o *OrderTracker) Reset() {
	o.previous = nil
}
