package racesim

import (
	"testing"
)

type leaderboardTest struct {
	name          string
	grid          []leaderboardTestDriver
	expectedOrder []string
}

type leaderboardTestDriver struct {
	name     string
	lap      int
	distance float64
	inPit    bool
}

func TestBuildLeaderboard(t *testing.T) {
	leaderboardTests := []leaderboardTest{
		{
			name: "Ordered by laps then distance",
			grid: []leaderboardTestDriver{
				{name: "P3", lap: 2, distance: 100},
				{name: "P1", lap: 3, distance: 50},
				{name: "P2", lap: 2, distance: 3400},
				{name: "P4", lap: 1, distance: 3499},
			},
			expectedOrder: []string{"P1", "P2", "P3", "P4"},
		},
		{
			name: "Equal track position keeps configured order",
			grid: []leaderboardTestDriver{
				{name: "A", lap: 1, distance: 500.2},
				{name: "B", lap: 1, distance: 499.9},
				{name: "C", lap: 1, distance: 800},
			},
			expectedOrder: []string{"C", "A", "B"},
		},
		{
			name: "Everyone on the grid",
			grid: []leaderboardTestDriver{
				{name: "A"},
				{name: "B"},
				{name: "C"},
			},
			expectedOrder: []string{"A", "B", "C"},
		},
		{
			name: "Driver in the pit lane keeps their track position",
			grid: []leaderboardTestDriver{
				{name: "A", lap: 4, distance: 10, inPit: true},
				{name: "B", lap: 3, distance: 3000},
			},
			expectedOrder: []string{"A", "B"},
		},
	}

	config := DefaultRaceConfig()

	for _, test := range leaderboardTests {
		t.Run(test.name, func(t *testing.T) {
			var drivers []*Driver

			for _, d := range test.grid {
				driver := NewDriver(DriverProfile{Name: d.name})

				if d.lap > 0 {
					driver.CurrentLap = d.lap
				}

				driver.DistanceIntoLap = d.distance
				driver.InPit = d.inPit

				drivers = append(drivers, driver)
			}

			leaderboard := BuildLeaderboard(drivers, config)

			if len(leaderboard) != len(test.expectedOrder) {
				t.Fatalf("expected %d entries, got %d", len(test.expectedOrder), len(leaderboard))
			}

			for pos, entry := range leaderboard {
				if entry.Name != test.expectedOrder[pos] {
					t.Logf("expected %s at position %d, got %s", test.expectedOrder[pos], pos+1, entry.Name)
					t.Fail()
				}

				if entry.Position != pos+1 {
					t.Errorf("expected position %d, got %d", pos+1, entry.Position)
				}
			}

			if leaderboard[0].Gap != 0 || leaderboard[0].Interval != 0 || leaderboard[0].MetersBehindLeader != 0 {
				t.Errorf("expected the leader to have no gap or interval, got %+v", leaderboard[0])
			}

			for i := 1; i < len(leaderboard); i++ {
				if leaderboard[i].TrackMeters > leaderboard[i-1].TrackMeters {
					t.Errorf("entry %d is ahead of the entry before it", i)
				}

				if leaderboard[i].Gap < leaderboard[i-1].Gap {
					t.Errorf("gap to leader decreased from %v to %v", leaderboard[i-1].Gap, leaderboard[i].Gap)
				}

				if leaderboard[i].Interval < 0 {
					t.Errorf("negative interval %v", leaderboard[i].Interval)
				}
			}
		})
	}
}

func TestLeaderboardGaps(t *testing.T) {
	config := DefaultRaceConfig()

	leader := NewDriver(DriverProfile{Name: "Leader"})
	leader.CurrentLap = 2
	leader.DistanceIntoLap = 777.8

	second := NewDriver(DriverProfile{Name: "Second"})
	second.CurrentLap = 2

	third := NewDriver(DriverProfile{Name: "Third"})
	third.CurrentLap = 1
	third.DistanceIntoLap = 3500 - 155.6

	leaderboard := BuildLeaderboard([]*Driver{third, second, leader}, config)

	tests := []struct {
		name       string
		trackM     int
		behind     float64
		gap        float64
		interval   float64
		expectedAt int
	}{
		{name: "Leader", trackM: 4278, behind: 0, gap: 0, interval: 0, expectedAt: 0},
		// 778m at 280kph (77.78m/s)
		{name: "Second", trackM: 3500, behind: 778, gap: 10.003, interval: 10.003, expectedAt: 1},
		{name: "Third", trackM: 3344, behind: 934, gap: 12.009, interval: 2.006, expectedAt: 2},
	}

	for _, test := range tests {
		entry := leaderboard[test.expectedAt]

		if entry.Name != test.name {
			t.Errorf("expected %s at index %d, got %s", test.name, test.expectedAt, entry.Name)
			continue
		}

		if entry.TrackMeters != test.trackM {
			t.Errorf("%s: expected %dm, got %d", test.name, test.trackM, entry.TrackMeters)
		}

		if entry.MetersBehindLeader != test.behind {
			t.Errorf("%s: expected %vm behind, got %v", test.name, test.behind, entry.MetersBehindLeader)
		}

		if entry.Gap != test.gap {
			t.Errorf("%s: expected gap %v, got %v", test.name, test.gap, entry.Gap)
		}

		if entry.Interval != test.interval {
			t.Errorf("%s: expected interval %v, got %v", test.name, test.interval, entry.Interval)
		}
	}
}

func TestOrderTracker(t *testing.T) {
	entries := func(names ...string) []LeaderboardEntry {
		var out []LeaderboardEntry

		for i, name := range names {
			out = append(out, LeaderboardEntry{Position: i + 1, Name: name})
		}

		return out
	}

	tracker := NewOrderTracker()

	if overtakes := tracker.Observe(entries("A", "B", "C", "D")); len(overtakes) != 0 {
		t.Errorf("expected no overtakes on the first observation, got %v", overtakes)
	}

	if overtakes := tracker.Observe(entries("A", "B", "C", "D")); len(overtakes) != 0 {
		t.Errorf("expected no overtakes without a change, got %v", overtakes)
	}

	overtakes := tracker.Observe(entries("A", "C", "B", "D"))

	if len(overtakes) != 1 {
		t.Fatalf("expected one overtake, got %v", overtakes)
	}

	if overtakes[0] != (Overtake{Driver: "C", Passed: "B", Position: 2, From: 3}) {
		t.Errorf("unexpected overtake %+v", overtakes[0])
	}

	overtakes = tracker.Observe(entries("D", "A", "C", "B"))

	if len(overtakes) != 1 || overtakes[0].Driver != "D" || overtakes[0].From != 4 || overtakes[0].Position != 1 {
		t.Errorf("expected D to jump from 4th to 1st, got %+v", overtakes)
	}

	tracker.Reset()

	if overtakes := tracker.Observe(entries("B", "A")); len(overtakes) != 0 {
		t.Errorf("expected no overtakes after a reset, got %v", overtakes)
	}
}

func TestLeaderboardClassifiesFinishers(t *testing.T) {
	config := DefaultRaceConfig()

	finished := func(name string, at, overshoot float64) *Driver {
		driver := NewDriver(DriverProfile{Name: name})
		driver.CurrentLap = config.Laps + 1
		driver.finish(at, overshoot)

		return driver
	}

	racing := NewDriver(DriverProfile{Name: "D"})
	racing.CurrentLap = config.Laps
	racing.DistanceIntoLap = 3000

	leaderboard := BuildLeaderboard([]*Driver{
		finished("A", 100, 0),
		finished("B", 98.5, 15.556),
		finished("C", 98.5, 0),
		racing,
	}, config)

	tests := []struct {
		name     string
		status   DriverStatus
		gap      float64
		interval float64
	}{
		{name: "B", status: DriverFinished, gap: 0, interval: 0},
		// same tick as B, 15.556m further back
		{name: "C", status: DriverFinished, gap: 0.2, interval: 0.2},
		{name: "A", status: DriverFinished, gap: 1.7, interval: 1.5},
		// 500m short of the line
		{name: "D", status: DriverRacing, gap: 6.429, interval: 6.429},
	}

	for i, test := range tests {
		entry := leaderboard[i]

		if entry.Name != test.name {
			t.Errorf("expected %s in P%d, got %s", test.name, i+1, entry.Name)
			continue
		}

		if entry.Status != test.status || entry.Finished != (test.status == DriverFinished) {
			t.Errorf("%s: expected status %s, got %s (finished: %t)", test.name, test.status, entry.Status, entry.Finished)
		}

		if entry.Gap != test.gap {
			t.Errorf("%s: expected gap %v, got %v", test.name, test.gap, entry.Gap)
		}

		if entry.Interval != test.interval {
			t.Errorf("%s: expected interval %v, got %v", test.name, test.interval, entry.Interval)
		}
	}
}

func TestLeaderboardFinishOrderFromEngine(t *testing.T) {
	e := newTestEngine(t, func(c *RaceConfig) {
		c.Laps = 1
		c.LapLengthMeters = 300
		c.ReferencePace = 80
		c.Drivers = []DriverProfile{
			{Name: "Slow", Team: "Backmarkers", BasePace: 95, PaceJitter: 0.2, Consistency: 0.98, PitLap: 5},
			{Name: "Fast", Team: "Frontrunners", BasePace: 80, PaceJitter: 0.2, Consistency: 0.99, PitLap: 5},
		}
		c.Player = PlayerConfig{Name: "Slow", TelemetryModel: c.Player.TelemetryModel}
	})

	tracker := NewOrderTracker()

	var overtakes []Overtake

	for tick := 0; !e.Finished(); tick++ {
		if tick > 1e5 {
			t.Fatal("race did not finish")
		}

		e.Step(float64(tick+1) * e.config.TickSeconds())
		overtakes = append(overtakes, tracker.Observe(BuildLeaderboard(e.Drivers(), e.config))...)
	}

	for i := 0; i < 50; i++ {
		overtakes = append(overtakes, tracker.Observe(BuildLeaderboard(e.Drivers(), e.config))...)
	}

	if len(overtakes) != 0 {
		t.Errorf("expected the faster driver to lead from the first tick to the flag, got %+v", overtakes)
	}

	final := BuildLeaderboard(e.Drivers(), e.config)

	if final[0].Name != "Fast" || final[1].Name != "Slow" {
		t.Fatalf("expected Fast to be classified ahead of Slow, got %s then %s", final[0].Name, final[1].Name)
	}

	if final[1].Gap <= 0 || final[1].Gap != final[1].Interval {
		t.Errorf("expected a positive gap between finishers, got gap %v interval %v", final[1].Gap, final[1].Interval)
	}

	if final[0].TotalTime >= final[1].TotalTime {
		t.Errorf("expected the winner to have the lower total time, got %v and %v", final[0].TotalTime, final[1].TotalTime)
	}
}
