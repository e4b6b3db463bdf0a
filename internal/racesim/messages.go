package racesim

const (
	MessageTypeSession = "session"
	MessageTypeTick    = "tick"
)

type RaceInfo struct {
	RaceID          string  `json:"raceId"`
	Laps            int     `json:"laps"`
	LapLengthMeters float64 `json:"lapLengthMeters"`
	TickHz          int     `json:"tickHz"`
}

// SessionDescriptor is sent to a viewer when it attaches and to every viewer after a reset.
type SessionDescriptor struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Race      RaceInfo        `json:"race"`
	Weather   Weather         `json:"weather"`
	Drivers   []DriverProfile `json:"drivers"`
	Player    PlayerConfig    `json:"player"`
}

func NewSessionDescriptor(sessionID string, config RaceConfig) SessionDescriptor {
	drivers := make([]DriverProfile, len(config.Drivers))
	copy(drivers, config.Drivers)

	return SessionDescriptor{
		Type:      MessageTypeSession,
		SessionID: sessionID,
		Race: RaceInfo{
			RaceID:          config.RaceID,
			Laps:            config.Laps,
			LapLengthMeters: config.LapLengthMeters,
			TickHz:          config.TickHz,
		},
		Weather: config.Weather,
		Drivers: drivers,
		Player:  config.Player,
	}
}

// RaceSnapshot is the complete state produced by one tick. It is also the tick message sent to
// viewers. A snapshot is never modified once it has been published.
type RaceSnapshot struct {
	Type            string          `json:"type"`
	RaceTime        float64         `json:"raceTime"`
	Leaderboard     Leaderboard     `json:"leaderboard"`
	PlayerTelemetry PlayerTelemetry `json:"playerTelemetry"`
}

// GridEntry is a driver's starting position, used for race start commentary.
type GridEntry struct {
	Position int
	Name     string
	Team     string
}

func startingGrid(config RaceConfig) []GridEntry {
	grid := make([]GridEntry, 0, len(config.Drivers))

	for _, driver := range config.Drivers {
		grid = append(grid, GridEntry{
			Position: driver.StartPosition,
			Name:     driver.Name,
			Team:     driver.Team,
		})
	}

	sortGrid(grid)

	return grid
}
