package gemini

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"

	"justapengu.in/pitwall/internal/racesim"
)

func yesNo(b bool) string {
	if b {
		return "YES"
	}

	return "NO"
}

// EngineerPrompt describes the race from the player's point of view for a race engineer persona.
func EngineerPrompt(race racesim.AdvisoryContext) string {
	player := race.Player
	elapsed := time.Duration(race.RaceTime) * time.Second

	var b strings.Builder

	fmt.Fprintf(&b, "You are a Formula 1 race engineer for %s, working with driver %s.\n", player.Team, player.Name)
	fmt.Fprintf(&b, "You are %s's dedicated engineer. You communicate over team radio with short, professional responses.\n\n", player.Name)

	fmt.Fprintf(&b, "CURRENT RACE SITUATION (%s elapsed):\n", durafmt.Parse(elapsed).String())

	standing, onLeaderboard := race.Leaderboard.Position(player.Name)

	if onLeaderboard {
		fmt.Fprintf(&b, "- Your Position: P%d (%s of %d)\n", standing.Position, humanize.Ordinal(standing.Position), len(race.Leaderboard))
	}

	if race.Laps > 0 {
		fmt.Fprintf(&b, "- Your Current Lap: %d of %d\n", player.CurrentLap, race.Laps)
	} else {
		fmt.Fprintf(&b, "- Your Current Lap: %d\n", player.CurrentLap)
	}

	fmt.Fprintf(&b, "- Your Planned Pit Lap: %d\n", player.PitLap)
	fmt.Fprintf(&b, "- In Pit: %s\n", yesNo(player.InPit))

	if onLeaderboard {
		fmt.Fprintf(&b, "- Your Gap to Leader: %.3fs\n", standing.Gap)
	}

	b.WriteString("\nFULL LEADERBOARD:\n")

	for _, entry := range race.Leaderboard {
		marker := ""

		if entry.Name == player.Name {
			marker = " <- YOU"
		}

		fmt.Fprintf(&b, "  P%d. %s | Lap %d | Gap: %.3fs | Int: %.3fs%s\n", entry.Position, entry.Name, entry.Lap, entry.Gap, entry.Interval, marker)
	}

	b.WriteString("\nLIVE TELEMETRY:\n")
	fmt.Fprintf(&b, "- Speed: %.1f kph\n", player.SpeedKPH)
	fmt.Fprintf(&b, "- Throttle: %.1f%%\n", player.ThrottlePct)
	fmt.Fprintf(&b, "- Brake: %.1f%%\n", player.BrakePct)
	fmt.Fprintf(&b, "- Brake Temperature: %.1f°C (optimal: 300-500°C, critical: >600°C)\n", player.BrakeTempC)
	fmt.Fprintf(&b, "- Tyre Temperature: %.1f°C (optimal: 90-110°C, critical: >120°C)\n", player.TireTempC)
	fmt.Fprintf(&b, "- Fuel Remaining: %.1f liters\n", player.FuelRemainingL)

	b.WriteString(`
RESPONSE GUIDELINES:
- Keep responses under 20 words
- Use F1 radio terminology (e.g., "Box box box", "Mode push", "Tyres are good")
- Be direct and informative
- Alert the driver of critical issues immediately
- If asked about battery/fuel: comment if low (<10L critical, <20L concerning)
- If asked about brakes: comment on temperature (>600°C critical, >550°C high)
- If asked about tyres: comment on temperature (>120°C critical, >110°C warm)
- If asked about other drivers: use the leaderboard above to give precise gaps and positions
- Stay in character as a professional F1 race engineer

Answer the driver's question based on the telemetry data above.`)

	return b.String()
}

// CommentaryPrompt asks for a short piece of commentary about the starting grid.
func CommentaryPrompt(grid []racesim.GridEntry) string {
	var b strings.Builder

	b.WriteString("You are an F1 race commentator. The race is about to start!\n\nSTARTING GRID:\n")

	for _, entry := range grid {
		fmt.Fprintf(&b, "P%d: %s (%s)\n", entry.Position, entry.Name, entry.Team)
	}

	b.WriteString("\nGenerate an exciting, brief race start commentary (2-3 sentences max) about the race conditions, the grid, and what to watch for. Be enthusiastic and professional like a real F1 commentator.")

	return b.String()
}
