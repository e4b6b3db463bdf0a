package racesim

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderLeaderboard formats a leaderboard as a plain text table.
func RenderLeaderboard(entries []LeaderboardEntry) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Pos", "Driver", "Team", "Lap", "Total", "Last Lap", "Gap", "Interval", ""})

	for _, entry := range entries {
		var status string

		switch entry.Status {
		case DriverFinished:
			status = "FIN"
		case DriverInPit:
			status = "PIT"
		}

		gap, interval := "-", "-"

		if entry.Position > 1 {
			gap = fmt.Sprintf("+%.3f", entry.Gap)
			interval = fmt.Sprintf("+%.3f", entry.Interval)
		}

		t.AppendRow(table.Row{
			humanize.Ordinal(entry.Position),
			entry.Name,
			entry.Team,
			entry.Lap,
			fmt.Sprintf("%.3f", entry.TotalTime),
			fmt.Sprintf("%.3f", entry.LastLapTime),
			gap,
			interval,
			status,
		})
	}

	return t.Render()
}
