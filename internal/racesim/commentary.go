package racesim

import (
	"context"
	"sort"
)

const PlaceholderCommentary = "Lights out and away we go!"

// Commentator produces a short piece of race start commentary for a starting grid.
type Commentator interface {
	RaceStartCommentary(ctx context.Context, grid []GridEntry) (string, error)
}

type nilCommentator struct{}

func (nilCommentator) RaceStartCommentary(context.Context, []GridEntry) (string, error) {
	return "", ErrAdvisorUnavailable
}

func sortGrid(grid []GridEntry) {
	sort.SliceStable(grid, func(i, j int) bool {
		return grid[i].Position < grid[j].Position
	})
}
