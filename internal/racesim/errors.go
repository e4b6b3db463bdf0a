package racesim

import "github.com/pkg/errors"

var (
	// ErrInvalidConfig is returned when a RaceConfig cannot be used to build a session.
	ErrInvalidConfig = errors.New("invalid race configuration")

	// ErrNoSnapshot is returned when the race has not produced a tick yet.
	ErrNoSnapshot = errors.New("no telemetry yet")

	ErrSessionNotFound    = errors.New("session not found")
	ErrObserverClosed     = errors.New("observer closed")
	ErrAdvisorUnavailable = errors.New("advisor unavailable")
)

func invalidConfig(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidConfig, format, args...)
}
