package racesim

import (
	"golang.org/x/sync/errgroup"
)

// Observer receives the session descriptor and every tick of a session. Implementations must not
// block: a slow observer should fail the call so it can be detached.
type Observer interface {
	OnSession(descriptor SessionDescriptor) error
	OnTick(snapshot *RaceSnapshot) error

	Close() error
}

// closeObservers closes every observer concurrently and returns the first error.
func closeObservers(observers []Observer) error {
	var g errgroup.Group

	for _, observer := range observers {
		observer := observer

		g.Go(observer.Close)
	}

	return g.Wait()
}

// deliver sends to every observer concurrently and reports which of them failed. Failures are
// independent: one observer's error never stops delivery to the others.
func deliver(observers []Observer, send func(Observer) error) []error {
	errs := make([]error, len(observers))

	var g errgroup.Group

	for i, observer := range observers {
		i, observer := i, observer

		g.Go(func() error {
			errs[i] = send(observer)
			return errs[i]
		})
	}

	_ = g.Wait()

	return errs
}
