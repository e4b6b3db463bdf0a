package racesim

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"
	"github.com/mitchellh/go-wordwrap"
	"github.com/pkg/errors"
)

const defaultCommentaryTimeout = 10 * time.Second

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

type SessionOptions struct {
	Logger            Logger
	Metrics           *Metrics
	Commentator       Commentator
	CommentaryTimeout time.Duration

	// Seed for the session's random source. Zero seeds from the current time.
	Seed  int64
	Clock Clock
}

type SessionState int

const (
	SessionIdle SessionState = iota
	SessionRunning
	SessionFinished
)

func (s SessionState) String() string {
	switch s {
	case SessionRunning:
		return "running"
	case SessionFinished:
		return "finished"
	default:
		return "idle"
	}
}

// Session owns one race simulation, its tick loop and the observers watching it.
type Session struct {
	id     string
	config RaceConfig

	logger            Logger
	metrics           *Metrics
	commentator       Commentator
	commentaryTimeout time.Duration
	clock             Clock

	// lifecycleMu serialises Start, Stop, Reset and Close.
	lifecycleMu sync.Mutex

	// mu guards the simulation and the tick loop bookkeeping below.
	mu        sync.Mutex
	engine    *Engine
	order     *OrderTracker
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	raceStart time.Time
	elapsed   time.Duration
	ticked    bool

	observersMu sync.Mutex
	observers   []Observer
	closed      atomic.Bool

	latest atomic.Pointer[RaceSnapshot]

	commentaryMu  sync.RWMutex
	commentary    string
	commentaryGen int
}

func NewSession(id string, config RaceConfig, opts SessionOptions) (*Session, error) {
	config = config.withDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}

	if opts.Commentator == nil {
		opts.Commentator = nilCommentator{}
	}

	if opts.CommentaryTimeout <= 0 {
		opts.CommentaryTimeout = defaultCommentaryTimeout
	}

	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}

	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}

	return &Session{
		id:                id,
		config:            config,
		logger:            opts.Logger.WithField("session", id),
		metrics:           opts.Metrics,
		commentator:       opts.Commentator,
		commentaryTimeout: opts.CommentaryTimeout,
		clock:             opts.Clock,
		engine:            NewEngine(config, rand.New(rand.NewSource(opts.Seed))),
		order:             NewOrderTracker(),
	}, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Config() RaceConfig {
	return s.config
}

func (s *Session) Descriptor() SessionDescriptor {
	return NewSessionDescriptor(s.id, s.config)
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.running:
		return SessionRunning
	case s.engine.Finished():
		return SessionFinished
	default:
		return SessionIdle
	}
}

// Start arms the tick loop. Starting a running session does nothing. A stopped race resumes from
// the race time at which it was stopped.
func (s *Session) Start() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || s.closed.Load() {
		return
	}

	if s.engine.Finished() {
		s.logger.Infof("Race %s has finished. Reset the session to race again", s.config.RaceID)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.raceStart = s.clock.Now().Add(-s.elapsed)

	if !s.ticked {
		s.logger.Infof("Lights out for %s: %d laps of %.0fm at %dHz", s.config.RaceID, s.config.Laps, s.config.LapLengthMeters, s.config.TickHz)

		go s.requestCommentary(s.commentaryGeneration(), startingGrid(s.config))
	} else {
		s.logger.Infof("Resuming race at %s", durafmt.Parse(s.elapsed.Truncate(time.Second)).String())
	}

	go s.loop(ctx, s.done)
}

// Stop disarms the tick loop. Once Stop returns no further tick will be produced.
func (s *Session) Stop() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.halt(true) {
		s.logger.Infof("Race stopped at %s", durafmt.Parse(s.elapsedRaceTime().Truncate(time.Second)).String())
		s.logLeaderboard("Leaderboard when the race was stopped:")
	}
}

// Reset stops the race, puts every driver back on the grid and sends the session descriptor to
// every attached observer.
func (s *Session) Reset() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.halt(true)

	s.mu.Lock()
	s.engine.Reset()
	s.order.Reset()
	s.elapsed = 0
	s.ticked = false
	s.latest.Store(nil)
	s.mu.Unlock()

	s.commentaryMu.Lock()
	s.commentary = ""
	s.commentaryGen++
	s.commentaryMu.Unlock()

	s.logger.Infof("Race %s reset", s.config.RaceID)

	descriptor := s.Descriptor()

	s.broadcast(false, func(o Observer) error {
		return o.OnSession(descriptor)
	})
}

// Close stops the race and closes every attached observer. A closed session cannot be started
// or watched again.
func (s *Session) Close() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.closed.Store(true)
	s.halt(true)

	s.observersMu.Lock()
	observers := s.observers
	s.observers = nil
	s.observersMu.Unlock()

	s.metrics.Observers.Sub(float64(len(observers)))

	return closeObservers(observers)
}

// Attach sends the session descriptor to o and starts delivering ticks to it.
func (s *Session) Attach(o Observer) error {
	if s.closed.Load() {
		return errors.Wrapf(ErrSessionNotFound, "session %s is closed", s.id)
	}

	if err := o.OnSession(s.Descriptor()); err != nil {
		return errors.Wrap(err, "racesim: could not send session descriptor")
	}

	s.observersMu.Lock()

	if s.closed.Load() {
		s.observersMu.Unlock()
		return errors.Wrapf(ErrSessionNotFound, "session %s is closed", s.id)
	}

	s.observers = append(s.observers, o)
	count := len(s.observers)
	s.observersMu.Unlock()

	s.metrics.Observers.Inc()
	s.logger.Debugf("Observer attached, %d watching", count)

	return nil
}

// Detach stops delivering ticks to o. When the last observer detaches the race is stopped.
func (s *Session) Detach(o Observer) {
	if s.detach(o) {
		s.Stop()
	}
}

// detach removes o and reports whether that left the session without observers.
func (s *Session) detach(o Observer) bool {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()

	for i, observer := range s.observers {
		if observer != o {
			continue
		}

		s.observers = append(s.observers[:i], s.observers[i+1:]...)
		s.metrics.Observers.Dec()
		s.logger.Debugf("Observer detached, %d watching", len(s.observers))

		if len(s.observers) == 0 {
			s.logger.Infof("No observers left watching the race")
			return true
		}

		return false
	}

	return false
}

func (s *Session) Observers() int {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()

	return len(s.observers)
}

// Latest returns the snapshot produced by the most recent tick.
func (s *Session) Latest() (*RaceSnapshot, error) {
	snapshot := s.latest.Load()

	if snapshot == nil {
		return nil, ErrNoSnapshot
	}

	return snapshot, nil
}

// Commentary returns the race start commentary, or an empty string if there is none yet.
func (s *Session) Commentary() string {
	s.commentaryMu.RLock()
	defer s.commentaryMu.RUnlock()

	return s.commentary
}

func (s *Session) commentaryGeneration() int {
	s.commentaryMu.RLock()
	defer s.commentaryMu.RUnlock()

	return s.commentaryGen
}

// setCommentary stores text unless the session was reset after the commentary was requested.
func (s *Session) setCommentary(generation int, text string) bool {
	s.commentaryMu.Lock()
	defer s.commentaryMu.Unlock()

	if generation != s.commentaryGen {
		return false
	}

	s.commentary = text

	return true
}

func (s *Session) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.TickPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debugf("Stopping tick loop")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Session) tick(ctx context.Context) {
	snapshot, finished := s.advance(ctx)

	if snapshot == nil {
		return
	}

	s.broadcast(true, func(o Observer) error {
		return o.OnTick(snapshot)
	})

	if finished {
		s.finish()
	}
}

// advance steps the simulation once and publishes the resulting snapshot. It returns nil if ctx
// was cancelled before the step could run.
func (s *Session) advance(ctx context.Context) (*RaceSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil {
		return nil, false
	}

	started := time.Now()
	raceClock := s.clock.Now().Sub(s.raceStart).Seconds()

	laps := s.engine.Step(raceClock)
	leaderboard := BuildLeaderboard(s.engine.Drivers(), s.config)
	overtakes := s.order.Observe(leaderboard)

	snapshot := &RaceSnapshot{
		Type:            MessageTypeTick,
		RaceTime:        round(raceClock, 2),
		Leaderboard:     leaderboard,
		PlayerTelemetry: s.engine.PlayerTelemetry(raceClock),
	}

	s.latest.Store(snapshot)
	s.ticked = true

	for _, lap := range laps {
		s.metrics.LapsCompleted.Inc()

		switch {
		case lap.PitEntry:
			s.metrics.PitStops.Inc()
			s.logger.Infof("%s completed lap %d in %.3fs and entered the pit lane (+%.1fs)", lap.DriverName, lap.LapNumber, lap.LapTime, s.config.PitPenaltySeconds)
		case lap.PitExit:
			s.logger.Infof("%s completed lap %d in %.3fs and rejoined the track", lap.DriverName, lap.LapNumber, lap.LapTime)
		default:
			s.logger.Debugf("%s completed lap %d in %.3fs", lap.DriverName, lap.LapNumber, lap.LapTime)
		}
	}

	for _, overtake := range overtakes {
		s.metrics.Overtakes.Inc()
		s.logger.Infof("%s passed %s for %s (was %s)", overtake.Driver, overtake.Passed, humanize.Ordinal(overtake.Position), humanize.Ordinal(overtake.From))
	}

	s.metrics.Ticks.Inc()
	s.metrics.TickDuration.Observe(time.Since(started).Seconds())

	return snapshot, s.engine.Finished()
}

// broadcast delivers to every attached observer. Observers that fail are closed and detached.
// fromLoop is set when called by the tick loop, which must not wait for itself to stop.
func (s *Session) broadcast(fromLoop bool, send func(Observer) error) {
	s.observersMu.Lock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.observersMu.Unlock()

	if len(observers) == 0 {
		return
	}

	errs := deliver(observers, send)

	for i, err := range errs {
		if err == nil {
			continue
		}

		s.logger.WithError(err).Warn("Could not deliver to observer, detaching it")
		s.metrics.Detached.Inc()

		if err := observers[i].Close(); err != nil {
			s.logger.WithError(err).Debug("Could not close observer")
		}

		if s.detach(observers[i]) {
			if fromLoop {
				s.halt(false)
			} else {
				s.halt(true)
			}
		}
	}
}

func (s *Session) finish() {
	if !s.halt(false) {
		return
	}

	s.metrics.RacesFinished.Inc()
	s.logger.Infof("All drivers have completed %d laps. Race %s is finished", s.config.Laps, s.config.RaceID)
	s.logLeaderboard("Final classification:")
}

// halt cancels the tick loop and, if wait is set, blocks until the loop has exited. It reports
// whether the loop was running.
func (s *Session) halt(wait bool) bool {
	s.mu.Lock()

	if !s.running {
		s.mu.Unlock()
		return false
	}

	s.cancel()
	s.running = false
	s.elapsed = s.clock.Now().Sub(s.raceStart)
	done := s.done

	s.mu.Unlock()

	if wait {
		<-done
	}

	return true
}

func (s *Session) elapsedRaceTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.elapsed
}

func (s *Session) logLeaderboard(title string) {
	snapshot := s.latest.Load()

	if snapshot == nil {
		return
	}

	s.logger.Infof("%s\n%s", title, RenderLeaderboard(snapshot.Leaderboard))
}

func (s *Session) requestCommentary(generation int, grid []GridEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), s.commentaryTimeout)
	defer cancel()

	text, err := s.commentator.RaceStartCommentary(ctx, grid)

	switch {
	case errors.Is(err, ErrAdvisorUnavailable):
		s.metrics.Commentary.WithLabelValues("unavailable").Inc()
		text = PlaceholderCommentary
	case err != nil:
		s.logger.WithError(err).Warn("Could not generate race start commentary")
		s.metrics.Commentary.WithLabelValues("failed").Inc()
		text = PlaceholderCommentary
	default:
		s.metrics.Commentary.WithLabelValues("generated").Inc()
	}

	if !s.setCommentary(generation, text) {
		s.logger.Debugf("Session was reset, discarding race start commentary")
		return
	}

	s.logger.Infof("Race start commentary:\n%s", wordwrap.WrapString(text, 80))
}
