package racesim

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	AnswerNoTelemetry = "No telemetry yet."
	AnswerSayAgain    = "Say again?"

	fuelCritical  = 10
	fuelLow       = 20
	brakeCritical = 600
	brakeHot      = 550
	tyreCritical  = 120
	tyreWarm      = 110
)

const (
	AnswerSourceAdvisor    = "advisor"
	AnswerSourceFallback   = "fallback"
	AnswerSourceNoSnapshot = "no_snapshot"
)

var errEmptyQuestion = errors.New("empty question")

// AdvisoryContext is everything an advisor is given to answer a question about the race.
type AdvisoryContext struct {
	RaceTime    float64
	Laps        int
	Player      PlayerTelemetry
	Leaderboard Leaderboard
}

func NewAdvisoryContext(snapshot *RaceSnapshot, laps int) AdvisoryContext {
	leaderboard := make(Leaderboard, len(snapshot.Leaderboard))
	copy(leaderboard, snapshot.Leaderboard)

	return AdvisoryContext{
		RaceTime:    snapshot.RaceTime,
		Laps:        laps,
		Player:      snapshot.PlayerTelemetry,
		Leaderboard: leaderboard,
	}
}

// Advisor answers free-text questions from the driver. Calls may be slow or fail; the Engineer
// falls back to FallbackAnswer when they do.
type Advisor interface {
	Ask(ctx context.Context, question string, race AdvisoryContext) (string, error)
}

type Answer struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	RaceTime float64 `json:"raceTime"`
	Source   string  `json:"source"`
}

// NormaliseQuestion lower-cases a question and strips punctuation that speech transcription tends
// to add.
func NormaliseQuestion(question string) string {
	question = strings.ToLower(question)
	question = strings.NewReplacer(".", "", ",", "", "!", "", "?", "", ";", "").Replace(question)

	return strings.TrimSpace(question)
}

// FallbackAnswer answers fuel, brake and tyre questions from telemetry thresholds alone.
func FallbackAnswer(question string, telemetry PlayerTelemetry) string {
	question = NormaliseQuestion(question)

	switch {
	case question == "":
		return AnswerSayAgain
	case strings.Contains(question, "fuel") || strings.Contains(question, "battery"):
		switch {
		case telemetry.FuelRemainingL < fuelCritical:
			return "Battery critical, box this lap!"
		case telemetry.FuelRemainingL < fuelLow:
			return "Battery low, manage mode."
		default:
			return "Battery is good."
		}
	case strings.Contains(question, "brake"):
		switch {
		case telemetry.BrakeTempC > brakeCritical:
			return "Brakes critical! Manage cooling."
		case telemetry.BrakeTempC > brakeHot:
			return "Brakes running hot."
		default:
			return "Brakes are good."
		}
	case strings.Contains(question, "tyre") || strings.Contains(question, "tire"):
		switch {
		case telemetry.TireTempC > tyreCritical:
			return "Tyres overheating! Manage pace."
		case telemetry.TireTempC > tyreWarm:
			return "Tyres running warm."
		default:
			return "Tyres are in the window."
		}
	default:
		return AnswerSayAgain
	}
}

// Engineer answers the driver's questions using an Advisor, bounded by a timeout.
type Engineer struct {
	advisor Advisor
	timeout time.Duration
	logger  Logger
	metrics *Metrics
}

func NewEngineer(advisor Advisor, timeout time.Duration, logger Logger, metrics *Metrics) *Engineer {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	if logger == nil {
		logger = discardLogger()
	}

	return &Engineer{
		advisor: advisor,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

// Answer never fails. A nil snapshot means the race has not ticked yet.
func (e *Engineer) Answer(ctx context.Context, snapshot *RaceSnapshot, laps int, question string) Answer {
	if snapshot == nil {
		e.metrics.AdvisorAnswers.WithLabelValues(AnswerSourceNoSnapshot).Inc()

		return Answer{
			Question: question,
			Answer:   AnswerNoTelemetry,
			Source:   AnswerSourceNoSnapshot,
		}
	}

	answer := Answer{
		Question: question,
		RaceTime: snapshot.RaceTime,
	}

	text, err := e.ask(ctx, snapshot, laps, question)

	if err != nil {
		if !errors.Is(err, ErrAdvisorUnavailable) && !errors.Is(err, errEmptyQuestion) {
			e.logger.WithError(err).Warnf("Advisor could not answer %q, using fallback", question)
		}

		answer.Answer = FallbackAnswer(question, snapshot.PlayerTelemetry)
		answer.Source = AnswerSourceFallback
	} else {
		answer.Answer = text
		answer.Source = AnswerSourceAdvisor
	}

	e.metrics.AdvisorAnswers.WithLabelValues(answer.Source).Inc()

	return answer
}

func (e *Engineer) ask(ctx context.Context, snapshot *RaceSnapshot, laps int, question string) (string, error) {
	if e.advisor == nil {
		return "", ErrAdvisorUnavailable
	}

	if NormaliseQuestion(question) == "" {
		return "", errEmptyQuestion
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	text, err := e.advisor.Ask(ctx, question, NewAdvisoryContext(snapshot, laps))

	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)

	if text == "" {
		return "", errors.New("advisor returned an empty answer")
	}

	return text, nil
}
