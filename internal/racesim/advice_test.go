package racesim

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestFallbackAnswer(t *testing.T) {
	tests := []struct {
		name      string
		question  string
		telemetry PlayerTelemetry
		expected  string
	}{
		{name: "fuel critical", question: "How's my fuel?", telemetry: PlayerTelemetry{FuelRemainingL: 8}, expected: "Battery critical, box this lap!"},
		{name: "fuel low", question: "fuel", telemetry: PlayerTelemetry{FuelRemainingL: 15}, expected: "Battery low, manage mode."},
		{name: "fuel good", question: "What about FUEL.", telemetry: PlayerTelemetry{FuelRemainingL: 25}, expected: "Battery is good."},
		{name: "fuel boundary", question: "battery?", telemetry: PlayerTelemetry{FuelRemainingL: 10}, expected: "Battery low, manage mode."},
		{name: "brakes critical", question: "brakes?", telemetry: PlayerTelemetry{BrakeTempC: 650}, expected: "Brakes critical! Manage cooling."},
		{name: "brakes hot", question: "how are the brakes", telemetry: PlayerTelemetry{BrakeTempC: 575}, expected: "Brakes running hot."},
		{name: "brakes boundary", question: "brake temps", telemetry: PlayerTelemetry{BrakeTempC: 550}, expected: "Brakes are good."},
		{name: "tyres critical", question: "Tyres!", telemetry: PlayerTelemetry{TireTempC: 125}, expected: "Tyres overheating! Manage pace."},
		{name: "tires warm", question: "tire temps?", telemetry: PlayerTelemetry{TireTempC: 115}, expected: "Tyres running warm."},
		{name: "tyres good", question: "tyres", telemetry: PlayerTelemetry{TireTempC: 100}, expected: "Tyres are in the window."},
		{name: "empty question", question: " ?! ", expected: AnswerSayAgain},
		{name: "unknown topic", question: "what's for dinner", expected: AnswerSayAgain},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := FallbackAnswer(test.question, test.telemetry); got != test.expected {
				t.Errorf("expected %q, got %q", test.expected, got)
			}
		})
	}
}

type advisorFunc func(ctx context.Context, question string, race AdvisoryContext) (string, error)

func (f advisorFunc) Ask(ctx context.Context, question string, race AdvisoryContext) (string, error) {
	return f(ctx, question, race)
}

func testSnapshot(fuel float64) *RaceSnapshot {
	return &RaceSnapshot{
		Type:     MessageTypeTick,
		RaceTime: 93.25,
		Leaderboard: []LeaderboardEntry{
			{Position: 1, Name: "Max Verstappen"},
			{Position: 2, Name: "Carlos Sainz", Gap: 1.234},
		},
		PlayerTelemetry: PlayerTelemetry{Name: "Carlos Sainz", FuelRemainingL: fuel},
	}
}

func TestEngineerFallsBackOnTimeout(t *testing.T) {
	logger, hook := test.NewNullLogger()
	metrics := NewMetrics(nil)

	slow := advisorFunc(func(ctx context.Context, question string, race AdvisoryContext) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	engineer := NewEngineer(slow, 20*time.Millisecond, logger, metrics)

	tests := []struct {
		fuel     float64
		expected string
	}{
		{fuel: 8, expected: "Battery critical, box this lap!"},
		{fuel: 15, expected: "Battery low, manage mode."},
		{fuel: 25, expected: "Battery is good."},
	}

	for _, test := range tests {
		answer := engineer.Answer(context.Background(), testSnapshot(test.fuel), 5, "How is the fuel?")

		if answer.Answer != test.expected {
			t.Errorf("fuel %v: expected %q, got %q", test.fuel, test.expected, answer.Answer)
		}

		if answer.Source != AnswerSourceFallback {
			t.Errorf("expected a fallback answer, got source %q", answer.Source)
		}

		if answer.RaceTime != 93.25 {
			t.Errorf("expected race time from the snapshot, got %v", answer.RaceTime)
		}
	}

	if len(hook.AllEntries()) != len(tests) {
		t.Errorf("expected each timeout to be logged, got %d entries", len(hook.AllEntries()))
	}

	if got := testutil.ToFloat64(metrics.AdvisorAnswers.WithLabelValues(AnswerSourceFallback)); got != 3 {
		t.Errorf("expected 3 fallback answers counted, got %v", got)
	}
}

func TestEngineerUsesAdvisor(t *testing.T) {
	logger, _ := test.NewNullLogger()

	var received AdvisoryContext

	advisor := advisorFunc(func(ctx context.Context, question string, race AdvisoryContext) (string, error) {
		received = race
		return "  Push now, gap is 1.2 seconds.  ", nil
	})

	engineer := NewEngineer(advisor, time.Second, logger, nil)
	answer := engineer.Answer(context.Background(), testSnapshot(18), 5, "gap to Max?")

	if answer.Answer != "Push now, gap is 1.2 seconds." || answer.Source != AnswerSourceAdvisor {
		t.Errorf("unexpected answer %+v", answer)
	}

	if received.Laps != 5 || received.RaceTime != 93.25 || len(received.Leaderboard) != 2 || received.Player.FuelRemainingL != 18 {
		t.Errorf("advisor was given an incomplete context: %+v", received)
	}
}

func TestEngineerWithoutSnapshot(t *testing.T) {
	logger, _ := test.NewNullLogger()

	called := false

	advisor := advisorFunc(func(ctx context.Context, question string, race AdvisoryContext) (string, error) {
		called = true
		return "", nil
	})

	answer := NewEngineer(advisor, time.Second, logger, nil).Answer(context.Background(), nil, 5, "fuel?")

	if answer.Answer != AnswerNoTelemetry || answer.Source != AnswerSourceNoSnapshot {
		t.Errorf("unexpected answer %+v", answer)
	}

	if called {
		t.Error("advisor should not be asked before the first tick")
	}
}

func TestEngineerWithoutAdvisor(t *testing.T) {
	logger, hook := test.NewNullLogger()

	answer := NewEngineer(nil, time.Second, logger, nil).Answer(context.Background(), testSnapshot(5), 5, "battery")

	if answer.Answer != "Battery critical, box this lap!" {
		t.Errorf("unexpected answer %q", answer.Answer)
	}

	if len(hook.AllEntries()) != 0 {
		t.Errorf("a missing advisor should not log a warning, got %v", hook.LastEntry())
	}
}

func TestEngineerAdvisorError(t *testing.T) {
	logger, _ := test.NewNullLogger()

	advisor := advisorFunc(func(ctx context.Context, question string, race AdvisoryContext) (string, error) {
		return "", errors.New("quota exceeded")
	})

	answer := NewEngineer(advisor, time.Second, logger, nil).Answer(context.Background(), testSnapshot(30), 5, "")

	if answer.Answer != AnswerSayAgain || answer.Source != AnswerSourceFallback {
		t.Errorf("unexpected answer %+v", answer)
	}
}
