package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"justapengu.in/pitwall/internal/racesim"
)

func testRace() racesim.AdvisoryContext {
	return racesim.AdvisoryContext{
		RaceTime: 135.4,
		Laps:     5,
		Player: racesim.PlayerTelemetry{
			Name:           "Carlos Sainz",
			Team:           "Williams Racing",
			SpeedKPH:       287.4,
			BrakeTempC:     612.3,
			TireTempC:      101.2,
			FuelRemainingL: 15.3,
			CurrentLap:     3,
			PitLap:         3,
		},
		Leaderboard: []racesim.LeaderboardEntry{
			{Position: 1, Name: "Max Verstappen", Lap: 3},
			{Position: 2, Name: "Carlos Sainz", Lap: 3, Gap: 1.234, Interval: 1.234},
		},
	}
}

func TestClientAsk(t *testing.T) {
	var (
		gotPath   string
		gotKey    string
		gotPrompt string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")

		var req generateRequest

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
		}

		if len(req.Contents) == 1 && len(req.Contents[0].Parts) == 1 {
			gotPrompt = req.Contents[0].Parts[0].Text
		}

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  Gap to Max is 1.2, push now.\n"}]}}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "secret", BaseURL: server.URL + "/"})

	answer, err := client.Ask(context.Background(), "gap to Max?", testRace())

	if err != nil {
		t.Fatal(err)
	}

	if answer != "Gap to Max is 1.2, push now." {
		t.Errorf("unexpected answer %q", answer)
	}

	if gotPath != "/models/gemini-2.5-flash:generateContent" {
		t.Errorf("unexpected path %s", gotPath)
	}

	if gotKey != "secret" {
		t.Errorf("expected the api key header to be set, got %q", gotKey)
	}

	for _, expected := range []string{"Williams Racing", "P2. Carlos Sainz | Lap 3 | Gap: 1.234s | Int: 1.234s <- YOU", "Your Position: P2 (2nd of 2)", "Your Gap to Leader: 1.234s", "Lap: 3 of 5", "Fuel Remaining: 15.3", `Driver question: "gap to Max?"`} {
		if !strings.Contains(gotPrompt, expected) {
			t.Errorf("expected prompt to contain %q", expected)
		}
	}
}

func TestClientCommentaryUsesCommentaryModel(t *testing.T) {
	var gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Sainz on pole!"}]}}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "secret", BaseURL: server.URL, CommentaryModel: "gemini-commentary"})

	text, err := client.RaceStartCommentary(context.Background(), []racesim.GridEntry{{Position: 1, Name: "Carlos Sainz", Team: "Williams Racing"}})

	if err != nil {
		t.Fatal(err)
	}

	if text != "Sainz on pole!" || gotPath != "/models/gemini-commentary:generateContent" {
		t.Errorf("unexpected commentary %q from %s", text, gotPath)
	}
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected error
	}{
		{name: "quota", status: http.StatusTooManyRequests, body: `{"error":"RESOURCE_EXHAUSTED"}`, expected: ErrQuotaExceeded},
		{name: "model", status: http.StatusNotFound, body: `{"error":"NOT_FOUND"}`, expected: ErrModelNotFound},
		{name: "bad request", status: http.StatusBadRequest, body: `{}`, expected: ErrBadRequest},
		{name: "no candidates", status: http.StatusOK, body: `{"candidates":[]}`, expected: ErrEmptyResponse},
		{name: "blank text", status: http.StatusOK, body: `{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`, expected: ErrEmptyResponse},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(test.status)
				_, _ = w.Write([]byte(test.body))
			}))
			defer server.Close()

			_, err := NewClient(Config{APIKey: "secret", BaseURL: server.URL}).Ask(context.Background(), "fuel?", testRace())

			if !errors.Is(err, test.expected) {
				t.Errorf("expected %v, got %v", test.expected, err)
			}
		})
	}
}

func TestClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := NewClient(Config{APIKey: "secret", BaseURL: server.URL}).Ask(ctx, "fuel?", testRace()); err == nil {
		t.Error("expected the request to time out")
	}
}

func TestClientDisabled(t *testing.T) {
	for _, key := range []string{"", "  ", PlaceholderAPIKey} {
		if Enabled(key) {
			t.Errorf("expected %q not to enable the client", key)
		}

		_, err := NewClient(Config{APIKey: key}).Ask(context.Background(), "fuel?", testRace())

		if !errors.Is(err, racesim.ErrAdvisorUnavailable) {
			t.Errorf("expected ErrAdvisorUnavailable for key %q, got %v", key, err)
		}
	}
}

func TestCommentaryPrompt(t *testing.T) {
	prompt := CommentaryPrompt([]racesim.GridEntry{
		{Position: 1, Name: "Carlos Sainz", Team: "Williams Racing"},
		{Position: 2, Name: "Max Verstappen", Team: "Red Bull Racing"},
	})

	for _, expected := range []string{"P1: Carlos Sainz (Williams Racing)", "P2: Max Verstappen (Red Bull Racing)"} {
		if !strings.Contains(prompt, expected) {
			t.Errorf("expected prompt to contain %q", expected)
		}
	}
}
