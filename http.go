package pitwall

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"justapengu.in/pitwall/internal/racesim"
)

type Logger = racesim.Logger

type contextKey string

const sessionContextKey contextKey = "session"

type HTTP struct {
	server *http.Server
	logger Logger

	config   *Config
	manager  *racesim.Manager
	engineer *racesim.Engineer
	gatherer prometheus.Gatherer
	debugger *Debugger
	upgrader websocket.Upgrader
}

func NewHTTP(config *Config, manager *racesim.Manager, engineer *racesim.Engineer, gatherer prometheus.Gatherer, logger Logger) *HTTP {
	h := &HTTP{
		config:   config,
		manager:  manager,
		engineer: engineer,
		gatherer: gatherer,
		logger:   logger,
		debugger: NewDebugger(config, manager),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			return origin == "" || h.originAllowed(origin)
		},
	}

	h.server = &http.Server{
		Handler: h.Router(),
		Addr:    config.Server.HTTPAddr,
	}

	return h
}

// ListenAndServe blocks until the server is shut down.
func (h *HTTP) ListenAndServe() error {
	h.logger.Infof("HTTP server listening on: %s", h.config.Server.HTTPAddr)

	err := h.server.ListenAndServe()

	if err == http.ErrServerClosed {
		return nil
	}

	return err
}

func (h *HTTP) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

func (h *HTTP) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(h.cors)

	router.Get("/health", h.Health)
	router.Mount("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	router.Mount("/debug", h.debugger)

	router.Get("/sessions", h.ListSessions)
	router.Post("/sessions", h.CreateSession)
	router.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Use(h.namedSession)
		r.Delete("/", h.DestroySession)
		h.sessionRoutes(r)
	})

	router.Group(func(r chi.Router) {
		r.Use(h.defaultSession)
		h.sessionRoutes(r)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.logger.Debugf("Could not find HTTP response for URL: %s", r.URL.String())

		http.NotFound(w, r)
	})

	return router
}

func (h *HTTP) sessionRoutes(r chi.Router) {
	r.Get("/ws", h.Watch)
	r.Get("/session", h.Descriptor)
	r.HandleFunc("/control/{command}", h.Control)
	r.Get("/latest", h.Latest)
	r.HandleFunc("/ask", h.Ask)
	r.Get("/commentary", h.Commentary)
	r.Get("/leaderboard.txt", h.LeaderboardText)
}

func (h *HTTP) originAllowed(origin string) bool {
	for _, allowed := range h.config.Server.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}

	return false
}

func (h *HTTP) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		switch {
		case len(h.config.Server.AllowedOrigins) == 1 && h.config.Server.AllowedOrigins[0] == "*":
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && h.originAllowed(origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *HTTP) namedSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := h.manager.Get(chi.URLParam(r, "sessionID"))

		if err != nil {
			h.writeError(w, http.StatusNotFound, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionContextKey, session)))
	})
}

func (h *HTTP) defaultSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := h.manager.Default()

		if err != nil {
			h.writeError(w, http.StatusNotFound, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionContextKey, session)))
	})
}

func sessionFromRequest(r *http.Request) *racesim.Session {
	return r.Context().Value(sessionContextKey).(*racesim.Session)
}

func (h *HTTP) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.WithError(err).Error("Could not encode JSON response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *HTTP) writeError(w http.ResponseWriter, status int, err error) {
	message := err.Error()

	switch {
	case errors.Is(err, racesim.ErrNoSnapshot):
		message = racesim.ErrNoSnapshot.Error()
	case errors.Is(err, racesim.ErrSessionNotFound):
		message = racesim.ErrSessionNotFound.Error()
	}

	h.writeJSON(w, status, errorResponse{Error: message})
}

func (h *HTTP) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": len(h.manager.List()),
	})
}

func (h *HTTP) ListSessions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.manager.List())
}

func (h *HTTP) CreateSession(w http.ResponseWriter, r *http.Request) {
	config := h.config.Race
	config.Drivers = append([]racesim.DriverProfile(nil), config.Drivers...)

	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
			h.writeError(w, http.StatusBadRequest, errors.Wrap(err, "could not parse race config"))
			return
		}
	}

	session, err := h.manager.Create(config)

	if errors.Is(err, racesim.ErrInvalidConfig) {
		h.writeError(w, http.StatusBadRequest, err)
		return
	} else if err != nil {
		h.logger.WithError(err).Error("Could not create session")
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, session.Descriptor())
}

func (h *HTTP) DestroySession(w http.ResponseWriter, r *http.Request) {
	session := sessionFromRequest(r)

	if err := h.manager.Destroy(session.ID()); err != nil {
		if errors.Is(err, racesim.ErrSessionNotFound) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}

		h.logger.WithError(err).Warn("Session did not close cleanly")
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTP) Descriptor(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, sessionFromRequest(r).Descriptor())
}

// Watch upgrades the request to a websocket and streams the session to it until it disconnects.
func (h *HTTP) Watch(w http.ResponseWriter, r *http.Request) {
	session := sessionFromRequest(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)

	if err != nil {
		h.logger.WithError(err).Debug("Could not upgrade viewer connection")
		return
	}

	viewer := NewViewer(conn, h.config.Server.ViewerBuffer, h.logger.WithField("session", session.ID()))

	go viewer.writePump()

	if err := session.Attach(viewer); err != nil {
		h.logger.WithError(err).Warn("Could not attach viewer")
		_ = viewer.Close()
		return
	}

	viewer.readPump()

	session.Detach(viewer)
	_ = viewer.Close()
}

func (h *HTTP) Control(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	session := sessionFromRequest(r)

	var ack string

	switch chi.URLParam(r, "command") {
	case "start":
		session.Start()
		ack = "Race started"
	case "stop":
		session.Stop()
		ack = "Race stopped"
	case "reset":
		session.Reset()
		ack = "Race reset"
	default:
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(ack))
}

func (h *HTTP) Latest(w http.ResponseWriter, r *http.Request) {
	snapshot, err := sessionFromRequest(r).Latest()

	if err != nil {
		h.writeError(w, http.StatusNotFound, err)
		return
	}

	h.writeJSON(w, http.StatusOK, snapshot)
}

type askRequest struct {
	Question string `json:"question"`
}

func (h *HTTP) Ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	question := r.URL.Query().Get("q")

	if r.Method == http.MethodPost && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req askRequest

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, errors.Wrap(err, "could not parse question"))
			return
		}

		question = req.Question
	} else if question == "" {
		question = r.FormValue("q")
	}

	session := sessionFromRequest(r)
	snapshot, _ := session.Latest()

	answer := h.engineer.Answer(r.Context(), snapshot, session.Config().Laps, question)

	h.logger.WithField("session", session.ID()).Infof("Q: %q A: %q (%s)", question, answer.Answer, answer.Source)

	h.writeJSON(w, http.StatusOK, answer)
}

func (h *HTTP) Commentary(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"commentary": sessionFromRequest(r).Commentary(),
	})
}

func (h *HTTP) LeaderboardText(w http.ResponseWriter, r *http.Request) {
	snapshot, err := sessionFromRequest(r).Latest()

	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(racesim.RenderLeaderboard(snapshot.Leaderboard) + "\n"))
}
