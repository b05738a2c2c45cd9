package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/polly/internal/bus"
	"github.com/nidhogg/polly/internal/gateway"
	"github.com/nidhogg/polly/internal/moderation"
	"github.com/nidhogg/polly/internal/parrot"
	"github.com/nidhogg/polly/internal/radio"
	"github.com/nidhogg/polly/internal/store"
	"github.com/nidhogg/polly/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// OperatorHeader carries the operator id for moderation requests.
const OperatorHeader = "X-Operator"

// EventSink applies world events the same way the bus consumer does.
type EventSink interface {
	HandleEvent(ctx context.Context, ev *bus.Event) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine   *parrot.Engine
	events   EventSink
	clock    *world.WorldClock
	catalog  *radio.Catalog
	gw       *gateway.Gateway
	restGW   *gateway.RESTAdapter
	sessions *moderation.Sessions
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// Deps bundles the handler's collaborators. Gateway, REST adapter,
// moderation sessions and gatherer are optional.
type Deps struct {
	Engine   *parrot.Engine
	Events   EventSink
	Clock    *world.WorldClock
	Catalog  *radio.Catalog
	Gateway  *gateway.Gateway
	REST     *gateway.RESTAdapter
	Sessions *moderation.Sessions
	Gatherer prometheus.Gatherer
}

// NewHandler creates a new API handler.
func NewHandler(d Deps, logger *zap.Logger) *Handler {
	return &Handler{
		engine:   d.Engine,
		events:   d.Events,
		clock:    d.Clock,
		catalog:  d.Catalog,
		gw:       d.Gateway,
		restGW:   d.REST,
		sessions: d.Sessions,
		gatherer: d.Gatherer,
		logger:   logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", OperatorHeader},
		AllowCredentials: true,
	}))

	if h.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/channels", h.listChannels)

		r.Get("/parrots", h.listParrots)
		r.Get("/parrots/{id}", h.getParrot)
		r.Delete("/parrots/{id}", h.removeParrot)
		r.Post("/parrots/{id}/hear", h.hear)
		r.Post("/parrots/{id}/devices", h.equip)
		r.Delete("/parrots/{id}/devices/{device}", h.unequip)
		r.Post("/parrots/{id}/incapacitated", h.setIncapacitated)

		r.Get("/world/status", h.worldStatus)
		r.Post("/world/round", h.startRound)
		r.Post("/world/hear", h.overhear)
		r.Post("/world/pause", h.pause)
		r.Post("/world/resume", h.resume)

		r.Get("/moderation/phrases", h.listPhrases)
		r.Put("/moderation/filter", h.changeFilter)
		r.Post("/moderation/phrases/{id}/block", h.changeBlock)
		r.Post("/moderation/messages", h.moderationMessage)

		r.Get("/gateway/status", h.gatewayStatus)
		if h.restGW != nil {
			r.Mount("/gateway/rest", h.restGW.Routes())
		}
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "polly"})
}

func (h *Handler) listChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog.List())
}

func (h *Handler) listParrots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.List())
}

func (h *Handler) getParrot(w http.ResponseWriter, r *http.Request) {
	p, ok := h.engine.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, parrot.ErrParrotNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) removeParrot(w http.ResponseWriter, r *http.Request) {
	if !h.engine.Remove(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, parrot.ErrParrotNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type hearResponse struct {
	Verdict string `json:"verdict"`
	Learned bool   `json:"learned"`
}

func (h *Handler) hear(w http.ResponseWriter, r *http.Request) {
	var req parrot.Heard
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	reason, err := h.engine.OnPhraseHeard(chi.URLParam(r, "id"), req, h.clock.Now())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, hearResponse{Verdict: reason.String(), Learned: reason == parrot.Accepted})
}

func (h *Handler) overhear(w http.ResponseWriter, r *http.Request) {
	var req parrot.Heard
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	n := h.engine.Overhear(req, h.clock.Now())
	writeJSON(w, http.StatusOK, map[string]int{"learned_by": n})
}

func (h *Handler) equip(w http.ResponseWriter, r *http.Request) {
	var d radio.Device
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if d.ID == "" {
		writeError(w, http.StatusBadRequest, errors.New("device id is required"))
		return
	}
	for _, ch := range d.Channels.Sorted() {
		if _, ok := h.catalog.Get(ch); !ok {
			writeError(w, http.StatusBadRequest, errors.New("unknown channel "+strconv.Quote(ch)))
			return
		}
	}
	h.applyEvent(w, r, &bus.Event{Type: bus.EventEquipped, Agent: chi.URLParam(r, "id"), Device: &d})
}

func (h *Handler) unequip(w http.ResponseWriter, r *http.Request) {
	h.applyEvent(w, r, &bus.Event{
		Type:     bus.EventUnequipped,
		Agent:    chi.URLParam(r, "id"),
		DeviceID: chi.URLParam(r, "device"),
	})
}

type incapacitatedRequest struct {
	Incapacitated bool `json:"incapacitated"`
}

func (h *Handler) setIncapacitated(w http.ResponseWriter, r *http.Request) {
	var req incapacitatedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.applyEvent(w, r, &bus.Event{
		Type:          bus.EventIncapacitated,
		Agent:         chi.URLParam(r, "id"),
		Incapacitated: req.Incapacitated,
	})
}

type roundRequest struct {
	Round int `json:"round"`
}

func (h *Handler) startRound(w http.ResponseWriter, r *http.Request) {
	var req roundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.applyEvent(w, r, &bus.Event{Type: bus.EventRoundStarted, Round: req.Round})
}

func (h *Handler) applyEvent(w http.ResponseWriter, r *http.Request, ev *bus.Event) {
	if err := h.events.HandleEvent(r.Context(), ev); err != nil {
		h.logger.Debug("api event rejected", zap.String("type", ev.Type), zap.Error(err))
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) worldStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"world_time":   h.clock.Now(),
		"ticks":        h.clock.Ticks(),
		"paused":       h.clock.Paused(),
		"round":        h.engine.Round(),
		"parrot_count": len(h.engine.List()),
	})
}

func (h *Handler) pause(w http.ResponseWriter, r *http.Request) {
	h.clock.Pause()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) resume(w http.ResponseWriter, r *http.Request) {
	h.clock.Resume()
	w.WriteHeader(http.StatusNoContent)
}

// session resolves the caller's moderation session, writing the error
// response itself when there is none.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*moderation.Session, bool) {
	if h.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("moderation not configured"))
		return nil, false
	}
	operator := r.Header.Get(OperatorHeader)
	if operator == "" {
		writeError(w, http.StatusUnauthorized, errors.New("missing "+OperatorHeader+" header"))
		return nil, false
	}
	ss, err := h.sessions.Get(operator)
	if err != nil {
		writeError(w, statusFor(err), err)
		return nil, false
	}
	return ss, true
}

func (h *Handler) moderate(w http.ResponseWriter, r *http.Request, msg moderation.Message) {
	ss, ok := h.session(w, r)
	if !ok {
		return
	}
	state, err := ss.Handle(r.Context(), msg)
	if err != nil {
		if errors.Is(err, moderation.ErrForbidden) {
			h.sessions.Close(r.Header.Get(OperatorHeader))
		}
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) listPhrases(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, moderation.RefreshMsg())
}

func (h *Handler) changeFilter(w http.ResponseWriter, r *http.Request) {
	var f moderation.Filter
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.moderate(w, r, moderation.FilterChangeMsg(f))
}

type blockRequest struct {
	Blocked bool `json:"blocked"`
}

func (h *Handler) changeBlock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.moderate(w, r, moderation.BlockChangeMsg(id, req.Blocked))
}

func (h *Handler) moderationMessage(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	msg, err := moderation.DecodeMessage(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.moderate(w, r, msg)
}

func (h *Handler) gatewayStatus(w http.ResponseWriter, r *http.Request) {
	if h.gw == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "gateway not initialized"})
		return
	}
	writeJSON(w, http.StatusOK, h.gw.StatusAll())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, parrot.ErrParrotNotFound), errors.Is(err, store.ErrPhraseNotFound):
		return http.StatusNotFound
	case errors.Is(err, parrot.ErrNoCapability):
		return http.StatusConflict
	case errors.Is(err, moderation.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
