package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/mcpguard/mcpbridge/internal/config"
	"github.com/mcpguard/mcpbridge/internal/jsonrpc"
	"github.com/mcpguard/mcpbridge/internal/mcp"
	"github.com/mcpguard/mcpbridge/internal/state"
)

// MaxRequestBodySize is the maximum accepted request body (1MB).
const MaxRequestBodySize = 1 << 20

// Redactor scrubs secrets from text before it is logged.
type Redactor interface {
	Redact(text string) string
}

type API struct {
	config     *config.Config
	dispatcher *mcp.Dispatcher
	states     *state.Store
	redactor   Redactor
	logger     *slog.Logger
	now        func() time.Time
}

func NewAPI(cfg *config.Config, dispatcher *mcp.Dispatcher, states *state.Store, redactor Redactor, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		config:     cfg,
		dispatcher: dispatcher,
		states:     states,
		redactor:   redactor,
		logger:     logger,
		now:        time.Now,
	}
}

// Routes registers every endpoint and middleware on router.
func (api *API) Routes(router *mux.Router) {
	router.HandleFunc("/mcp", api.Preflight).Methods(http.MethodOptions)
	router.HandleFunc("/mcp", api.Ready).Methods(http.MethodGet)
	router.HandleFunc("/mcp", api.HandleMessage).Methods(http.MethodPost)
	router.HandleFunc("/health", api.Health).Methods(http.MethodGet)
	router.HandleFunc("/oauth-state", api.PutState).Methods(http.MethodPost)
	router.HandleFunc("/oauth-state", api.TakeState).Methods(http.MethodGet)

	router.MethodNotAllowedHandler = http.HandlerFunc(api.methodNotAllowed)
	router.NotFoundHandler = http.HandlerFunc(api.notFound)

	router.Use(api.requestID, api.recoverer, api.cors, mux.CORSMethodMiddleware(router))
}

// Preflight answers CORS preflight requests for the MCP endpoint.
func (api *API) Preflight(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Headers", api.config.CORSAllowHeaders)
	w.WriteHeader(http.StatusOK)
}

// Ready is the GET side of the MCP endpoint: a readiness descriptor, or a
// single SSE frame when the client asks for an event stream.
func (api *API) Ready(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		api.readyStream(w, r)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ready",
		"server":    api.config.ServerName,
		"version":   api.config.ServerVersion,
		"transport": "streamable-http",
	})
}

func (api *API) readyStream(w http.ResponseWriter, r *http.Request) {
	frame, err := json.Marshal(jsonrpc.Success(jsonrpc.DefaultID, struct{}{}))
	if err != nil {
		api.log(r).Error("failed to encode ready event", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "data: %s\n\n", frame)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// HandleMessage runs one JSON-RPC request through the dispatcher. Protocol
// errors live in the envelope, so the transport status is always 200.
func (api *API) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var resp jsonrpc.Response

	body, err := readBody(r)
	if err != nil {
		api.log(r).Warn("failed to read MCP request body", "error", err)
		resp = jsonrpc.Failure(jsonrpc.DefaultID, jsonrpc.Internal(err.Error()))
	} else {
		resp = api.dispatcher.HandleRaw(r.Context(), body)
	}

	b, err := json.Marshal(resp)
	if err != nil {
		api.log(r).Error("failed to encode JSON-RPC response", "error", err)
		b, _ = json.Marshal(jsonrpc.Failure(resp.ID, jsonrpc.Internal("failed to encode response")))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// Health reports liveness and the number of pending handoff states.
func (api *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"timestamp":      api.now().UTC().Format(time.RFC3339Nano),
		"instance_id":    api.config.InstanceID,
		"pending_states": api.states.Len(),
	})
}

// PutState stores the request body and returns its one-time state id.
func (api *API) PutState(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		api.log(r).Warn("failed to read state body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := api.states.Put(body)
	switch {
	case errors.Is(err, state.ErrMissingPayload):
		writeError(w, http.StatusBadRequest, "Missing request body")
		return
	case errors.Is(err, state.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	case err != nil:
		api.log(r).Error("failed to store state", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	api.log(r).Debug("stored state", "state_id", id, "data", api.redact(string(body)))
	writeJSON(w, http.StatusOK, map[string]string{"state_id": id})
}

// TakeState returns and deletes the payload stored under ?state_id=.
func (api *API) TakeState(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("state_id")

	payload, err := api.states.Take(id)
	switch {
	case errors.Is(err, state.ErrMissingID):
		writeError(w, http.StatusBadRequest, "Missing state_id parameter")
		return
	case errors.Is(err, state.ErrNotFound):
		api.log(r).Info("state not found or expired", "state_id", id)
		writeError(w, http.StatusNotFound, "State not found or expired")
		return
	case err != nil:
		api.log(r).Error("failed to retrieve state", "state_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	api.log(r).Info("retrieved and deleted state", "state_id", id)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func (api *API) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func (api *API) notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not found")
}

func (api *API) redact(text string) string {
	if api.redactor == nil {
		return text
	}
	return api.redactor.Redact(text)
}

// readBody reads at most MaxRequestBodySize bytes of the request body.
func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(body) > MaxRequestBodySize {
		return nil, errors.New("request body too large")
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
