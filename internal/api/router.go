package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sqpplus/internal/app"
	"sqpplus/internal/domain"
	"sqpplus/internal/metrics"
	"sqpplus/internal/provision"
	"sqpplus/internal/validate"
	"sqpplus/internal/ws"

	"go.uber.org/zap"
)

type Server struct {
	Provisioner *provision.Provisioner
	HubManager  *ws.HubManager
	Log         *zap.Logger
}

func NewAPIServer(container *app.Container) *Server {
	return &Server{
		Provisioner: container.Provisioner,
		HubManager:  container.HubManager,
		Log:         container.Logger,
	}
}

func (api *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /servers", api.handleListServers)
	mux.HandleFunc("POST /servers", api.handleDeploy)
	mux.HandleFunc("GET /servers/{name}", api.handleGetServer)
	mux.HandleFunc("DELETE /servers/{name}", api.handleDeleteServer)
	mux.HandleFunc("GET /dependencies", api.handleDependencies)
	mux.HandleFunc("GET /ws/progress/{requestId}", api.handleProgress)
	metrics.RegisterMetrics(mux)

	return api.logMiddleware(api.corsMiddleware(mux))
}

func (api *Server) Start(listenAddr string) error {
	api.Log.Info("API listening", zap.String("addr", listenAddr))
	return http.ListenAndServe(listenAddr, api.Handler())
}

type deployBody struct {
	domain.RawDeployRequest
	RequestID string `json:"requestId"`
}

type validationResponse struct {
	Errors []string            `json:"errors"`
	Fields map[string][]string `json:"fields,omitempty"`
	Values map[string]string   `json:"values"`
}

func (api *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var body deployBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	raw := body.RawDeployRequest.WithDefaults()

	var progress chan domain.ProgressEvent
	forwarded := make(chan struct{})
	if body.RequestID != "" {
		progress = make(chan domain.ProgressEvent, 16)
		go func() {
			defer close(forwarded)
			for ev := range progress {
				api.HubManager.Publish(body.RequestID, ev)
			}
			api.HubManager.Finish(body.RequestID)
		}()
	} else {
		close(forwarded)
	}

	// A dropped caller must not abort a half-done deployment.
	ctx := context.WithoutCancel(r.Context())
	inst, err := api.Provisioner.Deploy(ctx, body.RequestID, raw, progress)
	if progress != nil {
		close(progress)
	}
	<-forwarded

	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, validationResponse{
				Errors: verr.Messages,
				Fields: verr.Fields,
				Values: echoValues(raw),
			})
			return
		}
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, inst)
}

// echoValues returns the entered fields so a client can re-prompt with them.
// The secret is never echoed.
func echoValues(raw domain.RawDeployRequest) map[string]string {
	return map[string]string{
		"name":       raw.Name,
		"basePath":   raw.BasePath,
		"gamePort":   raw.GamePort,
		"queryPort":  raw.QueryPort,
		"maxPlayers": raw.MaxPlayers,
	}
}

func (api *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := api.Provisioner.ListInstances()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if servers == nil {
		servers = []domain.ServerInstance{}
	}
	writeJSON(w, http.StatusOK, servers)
}

func (api *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !validate.ValidName(name) {
		writeError(w, http.StatusNotFound, "Server not found")
		return
	}

	srv, err := api.Provisioner.GetInstance(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if srv == nil {
		writeError(w, http.StatusNotFound, "Server not found")
		return
	}

	writeJSON(w, http.StatusOK, srv)
}

func (api *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	purge := r.URL.Query().Get("purge") == "true"

	if err := api.Provisioner.Remove(context.WithoutCancel(r.Context()), name, purge); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type dependencyResponse struct {
	validate.DependencyReport
	Message string `json:"message,omitempty"`
}

func (api *Server) handleDependencies(w http.ResponseWriter, r *http.Request) {
	report := api.Provisioner.Validator().CheckDependencies()
	writeJSON(w, http.StatusOK, dependencyResponse{DependencyReport: report, Message: report.Message()})
}

func (api *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("requestId")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Missing request id")
		return
	}

	api.HubManager.GetHub(id).ServeWs(w, r)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNameConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
