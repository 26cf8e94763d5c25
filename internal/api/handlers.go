package api

import (
	"net/http"
	"time"

	"counterhook/internal/counter"
	"counterhook/internal/httpx"
)

// NotOnGitpod is reported by /info outside a Gitpod workspace.
const NotOnGitpod = "Not running on Gitpod"

func (s *Server) respondValue(w http.ResponseWriter, value int) {
	httpx.RespondJSON(w, s.Logger, http.StatusOK, counter.Response{Value: value})
}

// HandleGet returns the current value.
func (s *Server) HandleGet(w http.ResponseWriter, r *http.Request) {
	s.respondValue(w, s.Store.Value())
}

// HandleIncrement adds the configured step.
func (s *Server) HandleIncrement(w http.ResponseWriter, r *http.Request) {
	s.respondValue(w, s.Store.Increment())
}

// HandleDecrement subtracts one.
func (s *Server) HandleDecrement(w http.ResponseWriter, r *http.Request) {
	s.respondValue(w, s.Store.Decrement())
}

// HandleReset sets the value to zero.
func (s *Server) HandleReset(w http.ResponseWriter, r *http.Request) {
	s.respondValue(w, s.Store.Reset())
}

// HandleHealth handles health check requests
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, s.Logger, http.StatusOK, map[string]string{
		"status":    "ok",
		"message":   "Counter service is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HostInfo is the subset of host details reported by /info.
type HostInfo struct {
	Hostname      string `json:"hostname"`
	OS            string `json:"os"`
	Platform      string `json:"platform"`
	UptimeSeconds uint64 `json:"uptimeSeconds"`
}

// HandleInfo reports the runtime environment.
func (s *Server) HandleInfo(w http.ResponseWriter, r *http.Request) {
	workspace := s.Config.GitpodWorkspaceURL
	if workspace == "" {
		workspace = NotOnGitpod
	}

	response := map[string]interface{}{
		"status":          "ok",
		"environment":     s.Config.Environment,
		"gitpodWorkspace": workspace,
	}

	info, err := s.hostInfo(r.Context())
	if err != nil {
		// host details are best effort
		s.Logger.Warn("Failed to read host info", "error", err)
	} else {
		response["host"] = HostInfo{
			Hostname:      info.Hostname,
			OS:            info.OS,
			Platform:      info.Platform,
			UptimeSeconds: info.Uptime,
		}
	}

	httpx.RespondJSON(w, s.Logger, http.StatusOK, response)
}

// HandleIndex serves the counter page.
func (s *Server) HandleIndex(w http.ResponseWriter, r *http.Request) {
	page, err := uiFS.ReadFile("ui/index.html")
	if err != nil {
		s.Logger.Error("Failed to read embedded page", "error", err)
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(page); err != nil {
		s.Logger.Error("Failed to write page", "error", err)
	}
}
