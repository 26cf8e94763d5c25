// Package httpx holds the HTTP plumbing shared by the counter and webhook
// servers: JSON responses, request logging, rate limiting and public URL
// helpers.
package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// RespondJSON writes data as a JSON body with the given status.
func RespondJSON(w http.ResponseWriter, logger *slog.Logger, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}

// GitpodURL turns a workspace URL into the public URL of a forwarded port:
// https://ws.gitpod.io becomes https://3001-ws.gitpod.io. An empty workspace
// URL yields an empty string.
func GitpodURL(workspaceURL string, port int) string {
	if workspaceURL == "" {
		return ""
	}
	return strings.Replace(workspaceURL, "https://", "https://"+strconv.Itoa(port)+"-", 1)
}
