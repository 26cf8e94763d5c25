package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"counterhook/internal/history"
	"counterhook/internal/httpx"
	"counterhook/pkg/cmdutil"

	"github.com/google/go-github/v57/github"
)

const (
	MaxPayloadBytes = 10 << 20 // 10 MB

	DefaultDeliveriesLimit = 20
	MaxDeliveriesLimit     = 200
)

// Response messages.
const (
	MsgInvalidSignature = "Invalid signature"
	MsgInvalidPayload   = "Invalid payload"
	MsgSimulated        = "Simulated file changes to trigger restart"
	MsgIgnoredBranch    = "Ignored push to non-watched branch"
	MsgPullFailed       = "Error pulling changes"
	MsgProcessed        = "Changes processed successfully"
)

// Signature outcomes stored with each delivery.
const (
	signatureVerified = "verified"
	signatureMissing  = "missing"
	signatureInvalid  = "invalid"
)

// HandleWebhook handles GitHub webhook requests
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	d := &delivery{
		start: time.Now(),
		record: &history.Delivery{
			DeliveryID: r.Header.Get("X-GitHub-Delivery"),
			Event:      r.Header.Get("X-GitHub-Event"),
		},
	}
	s.Logger.Debug("Received webhook request", "event", d.record.Event, "delivery", d.record.DeliveryID, "query", r.URL.RawQuery)

	// ContentLength can be -1 if not set, the limited read below catches that case
	if r.ContentLength > MaxPayloadBytes {
		s.finish(w, r, d, http.StatusRequestEntityTooLarge, history.ActionInvalid, errorBody("Payload too large"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadBytes+1))
	if err != nil {
		s.Logger.Error("Failed to read request body", "error", err)
		s.finish(w, r, d, http.StatusBadRequest, history.ActionInvalid, errorBody("Failed to read payload"))
		return
	}
	if len(body) > MaxPayloadBytes {
		s.finish(w, r, d, http.StatusRequestEntityTooLarge, history.ActionInvalid, errorBody("Payload too large"))
		return
	}

	signature := SignatureFromHeader(r.Header)
	if signature == "" {
		s.Logger.Info("No signature provided, skipping verification")
		d.record.SignatureStatus = signatureMissing
	} else {
		if err := VerifySignature(body, signature, s.Config.Secret); err != nil {
			s.Logger.Warn("Invalid webhook signature", "error", err)
			d.record.SignatureStatus = signatureInvalid
			s.finish(w, r, d, http.StatusForbidden, history.ActionRejected, errorBody(MsgInvalidSignature))
			return
		}
		s.Logger.Info("Signature verified successfully")
		d.record.SignatureStatus = signatureVerified
	}

	if len(body) > 0 && !json.Valid(body) {
		s.Logger.Warn("Webhook body is not valid JSON", "event", d.record.Event)
		s.finish(w, r, d, http.StatusBadRequest, history.ActionInvalid, errorBody(MsgInvalidPayload))
		return
	}

	if r.URL.Query().Get("test") == "true" {
		s.Logger.Info("Test mode: skipping git pull")
		s.Restarter.Restart(r.Context())
		s.finish(w, r, d, http.StatusOK, history.ActionSimulated, messageBody(MsgSimulated))
		return
	}

	if d.record.Event == "push" {
		event, err := parsePushEvent(body)
		if err != nil {
			s.Logger.Warn("Malformed push payload", "error", err)
			s.finish(w, r, d, http.StatusBadRequest, history.ActionInvalid, errorBody("Invalid push payload"))
			return
		}

		d.record.Ref = event.GetRef()
		d.record.CommitHash = stringPtrOrNil(event.GetAfter())

		if !s.Config.WatchesRef(event.GetRef()) {
			s.Logger.Info("Ignoring push to non-watched branch", "ref", event.GetRef(), "watching", s.Config.GitBranch)
			s.finish(w, r, d, http.StatusOK, history.ActionIgnored, messageBody(MsgIgnoredBranch))
			return
		}
	}

	s.Logger.Info("Pulling latest changes", "repo", s.Puller.RepoPath)
	result, err := s.Puller.Pull(r.Context())
	stdout, stderr := s.redact(result.Stdout), s.redact(result.Stderr)

	// Once the request deadline has passed the timeout middleware owns the
	// response, so only the delivery is recorded.
	if ctxErr := r.Context().Err(); ctxErr != nil {
		s.Logger.Error("Request ended while pulling changes", "error", ctxErr, "stderr", stderr)
		d.record.ErrorMessage = stringPtrOrNil(s.redact(fmt.Sprintf("git pull interrupted: %v", ctxErr)))
		s.record(r, d, http.StatusGatewayTimeout, history.ActionTimeout)
		return
	}

	if err != nil {
		s.Logger.Error("Error pulling changes", "error", err, "stderr", stderr)
		msg := err.Error()
		if trimmed := strings.TrimSpace(stderr); trimmed != "" {
			msg += ": " + trimmed
		}
		d.record.ErrorMessage = stringPtrOrNil(s.redact(msg))
		s.finish(w, r, d, http.StatusInternalServerError, history.ActionFailed, errorBody(MsgPullFailed))
		return
	}

	s.Logger.Info("Git pull finished", "output", stdout)

	action := history.ActionPulled
	if result.UpToDate {
		s.Logger.Info("No changes from git pull, touching files to trigger restart")
		s.Restarter.Restart(r.Context())
		action = history.ActionTouched
	} else {
		s.Logger.Info("Changes pulled, the file watcher will restart the server")
	}

	s.finish(w, r, d, http.StatusOK, action, messageBody(MsgProcessed))
}

// HandleHealth reports liveness and the active configuration.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, s.Logger, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"message": "Webhook service is running",
		"config":  s.Config.Snapshot(),
	})
}

// HandleDeliveries lists recent deliveries, newest first.
func (s *Server) HandleDeliveries(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		httpx.RespondJSON(w, s.Logger, http.StatusServiceUnavailable, errorBody("Delivery history is disabled"))
		return
	}

	limit := DefaultDeliveriesLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			httpx.RespondJSON(w, s.Logger, http.StatusBadRequest, errorBody("limit must be a positive integer"))
			return
		}
		limit = min(n, MaxDeliveriesLimit)
	}

	deliveries, err := s.History.ListDeliveries(r.Context(), limit)
	if err != nil {
		s.Logger.Error("Failed to list deliveries", "error", err)
		httpx.RespondJSON(w, s.Logger, http.StatusInternalServerError, errorBody("Failed to fetch deliveries"))
		return
	}

	counts, err := s.History.CountByAction(r.Context())
	if err != nil {
		s.Logger.Error("Failed to count deliveries", "error", err)
		httpx.RespondJSON(w, s.Logger, http.StatusInternalServerError, errorBody("Failed to fetch deliveries"))
		return
	}

	httpx.RespondJSON(w, s.Logger, http.StatusOK, map[string]interface{}{
		"deliveries": deliveries,
		"counts":     counts,
	})
}

type delivery struct {
	start  time.Time
	record *history.Delivery
}

// finish writes the response and records the delivery.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, d *delivery, statusCode int, action string, body map[string]string) {
	httpx.RespondJSON(w, s.Logger, statusCode, body)

	if d.record.ErrorMessage == nil && statusCode >= http.StatusBadRequest {
		d.record.ErrorMessage = stringPtrOrNil(body["error"])
	}
	s.record(r, d, statusCode, action)
}

// record stores the delivery outcome without touching the response.
func (s *Server) record(r *http.Request, d *delivery, statusCode int, action string) {
	if s.History == nil {
		return
	}

	duration := time.Since(d.start).Seconds()
	d.record.Action = action
	d.record.StatusCode = statusCode
	d.record.DurationSeconds = &duration

	// The delivery is recorded even if the client has gone away.
	ctx := context.WithoutCancel(r.Context())
	if _, err := s.History.RecordDelivery(ctx, d.record); err != nil {
		s.Logger.Error("Failed to record delivery", "error", err, "action", action)
	}
}

func parsePushEvent(body []byte) (*github.PushEvent, error) {
	parsed, err := github.ParseWebHook("push", body)
	if err != nil {
		return nil, err
	}
	event, ok := parsed.(*github.PushEvent)
	if !ok {
		return nil, fmt.Errorf("unexpected payload type %T", parsed)
	}
	return event, nil
}

// redact masks the webhook secret in git output before it is logged or stored.
func (s *Server) redact(out string) string {
	return string(cmdutil.SanitizeOutput([]byte(out), []string{s.Config.Secret}))
}

func messageBody(msg string) map[string]string {
	return map[string]string{"message": msg}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func stringPtrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
