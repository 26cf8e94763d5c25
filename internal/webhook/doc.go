// Package webhook implements the HTTP receiver that keeps a development
// checkout in sync with GitHub.
//
// On every POST /webhook the receiver:
//   - verifies the X-Hub-Signature-256 (or legacy X-Hub-Signature) HMAC when present
//   - short-circuits to the restart strategy for ?test=true requests
//   - ignores pushes to branches other than the watched one
//   - runs git pull and, when nothing changed, touches files so the file
//     watcher restarts the dev server anyway
//
// Each delivery is recorded in the SQLite history when one is configured
// (internal/history). Health and recent deliveries are exposed on
// GET /health and GET /deliveries.
package webhook
