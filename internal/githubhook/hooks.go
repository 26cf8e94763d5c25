// Package githubhook registers the receiver's push webhook on a GitHub
// repository.
package githubhook

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// WebhookPath is where the receiver listens.
const WebhookPath = "/webhook"

// Hook describes the webhook to ensure on a repository.
type Hook struct {
	Owner  string
	Repo   string
	URL    string
	Secret string
}

// Result reports what EnsureHook did.
type Result struct {
	HookID  int64
	Created bool
}

// NewClient creates an authenticated GitHub client
func NewClient(ctx context.Context, token string) (*github.Client, error) {
	if token == "" {
		return nil, fmt.Errorf("a GitHub token is required (set GITHUB_TOKEN)")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, ts)), nil
}

// WebhookURL turns a public base URL into the receiver's webhook URL.
func WebhookURL(publicURL string) string {
	return strings.TrimRight(publicURL, "/") + WebhookPath
}

// EnsureHook creates a JSON push webhook for h unless one with the same URL
// already exists.
func EnsureHook(ctx context.Context, client *github.Client, h Hook) (*Result, error) {
	existing, err := findHook(ctx, client, h)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &Result{HookID: existing.GetID()}, nil
	}

	hookReq := &github.Hook{
		Events: []string{"push"},
		Active: github.Bool(true),
		Config: map[string]interface{}{
			"url":          h.URL,
			"content_type": "json",
			"secret":       h.Secret,
			"insecure_ssl": "0",
		},
	}

	created, _, err := client.Repositories.CreateHook(ctx, h.Owner, h.Repo, hookReq)
	if err != nil {
		return nil, fmt.Errorf("creating webhook: %w", err)
	}

	return &Result{HookID: created.GetID(), Created: true}, nil
}

func findHook(ctx context.Context, client *github.Client, h Hook) (*github.Hook, error) {
	opts := &github.ListOptions{PerPage: 100}
	for {
		hooks, resp, err := client.Repositories.ListHooks(ctx, h.Owner, h.Repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing webhooks: %w", err)
		}

		for _, hook := range hooks {
			if url, ok := hook.Config["url"].(string); ok && url == h.URL {
				return hook, nil
			}
		}

		if resp == nil || resp.NextPage == 0 {
			return nil, nil
		}
		opts.Page = resp.NextPage
	}
}
