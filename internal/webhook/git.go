package webhook

import (
	"context"
	"fmt"
	"strings"

	"counterhook/pkg/cmdutil"
)

// UpToDateMarker is what git pull prints when there was nothing to fetch.
const UpToDateMarker = "Already up to date."

// PullResult is the outcome of a successful git pull.
type PullResult struct {
	Stdout   string
	Stderr   string
	UpToDate bool
}

// Puller runs git pull in a checkout.
type Puller struct {
	RepoPath string
	Runner   cmdutil.Runner
}

// NewPuller creates a puller for repoPath.
func NewPuller(repoPath string, runner cmdutil.Runner) *Puller {
	return &Puller{RepoPath: repoPath, Runner: runner}
}

// Pull runs git pull. On failure the returned result still carries
// whatever the command printed.
func (p *Puller) Pull(ctx context.Context) (*PullResult, error) {
	res, err := p.Runner.Run(ctx, cmdutil.ExecOptions{Dir: p.RepoPath}, []string{"git", "pull"})

	result := &PullResult{}
	if res != nil {
		result.Stdout = string(res.Stdout)
		result.Stderr = string(res.Stderr)
	}
	if err != nil {
		return result, fmt.Errorf("git pull in %s: %w", p.RepoPath, err)
	}

	result.UpToDate = strings.Contains(result.Stdout, UpToDateMarker)
	return result, nil
}
