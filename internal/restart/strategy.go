// Package restart nudges a file-watching development server (nodemon and
// friends) into restarting, either by touching a source file or by running
// a configured restart command.
//
// Selection order, first match wins:
//  1. explicit touch paths, relative to the repository
//  2. a custom restart command
//  3. the first existing conventional entry point (DefaultCandidates)
//  4. the first *.js file directly under <repo>/src
//  5. nothing: log and return
package restart

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"counterhook/pkg/cmdutil"
	"counterhook/pkg/fileutil"
)

// Method names the branch of the strategy that ran.
type Method string

const (
	MethodTouchPaths Method = "touch_paths"
	MethodCommand    Method = "restart_command"
	MethodCandidate  Method = "candidate"
	MethodSourceScan Method = "source_scan"
	MethodNone       Method = "none"
)

const (
	// DefaultSourceDir is scanned when no candidate exists.
	DefaultSourceDir = "src"
	// DefaultSourceExt selects files in DefaultSourceDir.
	DefaultSourceExt = ".js"
)

// DefaultCandidates are the entry points probed in order.
var DefaultCandidates = []string{
	"src/index.js",
	"app.js",
	"server.js",
	"index.js",
	"src/app.js",
	"src/server.js",
	"api/index.js",
	"backend/src/index.js",
	"packages/backend/src/index.js",
}

// Restarter is what the webhook receiver calls to trigger a restart.
type Restarter interface {
	Restart(ctx context.Context) *Result
}

// Result describes what a Restart call did.
type Result struct {
	Method  Method   `json:"method"`
	Touched []string `json:"touched,omitempty"`
	Skipped []string `json:"skipped,omitempty"`
	Output  string   `json:"output,omitempty"`
	Err     error    `json:"-"`
}

// Strategy implements Restarter for a repository checkout.
type Strategy struct {
	RepoPath       string
	TouchPaths     []string
	RestartCommand string
	Candidates     []string
	SourceDir      string
	SourceExt      string
	Runner         cmdutil.Runner
	Logger         *slog.Logger

	now     func() time.Time
	chtimes func(string, time.Time, time.Time) error
}

// NewStrategy creates a strategy with the default candidate list.
func NewStrategy(repoPath string, touchPaths []string, restartCommand string, runner cmdutil.Runner, logger *slog.Logger) *Strategy {
	return &Strategy{
		RepoPath:       repoPath,
		TouchPaths:     touchPaths,
		RestartCommand: restartCommand,
		Candidates:     DefaultCandidates,
		SourceDir:      DefaultSourceDir,
		SourceExt:      DefaultSourceExt,
		Runner:         runner,
		Logger:         logger,
		now:            time.Now,
	}
}

// Restart runs the first applicable branch. It never fails outright:
// problems are logged and reported in Result.
func (s *Strategy) Restart(ctx context.Context) *Result {
	switch {
	case len(s.TouchPaths) > 0:
		return s.touchConfigured(ctx)
	case s.RestartCommand != "":
		return s.runCommand(ctx)
	default:
		return s.findAndTouch(ctx)
	}
}

func (s *Strategy) touchConfigured(ctx context.Context) *Result {
	result := &Result{Method: MethodTouchPaths}

	for _, rel := range s.TouchPaths {
		fullPath := filepath.Join(s.RepoPath, rel)
		if err := s.touch(ctx, fullPath); err != nil {
			s.Logger.Warn("Skipping touch path", "path", fullPath, "error", err)
			result.Skipped = append(result.Skipped, fullPath)
			continue
		}
		result.Touched = append(result.Touched, fullPath)
	}

	return result
}

func (s *Strategy) runCommand(ctx context.Context) *Result {
	result := &Result{Method: MethodCommand}

	cmdParts, err := cmdutil.ParseCommandString(s.RestartCommand)
	if err != nil {
		s.Logger.Error("Invalid restart command", "command", s.RestartCommand, "error", err)
		result.Err = err
		return result
	}

	s.Logger.Info("Executing custom restart command", "command", cmdutil.FormatCommand(cmdParts))
	res, err := s.Runner.Run(ctx, cmdutil.ExecOptions{Dir: s.RepoPath, CombinedOutput: true}, cmdParts)
	if res != nil {
		result.Output = string(res.Output)
	}
	if err != nil {
		s.Logger.Error("Error executing restart command", "error", err, "output", result.Output)
		result.Err = err
		return result
	}

	s.Logger.Info("Restart command finished", "output", result.Output)
	return result
}

func (s *Strategy) findAndTouch(ctx context.Context) *Result {
	if path := fileutil.FirstExisting(fileutil.JoinAll(s.RepoPath, s.Candidates)); path != "" {
		result := &Result{Method: MethodCandidate}
		s.touchInto(ctx, result, path)
		return result
	}

	s.Logger.Info("No conventional entry point found, scanning source directory",
		"dir", filepath.Join(s.RepoPath, s.SourceDir), "ext", s.SourceExt)

	srcDir := filepath.Join(s.RepoPath, s.SourceDir)
	if fileutil.DirExists(srcDir) {
		path, err := fileutil.FirstFileWithSuffix(srcDir, s.SourceExt)
		if err != nil {
			s.Logger.Error("Error searching source directory", "dir", srcDir, "error", err)
		} else if path != "" {
			result := &Result{Method: MethodSourceScan}
			s.touchInto(ctx, result, path)
			return result
		}
	}

	s.Logger.Warn("Could not find any files to touch, the file watcher may not restart", "repo", s.RepoPath)
	return &Result{Method: MethodNone}
}

func (s *Strategy) touchInto(ctx context.Context, result *Result, path string) {
	if err := s.touch(ctx, path); err != nil {
		s.Logger.Error("Failed to touch file", "path", path, "error", err)
		result.Skipped = append(result.Skipped, path)
		result.Err = fmt.Errorf("touch %s: %w", path, err)
		return
	}
	result.Touched = append(result.Touched, path)
}
