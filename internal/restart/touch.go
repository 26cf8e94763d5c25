package restart

import (
	"context"
	"fmt"
	"os"
	"time"

	"counterhook/internal/security"
	"counterhook/pkg/cmdutil"
)

// touch sets the access and modification times of path to now, following
// symlinks. Missing files are refused. If the timestamp update fails the
// external touch utility is tried.
func (s *Strategy) touch(ctx context.Context, path string) error {
	s.Logger.Debug("Touching file", "path", path)

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", path)
		}
		return err
	}

	if _, err := security.ResolveWithin(s.RepoPath, path); err != nil {
		s.Logger.Warn("Touching file outside the repository", "path", path, "repo", s.RepoPath, "reason", err)
	}

	now := s.clock()()
	err := s.chtimesFunc()(path, now, now)
	if err == nil {
		s.Logger.Info("Touched file", "path", path)
		return nil
	}
	s.Logger.Warn("Updating timestamps failed, falling back to touch command", "path", path, "error", err)

	if _, err := s.Runner.Run(ctx, cmdutil.ExecOptions{CombinedOutput: true}, []string{"touch", path}); err != nil {
		return fmt.Errorf("touch command failed: %w", err)
	}

	s.Logger.Info("Touched file using touch command", "path", path)
	return nil
}

func (s *Strategy) clock() func() time.Time {
	if s.now != nil {
		return s.now
	}
	return time.Now
}

func (s *Strategy) chtimesFunc() func(string, time.Time, time.Time) error {
	if s.chtimes != nil {
		return s.chtimes
	}
	return os.Chtimes
}
