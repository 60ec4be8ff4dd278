package publish

import (
	"context"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// 🔗 EnsureRemote makes the named remote of the repository at root point at
// expected, creating it when absent. It reports whether anything changed.
func EnsureRemote(ctx context.Context, root, name, expected string) (bool, error) {
	logger := zerolog.Ctx(ctx)

	repo, err := git.PlainOpen(root)
	if err != nil {
		return false, errors.Errorf("opening repository %s: %w", root, err)
	}

	cfg, err := repo.Config()
	if err != nil {
		return false, errors.Errorf("reading repository config: %w", err)
	}

	remote, ok := cfg.Remotes[name]
	if ok && len(remote.URLs) > 0 && sameURL(remote.URLs[0], expected) {
		return false, nil
	}

	if !ok {
		if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: name, URLs: []string{expected}}); err != nil {
			return false, errors.Errorf("creating remote %s: %w", name, err)
		}
		logger.Warn().Str("remote", name).Str("url", expected).Msg("remote was missing, created it")
		return true, nil
	}

	previous := strings.Join(remote.URLs, ",")
	remote.URLs = []string{expected}
	if err := repo.SetConfig(cfg); err != nil {
		return false, errors.Errorf("repointing remote %s: %w", name, err)
	}
	logger.Warn().
		Str("remote", name).
		Str("from", previous).
		Str("to", expected).
		Msg("remote url did not match the target repository, repointed it")
	return true, nil
}

func sameURL(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}
