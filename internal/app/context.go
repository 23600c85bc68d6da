package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"wishline/internal/config"
	"wishline/internal/repo"
)

// ResolveConfig decides which configuration governs a workspace. A
// wishline.yml on disk wins and refreshes the stored copy; otherwise the
// copy in app_config is used, and a fresh workspace gets the defaults
// seeded so later runs are stable even if the file disappears.
func ResolveConfig(ctx context.Context, workspace string, r repo.Repo) (*config.Config, error) {
	if _, err := os.Stat(config.Path(workspace)); err == nil {
		cfg, err := config.Load(workspace)
		if err != nil {
			return nil, err
		}
		if err := r.UpsertConfig(ctx, cfg); err != nil {
			return nil, fmt.Errorf("store config: %w", err)
		}
		return cfg, nil
	}

	stored, storedErr := r.GetConfig(ctx)
	if storedErr == nil {
		return stored, nil
	}
	if !errors.Is(storedErr, repo.ErrNotFound) {
		return nil, storedErr
	}

	cfg := config.Default()
	if err := r.UpsertConfig(ctx, cfg); err != nil {
		return nil, fmt.Errorf("seed config: %w", err)
	}
	return cfg, nil
}
