package engine

import (
	"context"

	"wishline/internal/domain"
)

func (e Engine) rankingLimit() int {
	if e.Config != nil && e.Config.Rankings.Limit > 0 {
		return e.Config.Rankings.Limit
	}
	return 100
}

// RankMostCompleted lists users by completed assignment count, highest
// first. Users with no completions never appear.
func (e Engine) RankMostCompleted(ctx context.Context) ([]domain.RankingEntry, error) {
	return e.Repo.MostCompleted(ctx, e.rankingLimit())
}

// RankBestRated lists users by average execution rating, highest first.
func (e Engine) RankBestRated(ctx context.Context) ([]domain.RankingEntry, error) {
	return e.Repo.BestRated(ctx, e.rankingLimit())
}

// RankFastestCompletion lists users by mean days between assignment and
// completion, lowest first.
func (e Engine) RankFastestCompletion(ctx context.Context) ([]domain.RankingEntry, error) {
	return e.Repo.FastestCompletion(ctx, e.rankingLimit())
}
