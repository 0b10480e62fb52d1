package publish

import (
	"context"
	"fmt"
	"time"

	"showrunner/internal/config"
	"showrunner/internal/store"
)

// Fanout expands one finished episode into a post row plus publish job per
// target account. Series with an explicit account list publish only to
// those accounts; the rest publish to every connected account in the
// workspace. No eligible accounts is a quiet no-op so auto-post series
// without connections never park jobs.
func Fanout(ctx context.Context, st *store.Store, cfg *config.Config, episode *store.Episode, series *store.Series) ([]*store.Post, error) {
	accounts, err := targetAccounts(ctx, st, series)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	posts := make([]*store.Post, 0, len(accounts))
	for _, account := range accounts {
		post := &store.Post{
			EpisodeID: episode.ID,
			AccountID: account.ID,
			Status:    store.PostPending,
		}
		if err := st.CreatePost(ctx, post); err != nil {
			return posts, fmt.Errorf("create post for account %s: %w", account.ID, err)
		}
		if _, err := st.EnqueueJob(ctx, store.KindPublish, episode.ID, post.ID, now, cfg.Queue.MaxAttempts); err != nil {
			return posts, fmt.Errorf("enqueue publish job for post %s: %w", post.ID, err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

// targetAccounts resolves the accounts an episode publishes to. Explicitly
// listed accounts are still filtered to connected ones; a disconnected or
// expired account cannot accept an upload no matter what the series says.
func targetAccounts(ctx context.Context, st *store.Store, series *store.Series) ([]*store.Account, error) {
	if len(series.AccountIDs) > 0 {
		accounts, err := st.AccountsByIDs(ctx, series.AccountIDs)
		if err != nil {
			return nil, fmt.Errorf("load series accounts: %w", err)
		}
		connected := accounts[:0]
		for _, account := range accounts {
			if account.Status == store.AccountConnected {
				connected = append(connected, account)
			}
		}
		return connected, nil
	}
	accounts, err := st.ConnectedAccounts(ctx, series.WorkspaceID)
	if err != nil {
		return nil, fmt.Errorf("load connected accounts: %w", err)
	}
	return accounts, nil
}
