package admin

import (
	"context"
	"fmt"

	"tg_support_bot/internal/domain"
)

// Statistics renders the admin statistics screen. Counters that cannot be
// read show as n/a.
func (c *Console) Statistics(ctx context.Context) string {
	count := func(event string, fn func() (int64, error)) string {
		n, err := fn()
		if err != nil {
			c.storeFailed(event, err)
			return "n/a"
		}
		return fmt.Sprintf("%d", n)
	}

	users := count("stats_users_failed", func() (int64, error) {
		return c.store.CountUsers(ctx)
	})
	pending := count("stats_pending_failed", func() (int64, error) {
		return c.store.CountComplaints(ctx, domain.ComplaintPending)
	})
	closed := count("stats_closed_failed", func() (int64, error) {
		return c.store.CountComplaints(ctx, domain.ComplaintClosed)
	})
	words := count("stats_banned_words_failed", func() (int64, error) {
		list, err := c.store.ListBannedWords(ctx)
		return int64(len(list)), err
	})
	responses := count("stats_auto_responses_failed", func() (int64, error) {
		list, err := c.store.ListAutoResponses(ctx)
		return int64(len(list)), err
	})

	return fmt.Sprintf("📊 Bot Statistics\n\n"+
		"👥 Total users: %s\n"+
		"⏳ Pending complaints: %s\n"+
		"✅ Closed complaints: %s\n"+
		"🚫 Banned words: %s\n"+
		"🤖 Auto responses: %s", users, pending, closed, words, responses)
}
