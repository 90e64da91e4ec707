package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/feature/complaint"
	"tg_support_bot/internal/logging"
	"tg_support_bot/internal/messenger"
)

const (
	listLimit = 10

	answerAdminsOnly = "⛔ Admins only"
)

// IsAdminCallback reports whether data belongs to an admin button.
func IsAdminCallback(data string) bool {
	for _, prefix := range []string{
		messenger.PrefixAdmin,
		messenger.PrefixReplyComplaint,
		messenger.PrefixCloseComplaint,
		messenger.PrefixUserInfo,
		messenger.PrefixUserHistory,
	} {
		if strings.HasPrefix(data, prefix) {
			return true
		}
	}
	return false
}

// HandleCallback serves admin panel and complaint buttons. Presses from
// anyone but the admin are answered with a refusal and do nothing else.
func (c *Console) HandleCallback(ctx context.Context, cb domain.Callback) error {
	if !c.admin.IsAdmin(cb.From.UserID) {
		c.logger.WithFields(logging.Fields{
			"event":   "admin_callback_rejected",
			"user_id": cb.From.UserID,
			"data":    cb.Data,
		}).Warn("non-admin pressed admin button")
		c.answer(ctx, cb, answerAdminsOnly)
		return nil
	}

	text, err := c.callbackReply(ctx, cb)
	c.answer(ctx, cb, "")
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	return c.send(ctx, cb.ChatID, text)
}

// callbackReply returns the text to send for cb. Actions that send on their
// own return an empty text.
func (c *Console) callbackReply(ctx context.Context, cb domain.Callback) (string, error) {
	switch data := cb.Data; {
	case data == messenger.ActionComplaints:
		return c.pendingText(ctx), nil
	case data == messenger.ActionBannedWords:
		return c.bannedWordsText(ctx), nil
	case data == messenger.ActionAutoResponses:
		return c.autoResponsesText(ctx), nil
	case data == messenger.ActionGroupSettings:
		return c.groupSettingsText(ctx), nil
	case data == messenger.ActionStatistics:
		return c.Statistics(ctx), nil
	case strings.HasPrefix(data, messenger.PrefixReplyComplaint):
		id, ok := parseID(data, messenger.PrefixReplyComplaint)
		if !ok {
			return "", nil
		}
		return "", c.complaints.PromptReply(ctx, cb.ChatID, id)
	case strings.HasPrefix(data, messenger.PrefixCloseComplaint):
		id, ok := parseID(data, messenger.PrefixCloseComplaint)
		if !ok {
			return "", nil
		}
		return c.closeText(ctx, id), nil
	case strings.HasPrefix(data, messenger.PrefixUserInfo):
		id, ok := parseID(data, messenger.PrefixUserInfo)
		if !ok {
			return "", nil
		}
		return c.userInfoText(ctx, id), nil
	case strings.HasPrefix(data, messenger.PrefixUserHistory):
		id, ok := parseID(data, messenger.PrefixUserHistory)
		if !ok {
			return "", nil
		}
		return c.userHistoryText(ctx, id), nil
	default:
		return "", nil
	}
}

func (c *Console) closeText(ctx context.Context, id int64) string {
	result, err := c.complaints.Close(ctx, id)
	if err != nil {
		c.storeFailed("complaint_close_failed", err)
		return fmt.Sprintf("❌ Could not close complaint #%d. Please try again.", id)
	}

	switch result {
	case complaint.CloseAlreadyClosed:
		return fmt.Sprintf("ℹ️ Complaint #%d is already closed.", id)
	case complaint.CloseNotFound:
		return fmt.Sprintf("❌ Complaint #%d not found.", id)
	default:
		return fmt.Sprintf("✅ Complaint #%d has been closed.", id)
	}
}

func (c *Console) pendingText(ctx context.Context) string {
	pending := c.complaints.Pending(ctx, listLimit)
	if len(pending) == 0 {
		return "📋 No pending complaints."
	}

	var b strings.Builder
	b.WriteString("📋 Pending Complaints\n")
	for _, p := range pending {
		fmt.Fprintf(&b, "\n#%d from %s (%d)\n📝 %s\n", p.ID, p.Username, p.UserID, p.Excerpt(80))
	}
	b.WriteString("\nTo reply: /reply <user_id> Your response here")
	return b.String()
}

func (c *Console) bannedWordsText(ctx context.Context) string {
	words, err := c.store.ListBannedWords(ctx)
	if err != nil {
		c.storeFailed("banned_words_list_failed", err)
		words = nil
	}

	var b strings.Builder
	b.WriteString("🚫 Banned Words Management\n\n")
	if len(words) == 0 {
		b.WriteString("No banned words configured.\n")
	} else {
		b.WriteString("Current banned words:\n")
		for _, w := range words {
			fmt.Fprintf(&b, "• %s\n", w.Word)
		}
	}
	b.WriteString("\nTo add a banned word: /addban <word>\nTo remove a banned word: /removeban <word>")
	return b.String()
}

func (c *Console) autoResponsesText(ctx context.Context) string {
	responses, err := c.store.ListAutoResponses(ctx)
	if err != nil {
		c.storeFailed("auto_responses_list_failed", err)
		responses = nil
	}

	var b strings.Builder
	b.WriteString("🤖 Auto Responses Management\n\n")
	if len(responses) == 0 {
		b.WriteString("No auto responses configured.\n")
	} else {
		b.WriteString("Current auto responses:\n")
		for _, r := range responses {
			fmt.Fprintf(&b, "• %s → %s\n", r.Trigger, r.Response)
		}
	}
	b.WriteString("\nTo add an auto response: /addresponse <trigger> | <response>\nTo remove an auto response: /removeresponse <trigger>")
	return b.String()
}

func (c *Console) groupSettingsText(ctx context.Context) string {
	settings, err := c.settings(ctx)
	if err != nil {
		c.storeFailed("group_settings_read_failed", err)
		settings = domain.DefaultGroupSettings()
	}

	status := "🔓 Open"
	if settings.IsClosed {
		status = "🔒 Closed"
	}

	return fmt.Sprintf("⚙️ Group Settings\n\n"+
		"Group Status: %s\n"+
		"Max Warnings: %d\n"+
		"Mute Duration: %d minutes\n\n"+
		"Commands:\n"+
		"/closegroup - Close the group\n"+
		"/opengroup - Open the group\n"+
		"/setwarnings <n> - Set max warnings\n"+
		"/setmute <minutes> - Set mute duration", status, settings.MaxWarnings, settings.MuteDurationMinutes)
}

func (c *Console) userInfoText(ctx context.Context, userID int64) string {
	u, err := c.store.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Sprintf("❌ User %d not found.", userID)
	}
	if err != nil {
		c.storeFailed("user_lookup_failed", err)
		return fmt.Sprintf("❌ Could not load user %d.", userID)
	}

	username := "no username"
	if u.Username != "" {
		username = "@" + u.Username
	}
	name := u.FullName()
	if name == "" {
		name = "Unknown"
	}
	joined := "unknown"
	if !u.CreatedAt.IsZero() {
		joined = u.CreatedAt.UTC().Format("2006-01-02")
	}

	return fmt.Sprintf("👤 User Information\n\n"+
		"🆔 ID: %d\n"+
		"👤 Name: %s\n"+
		"📱 Username: %s\n"+
		"📅 Joined: %s", u.UserID, name, username, joined)
}

func (c *Console) userHistoryText(ctx context.Context, userID int64) string {
	history := c.complaints.History(ctx, userID, listLimit)
	if len(history) == 0 {
		return fmt.Sprintf("📋 User %d has no complaints.", userID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Complaint history for user %d\n", userID)
	for _, h := range history {
		fmt.Fprintf(&b, "\n#%d %s\n📝 %s\n", h.ID, h.Status.Label(), h.Excerpt(80))
	}
	return b.String()
}

func (c *Console) answer(ctx context.Context, cb domain.Callback, text string) {
	if cb.ID == "" {
		return
	}
	if err := c.messenger.AnswerCallback(ctx, cb.ID, text); err != nil {
		c.logger.WithFields(logging.Fields{
			"event":   "callback_answer_failed",
			"user_id": cb.From.UserID,
		}).WithError(err).Warn("could not answer callback")
	}
}

func parseID(data, prefix string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
