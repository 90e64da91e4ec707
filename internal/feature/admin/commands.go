package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tg_support_bot/internal/command"
	"tg_support_bot/internal/domain"
	"tg_support_bot/internal/logging"
)

const (
	usageReply          = "❌ Usage: /reply <user_id> <message>"
	usageAddBan         = "❌ Usage: /addban <word>"
	usageRemoveBan      = "❌ Usage: /removeban <word>"
	usageAddResponse    = "❌ Usage: /addresponse <trigger> | <response>"
	usageRemoveResponse = "❌ Usage: /removeresponse <trigger>"
	usageSetWarnings    = "❌ Usage: /setwarnings <positive number>"
	usageSetMute        = "❌ Usage: /setmute <minutes> (1-527040)"
	usageMember         = "❌ Usage: /%s <user_id>"

	msgStoreFailed      = "❌ Something went wrong while saving. Please try again."
	msgSettingsFailed   = "❌ Could not load group settings. Please try again."
	msgNoGroup          = "❌ No group configured. Send this command in the group or set GROUP_ID."
	msgUnknownCommand   = "❓ Unknown command. Use /admin to open the control panel."
	msgGroupClosed      = "🔒 Group has been closed. Only admins can send messages."
	msgGroupOpened      = "🔓 Group has been opened. Users can send messages."
	msgMemberActionDone = "✅ User %d has been %s."
	msgMemberActionFail = "❌ Failed to %s user %d."
)

// IsAdminCommand reports whether name is handled by the console.
func IsAdminCommand(name string) bool {
	switch name {
	case "admin", "reply", "addban", "removeban", "addresponse", "removeresponse",
		"closegroup", "opengroup", "setwarnings", "setmute",
		"kick", "ban", "unban", "unmute":
		return true
	}
	return false
}

// HandleCommand executes an admin command sent to chatID. Commands from
// anyone but the admin are ignored. The returned error is set only when the
// reply to the admin could not be sent.
func (c *Console) HandleCommand(ctx context.Context, chatID, callerID int64, cmd command.Command) error {
	if !c.admin.IsAdmin(callerID) {
		c.logger.WithFields(logging.Fields{
			"event":   "admin_command_rejected",
			"user_id": callerID,
			"command": cmd.Name,
		}).Warn("non-admin attempted admin command")
		return nil
	}

	c.logger.WithFields(logging.Fields{
		"event":   "admin_command",
		"chat_id": chatID,
		"command": cmd.Name,
	}).Info("admin command received")

	switch cmd.Name {
	case "admin":
		return c.ShowPanel(ctx, chatID)
	case "reply":
		return c.reply(ctx, chatID, callerID, cmd)
	case "addban":
		return c.addBan(ctx, chatID, cmd)
	case "removeban":
		return c.removeBan(ctx, chatID, cmd)
	case "addresponse":
		return c.addResponse(ctx, chatID, cmd)
	case "removeresponse":
		return c.removeResponse(ctx, chatID, cmd)
	case "closegroup":
		return c.setClosed(ctx, chatID, true)
	case "opengroup":
		return c.setClosed(ctx, chatID, false)
	case "setwarnings":
		return c.setWarnings(ctx, chatID, cmd)
	case "setmute":
		return c.setMute(ctx, chatID, cmd)
	case "kick", "ban", "unban", "unmute":
		return c.memberAction(ctx, chatID, cmd)
	default:
		if isGroupChat(chatID) {
			return nil
		}
		return c.send(ctx, chatID, msgUnknownCommand)
	}
}

func (c *Console) reply(ctx context.Context, chatID, callerID int64, cmd command.Command) error {
	target, text := cmd.SplitFirst()
	userID, ok := command.Command{Args: target}.UserID()
	if !ok || text == "" {
		return c.send(ctx, chatID, usageReply)
	}

	// ReplyToUser reports delivery to the admin itself.
	if _, err := c.complaints.ReplyToUser(ctx, callerID, userID, text); err != nil {
		return fmt.Errorf("reply to user: %w", err)
	}
	return nil
}

func (c *Console) addBan(ctx context.Context, chatID int64, cmd command.Command) error {
	word := domain.NormalizeTerm(cmd.Args)
	if word == "" {
		return c.send(ctx, chatID, usageAddBan)
	}

	if err := c.store.AddBannedWord(ctx, word); err != nil {
		c.storeFailed("banned_word_add_failed", err)
		return c.send(ctx, chatID, msgStoreFailed)
	}
	return c.send(ctx, chatID, fmt.Sprintf("✅ Added \"%s\" to banned words list.", word))
}

func (c *Console) removeBan(ctx context.Context, chatID int64, cmd command.Command) error {
	word := domain.NormalizeTerm(cmd.Args)
	if word == "" {
		return c.send(ctx, chatID, usageRemoveBan)
	}

	removed, err := c.store.RemoveBannedWord(ctx, word)
	if err != nil {
		c.storeFailed("banned_word_remove_failed", err)
		return c.send(ctx, chatID, msgStoreFailed)
	}
	if !removed {
		return c.send(ctx, chatID, fmt.Sprintf("ℹ️ \"%s\" is not in the banned words list.", word))
	}
	return c.send(ctx, chatID, fmt.Sprintf("✅ Removed \"%s\" from banned words list.", word))
}

func (c *Console) addResponse(ctx context.Context, chatID int64, cmd command.Command) error {
	trigger, response, found := strings.Cut(cmd.Args, "|")
	trigger = domain.NormalizeTerm(trigger)
	response = strings.TrimSpace(response)
	if !found || trigger == "" || response == "" {
		return c.send(ctx, chatID, usageAddResponse)
	}

	if err := c.store.AddAutoResponse(ctx, trigger, response); err != nil {
		c.storeFailed("auto_response_add_failed", err)
		return c.send(ctx, chatID, msgStoreFailed)
	}
	return c.send(ctx, chatID, fmt.Sprintf("✅ Added auto response for trigger \"%s\".", trigger))
}

func (c *Console) removeResponse(ctx context.Context, chatID int64, cmd command.Command) error {
	trigger := domain.NormalizeTerm(cmd.Args)
	if trigger == "" {
		return c.send(ctx, chatID, usageRemoveResponse)
	}

	removed, err := c.store.RemoveAutoResponse(ctx, trigger)
	if err != nil {
		c.storeFailed("auto_response_remove_failed", err)
		return c.send(ctx, chatID, msgStoreFailed)
	}
	if !removed {
		return c.send(ctx, chatID, fmt.Sprintf("ℹ️ No auto response for trigger \"%s\".", trigger))
	}
	return c.send(ctx, chatID, fmt.Sprintf("✅ Removed auto response for trigger \"%s\".", trigger))
}

func (c *Console) setClosed(ctx context.Context, chatID int64, closed bool) error {
	confirmation := msgGroupOpened
	if closed {
		confirmation = msgGroupClosed
	}

	return c.updateSettings(ctx, chatID, confirmation, func(s *domain.GroupSettings) {
		s.IsClosed = closed
	})
}

func (c *Console) setWarnings(ctx context.Context, chatID int64, cmd command.Command) error {
	n, ok := cmd.PositiveInt()
	if !ok {
		return c.send(ctx, chatID, usageSetWarnings)
	}

	return c.updateSettings(ctx, chatID, fmt.Sprintf("✅ Max warnings set to %d.", n), func(s *domain.GroupSettings) {
		s.MaxWarnings = n
	})
}

func (c *Console) setMute(ctx context.Context, chatID int64, cmd command.Command) error {
	n, ok := cmd.PositiveInt()
	if !ok || n > domain.MaxMuteDurationMinutes {
		return c.send(ctx, chatID, usageSetMute)
	}

	return c.updateSettings(ctx, chatID, fmt.Sprintf("✅ Mute duration set to %d minutes.", n), func(s *domain.GroupSettings) {
		s.MuteDurationMinutes = n
	})
}

// updateSettings is a read-modify-write of the settings singleton. A failed
// read aborts so stored limits are never replaced by defaults.
func (c *Console) updateSettings(ctx context.Context, chatID int64, confirmation string, mutate func(*domain.GroupSettings)) error {
	settings, err := c.settings(ctx)
	if err != nil {
		c.storeFailed("group_settings_read_failed", err)
		return c.send(ctx, chatID, msgSettingsFailed)
	}

	mutate(&settings)
	if err := c.store.UpdateGroupSettings(ctx, settings); err != nil {
		c.storeFailed("group_settings_write_failed", err)
		return c.send(ctx, chatID, msgStoreFailed)
	}

	c.logger.WithFields(logging.Fields{
		"event":                 "group_settings_updated",
		"is_closed":             settings.IsClosed,
		"max_warnings":          settings.MaxWarnings,
		"mute_duration_minutes": settings.MuteDurationMinutes,
	}).Info("group settings updated")

	return c.send(ctx, chatID, confirmation)
}

var memberVerbs = map[string]string{
	"kick":   "kicked",
	"ban":    "banned",
	"unban":  "unbanned",
	"unmute": "unmuted",
}

func (c *Console) memberAction(ctx context.Context, chatID int64, cmd command.Command) error {
	userID, ok := cmd.UserID()
	if !ok {
		return c.send(ctx, chatID, fmt.Sprintf(usageMember, cmd.Name))
	}

	groupChat := c.groupID
	if isGroupChat(chatID) {
		groupChat = chatID
	}
	if groupChat == 0 || c.members == nil {
		return c.send(ctx, chatID, msgNoGroup)
	}

	var err error
	switch cmd.Name {
	case "kick":
		err = c.members.Kick(ctx, groupChat, userID)
	case "ban":
		err = c.members.Ban(ctx, groupChat, userID)
	case "unban":
		err = c.members.Unban(ctx, groupChat, userID)
	case "unmute":
		err = c.members.Unmute(ctx, groupChat, userID)
	default:
		err = errors.New("unsupported member action")
	}
	if err != nil {
		return c.send(ctx, chatID, fmt.Sprintf(msgMemberActionFail, cmd.Name, userID))
	}

	return c.send(ctx, chatID, fmt.Sprintf(msgMemberActionDone, userID, memberVerbs[cmd.Name]))
}
