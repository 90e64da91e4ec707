package router

import (
	"strings"

	"github.com/go-telegram/bot/models"

	"tg_support_bot/internal/command"
	"tg_support_bot/internal/domain"
)

// Kind is the single category an update is dispatched under.
type Kind string

const (
	KindStartCommand        Kind = "start_command"
	KindAdminReplyCommand   Kind = "admin_reply_command"
	KindAdminPanelCommand   Kind = "admin_panel_command"
	KindAdminPrivateCommand Kind = "admin_private_command"
	KindCallbackQuery       Kind = "callback_query"
	KindGroupMessage        Kind = "group_message"
	KindAdminGroupCommand   Kind = "admin_group_command"
	KindPrivateComplaint    Kind = "private_complaint"
	KindJoinRequest         Kind = "join_request"
	KindMemberLeft          Kind = "member_left"
	KindIgnored             Kind = "ignored"
)

// Classify maps an update to exactly one Kind. groupID restricts group kinds
// to one chat; zero accepts any group.
func Classify(update *models.Update, admin domain.Admin, groupID int64) Kind {
	switch {
	case update == nil:
		return KindIgnored
	case update.ChatJoinRequest != nil:
		if !moderatedGroup(update.ChatJoinRequest.Chat.ID, groupID) {
			return KindIgnored
		}
		return KindJoinRequest
	case update.CallbackQuery != nil:
		return KindCallbackQuery
	case update.Message != nil:
		return classifyMessage(update.Message, admin, groupID)
	default:
		return KindIgnored
	}
}

func classifyMessage(msg *models.Message, admin domain.Admin, groupID int64) Kind {
	if msg.From == nil {
		return KindIgnored
	}
	fromAdmin := admin.IsAdmin(msg.From.ID)

	switch chatType(msg.Chat) {
	case "private":
		cmd, isCommand := command.Parse(msg.Text)
		switch {
		case isCommand && cmd.Name == "start":
			return KindStartCommand
		case isCommand && fromAdmin && cmd.Name == "reply":
			return KindAdminReplyCommand
		case isCommand && fromAdmin && cmd.Name == "admin":
			return KindAdminPanelCommand
		case isCommand && fromAdmin:
			return KindAdminPrivateCommand
		case isCommand, fromAdmin:
			return KindIgnored
		case strings.TrimSpace(msg.Text) == "":
			return KindIgnored
		default:
			return KindPrivateComplaint
		}
	case "group", "supergroup":
		if !moderatedGroup(msg.Chat.ID, groupID) {
			return KindIgnored
		}
		if msg.LeftChatMember != nil {
			return KindMemberLeft
		}
		if fromAdmin {
			return KindAdminGroupCommand
		}
		return KindGroupMessage
	default:
		return KindIgnored
	}
}

func chatType(chat models.Chat) string {
	return string(chat.Type)
}

func moderatedGroup(chatID, groupID int64) bool {
	return groupID == 0 || chatID == groupID
}
