package messenger

import (
	"fmt"

	"github.com/go-telegram/bot/models"
)

// Button is one inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Keyboard is a grid of inline buttons, row by row.
type Keyboard [][]Button

// Markup converts the keyboard to the Bot API representation.
func (k Keyboard) Markup() *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(k))
	for _, row := range k {
		buttons := make([]models.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, models.InlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		rows = append(rows, buttons)
	}

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// Callback data understood by the router and feature handlers.
const (
	ActionNewComplaint  = "new_complaint"
	ActionCheckStatus   = "check_status"
	ActionContactInfo   = "contact_info"
	ActionFAQ           = "faq"
	ActionMainMenu      = "main_menu"
	ActionComplaints    = "admin_complaints"
	ActionBannedWords   = "admin_banned_words"
	ActionAutoResponses = "admin_auto_responses"
	ActionGroupSettings = "admin_group_settings"
	ActionStatistics    = "admin_statistics"

	PrefixAdmin          = "admin_"
	PrefixReplyComplaint = "reply_complaint_"
	PrefixCloseComplaint = "close_complaint_"
	PrefixUserInfo       = "user_info_"
	PrefixUserHistory    = "user_history_"
)

// MainMenu is shown to users after /start.
func MainMenu() Keyboard {
	return Keyboard{
		{{Text: "📝 New Complaint", Data: ActionNewComplaint}, {Text: "📋 Check Status", Data: ActionCheckStatus}},
		{{Text: "📞 Contact Info", Data: ActionContactInfo}, {Text: "❓ FAQ", Data: ActionFAQ}},
		{{Text: "🏠 Main Menu", Data: ActionMainMenu}},
	}
}

// AdminPanel is the /admin dashboard.
func AdminPanel() Keyboard {
	return Keyboard{
		{{Text: "📋 Complaints", Data: ActionComplaints}, {Text: "🚫 Banned Words", Data: ActionBannedWords}},
		{{Text: "🤖 Auto Responses", Data: ActionAutoResponses}, {Text: "⚙️ Group Settings", Data: ActionGroupSettings}},
		{{Text: "📊 Statistics", Data: ActionStatistics}},
	}
}

// ComplaintAdmin is attached to the admin notification of a stored complaint.
func ComplaintAdmin(complaintID, userID int64) Keyboard {
	return Keyboard{
		{
			{Text: "💬 Reply", Data: fmt.Sprintf("%s%d", PrefixReplyComplaint, complaintID)},
			{Text: "✅ Close", Data: fmt.Sprintf("%s%d", PrefixCloseComplaint, complaintID)},
		},
		{
			{Text: "👤 User Info", Data: fmt.Sprintf("%s%d", PrefixUserInfo, userID)},
			{Text: "📋 User History", Data: fmt.Sprintf("%s%d", PrefixUserHistory, userID)},
		},
	}
}
