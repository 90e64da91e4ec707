// Package command parses slash commands sent to the bot.
package command

import (
	"strconv"
	"strings"
	"unicode"
)

// Command is a parsed "/name@bot args" message. Bot holds the @ suffix, if
// any, without the @.
type Command struct {
	Name string
	Bot  string
	Args string
}

// Parse extracts a command from message text. The name is lowercased and any
// @botname suffix moved to Bot; Args keeps the remainder with inner whitespace
// intact so multi-line replies survive.
func Parse(text string) (Command, bool) {
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	if !strings.HasPrefix(text, "/") {
		return Command{}, false
	}

	head, rest := cutSpace(text[1:])
	bot := ""
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head, bot = head[:at], head[at+1:]
	}
	if head == "" {
		return Command{}, false
	}

	return Command{
		Name: strings.ToLower(head),
		Bot:  bot,
		Args: strings.TrimSpace(rest),
	}, true
}

// AddressedTo reports whether the command is meant for the bot called
// username. Commands without a suffix are meant for every bot, and an unknown
// username accepts everything.
func (c Command) AddressedTo(username string) bool {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if c.Bot == "" || username == "" {
		return true
	}
	return strings.EqualFold(c.Bot, username)
}

// IsCommand reports whether text looks like a slash command.
func IsCommand(text string) bool {
	_, ok := Parse(text)
	return ok
}

// Fields splits the arguments on whitespace.
func (c Command) Fields() []string {
	return strings.Fields(c.Args)
}

// First returns the first argument or an empty string.
func (c Command) First() string {
	first, _ := cutSpace(c.Args)
	return first
}

// SplitFirst returns the first argument and the untouched remainder.
func (c Command) SplitFirst() (string, string) {
	first, rest := cutSpace(c.Args)
	return first, strings.TrimSpace(rest)
}

// PositiveInt parses the first argument as a positive integer.
func (c Command) PositiveInt() (int, bool) {
	n, err := strconv.Atoi(c.First())
	if err != nil || n <= 0 {
		return 0, false
	}

	return n, true
}

// UserID parses the first argument as a Telegram user id.
func (c Command) UserID() (int64, bool) {
	id, err := strconv.ParseInt(c.First(), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}

	return id, true
}

func cutSpace(s string) (string, string) {
	idx := strings.IndexFunc(s, unicode.IsSpace)
	if idx < 0 {
		return s, ""
	}

	return s[:idx], s[idx:]
}
