package core

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandChat is a plain message broadcast to everyone.
	CommandChat CommandKind = iota
	// CommandDisconnect ends the session.
	CommandDisconnect
	// CommandPeople lists connected users.
	CommandPeople
	// CommandPrivate sends text to a single user.
	CommandPrivate
)

const (
	cmdDisconnect = "/disconnect"
	cmdPeople     = "/people"
	cmdPrivate    = "/private"
)

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind
	To   string
	Text string
}

// ParseCommand classifies a decoded payload. A payload is a command when its
// first word is a recognized command name; anything else is chat.
func ParseCommand(payload string) (Command, error) {
	trimmed := strings.TrimSpace(payload)
	name, rest := cutSpace(trimmed)

	switch name {
	case cmdDisconnect:
		return Command{Kind: CommandDisconnect}, nil
	case cmdPeople:
		return Command{Kind: CommandPeople}, nil
	case cmdPrivate:
		to, text := cutSpace(strings.TrimLeftFunc(rest, unicode.IsSpace))
		text = strings.TrimSpace(text)
		if to == "" || text == "" {
			return Command{}, fmt.Errorf("%w: usage: /private <username> <text>", ErrBadCommand)
		}
		return Command{Kind: CommandPrivate, To: to, Text: text}, nil
	default:
		return Command{Kind: CommandChat, Text: payload}, nil
	}
}

// cutSpace splits s around its first whitespace rune.
func cutSpace(s string) (before, after string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	_, size := utf8.DecodeRuneInString(s[i:])
	return s[:i], s[i+size:]
}
