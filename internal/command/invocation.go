package command

import (
	"context"
	"strings"
	"unicode"
)

// DefaultPrefix marks a chat message as a command.
const DefaultPrefix = "&"

// Command names.
const (
	NameColor  = "color"
	NameColors = "colors"
)

// Sources identify the transport an invocation arrived on.
const (
	SourceDiscord = "discord"
	SourceMQTT    = "mqtt"
)

// ReplyFunc sends text back to wherever the command came from.
type ReplyFunc func(ctx context.Context, text string) error

// Invocation is one parsed chat command.
type Invocation struct {
	ID     string   // transport message or request ID, may be empty
	Name   string   // command name without the prefix
	Args   []string // whitespace-separated arguments
	Source string   // SourceDiscord, SourceMQTT
	User   string   // display name or ID of the sender
	Reply  ReplyFunc
}

// ParseMessage splits content into a command name and arguments.
//
// The message must start with prefix, immediately followed by the command
// name. Leading and trailing whitespace is ignored; arguments are separated by
// any run of whitespace. Returns false when content is not a command.
func ParseMessage(prefix, content string) (Invocation, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return Invocation{}, false
	}

	rest := content[len(prefix):]
	if rest == "" || strings.TrimLeftFunc(rest, unicode.IsSpace) != rest {
		return Invocation{}, false
	}

	fields := strings.Fields(rest)

	return Invocation{
		Name: fields[0],
		Args: fields[1:],
	}, true
}
