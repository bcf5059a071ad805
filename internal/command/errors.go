package command

import "errors"

// Domain errors for the command package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, command.ErrUnknownColor) {
//	    // reply with ReplyInvalidColor
//	}
var (
	// ErrArgumentCount is returned when color is given anything other than
	// exactly one argument.
	ErrArgumentCount = errors.New("command: wrong number of arguments")

	// ErrUnknownColor is returned when a color name is not in the table.
	ErrUnknownColor = errors.New("command: unknown color")

	// ErrUnknownCommand is returned by Handle for names it does not route.
	// Transports ignore it.
	ErrUnknownCommand = errors.New("command: unknown command")
)
