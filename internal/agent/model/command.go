package model

import "strings"

// Command is a canonical slash command understood by the session.
type Command string

const (
	CommandHelp    Command = "/help"
	CommandHistory Command = "/history"
	CommandClear   Command = "/clear"
	CommandParams  Command = "/params"
	CommandExit    Command = "/exit"
	CommandSave    Command = "/save"
)

// reservedCommands never reach the model.
var reservedCommands = map[Command]bool{
	CommandHelp:    true,
	CommandHistory: true,
	CommandClear:   true,
	CommandParams:  true,
	CommandExit:    true,
}

// IsReservedCommand reports whether message, trimmed and lower-cased, is a
// reserved command token.
func IsReservedCommand(message string) bool {
	return reservedCommands[Command(strings.ToLower(strings.TrimSpace(message)))]
}

// ParseCommand returns the known command for text, if any.
func ParseCommand(text string) (Command, bool) {
	c := Command(strings.ToLower(strings.TrimSpace(text)))
	if reservedCommands[c] || c == CommandSave {
		return c, true
	}
	return "", false
}
