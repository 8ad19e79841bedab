package gate

import "fmt"

// Command is one of the fixed operations the controller understands.
// The value doubles as the URL path segment on both the UI side
// (/comando/<command>) and the device side (/<command>).
type Command string

// Supported commands. The set is closed.
const (
	CommandOpen           Command = "abrir"
	CommandClose          Command = "fechar"
	CommandStop           Command = "parar"
	CommandToggleLight    Command = "ligarLuz"
	CommandRegisterRemote Command = "cadastrarControle"
	CommandLearnRoute     Command = "aprenderTrajeto"
)

// allCommands is kept in UI order.
var allCommands = []Command{
	CommandOpen,
	CommandClose,
	CommandStop,
	CommandToggleLight,
	CommandRegisterRemote,
	CommandLearnRoute,
}

// Commands returns every supported command in UI order.
// The returned slice is a copy and may be modified by the caller.
func Commands() []Command {
	out := make([]Command, len(allCommands))
	copy(out, allCommands)
	return out
}

// ParseCommand converts a name into a Command.
// Matching is exact (case-sensitive), as the device paths are.
func ParseCommand(name string) (Command, error) {
	cmd := Command(name)
	if !cmd.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	return cmd, nil
}

// Valid reports whether c is one of the supported commands.
func (c Command) Valid() bool {
	for _, known := range allCommands {
		if c == known {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (c Command) String() string {
	return string(c)
}
