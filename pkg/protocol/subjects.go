package protocol

import "fmt"

// NATS subject constants and helpers.
const (
	// SubjectCommands carries binary-encoded commands to the control loop.
	SubjectCommands = "blucher.commands"

	// SubjectUICommand accepts CommandRequest invocations (request/reply).
	SubjectUICommand = "blucher.ui.command"
)

func SubjectEvents(name string) string {
	return fmt.Sprintf("blucher.events.%s", name)
}
