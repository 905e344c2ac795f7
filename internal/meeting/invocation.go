package meeting

import "github.com/jw6ventures/powerchat/internal/ics"

// Invocation is one observation of a tool call reported by the assistant
// runtime. The same ID is reported repeatedly as the call progresses.
type Invocation struct {
	ID     string                `json:"id"`
	Status InvocationStatus      `json:"status"`
	Args   ics.MeetingParameters `json:"args"`
}
