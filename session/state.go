// Package session holds the client-side state of a UI editing session: the
// chat transcript, the current plan and code, and the undo/redo history of
// accepted results. It also knows how to persist that state to a key/value
// store and how to fold pipeline events into it.
//
// State has no internal locking. Callers that share a State between
// goroutines must serialise access themselves.
package session

import (
	"github.com/ryzeai/ryze/plan"
)

// Role is the author of a chat message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat transcript line.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Greeting is the first assistant message of a new session.
const Greeting = "Hello! I'm Ryze-AI. Describe the UI you want to build, and I'll generate it for you using our deterministic component system."

// PlaceholderCode is the code shown before anything has been generated.
const PlaceholderCode = `// Your generated code will appear here
function App() {
  return (
    <div className="flex h-full items-center justify-center p-10 text-center text-muted-foreground">
      Waiting for your command...
    </div>
  )
}`

// State is the full client-side session.
type State struct {
	Messages    []Message
	CurrentPlan *plan.Plan
	CurrentCode string
	History     *History
}

// New returns a fresh session with the greeting message and placeholder code.
func New() *State {
	return &State{
		Messages:    []Message{{Role: RoleAssistant, Content: Greeting}},
		CurrentCode: PlaceholderCode,
		History:     NewHistory(),
	}
}

// Undo steps the history back and shows the entry now under the cursor. The
// transcript is left untouched. It reports whether anything changed.
func (s *State) Undo() bool {
	e, ok := s.History.Undo()
	if ok {
		s.show(e)
	}
	return ok
}

// Redo steps the history forward. It reports whether anything changed.
func (s *State) Redo() bool {
	e, ok := s.History.Redo()
	if ok {
		s.show(e)
	}
	return ok
}

func (s *State) show(e Entry) {
	s.CurrentCode = e.Code
	s.CurrentPlan = e.Plan
}

// LastMessage returns the most recent transcript message.
func (s *State) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}
