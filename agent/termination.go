package agent

import (
	"fmt"
	"strings"
)

// Message is one contribution to a team transcript.
type Message struct {
	Source  string
	Content string
}

// TerminationCondition decides after every team turn whether the
// conversation is over. It returns a stop reason when it is.
type TerminationCondition interface {
	Check(messages []Message) (bool, string)
}

// TerminationFunc adapts a function into a TerminationCondition.
type TerminationFunc func(messages []Message) (bool, string)

// Check implements TerminationCondition.
func (f TerminationFunc) Check(messages []Message) (bool, string) { return f(messages) }

// TextMention stops once the latest message of an agent contains text.
// Messages of the user do not count, so a task that mentions the text does
// not end the conversation before it starts.
func TextMention(text string) TerminationCondition {
	return TerminationFunc(func(messages []Message) (bool, string) {
		if len(messages) == 0 {
			return false, ""
		}

		last := messages[len(messages)-1]
		if last.Source == userSource || !strings.Contains(last.Content, text) {
			return false, ""
		}

		return true, fmt.Sprintf("text %q mentioned by %s", text, last.Source)
	})
}

// MaxMessages stops once the transcript holds n messages, the task included.
func MaxMessages(n int) TerminationCondition {
	return TerminationFunc(func(messages []Message) (bool, string) {
		if n <= 0 || len(messages) < n {
			return false, ""
		}

		return true, fmt.Sprintf("maximum number of messages %d reached", n)
	})
}

// Or stops when any of conds stops.
func Or(conds ...TerminationCondition) TerminationCondition {
	return TerminationFunc(func(messages []Message) (bool, string) {
		for _, c := range conds {
			if c == nil {
				continue
			}
			if ok, reason := c.Check(messages); ok {
				return true, reason
			}
		}

		return false, ""
	})
}

// And stops when all of conds stop.
func And(conds ...TerminationCondition) TerminationCondition {
	return TerminationFunc(func(messages []Message) (bool, string) {
		reasons := make([]string, 0, len(conds))

		for _, c := range conds {
			if c == nil {
				continue
			}
			ok, reason := c.Check(messages)
			if !ok {
				return false, ""
			}
			reasons = append(reasons, reason)
		}

		if len(reasons) == 0 {
			return false, ""
		}

		return true, strings.Join(reasons, "; ")
	})
}

const userSource = "user"

// renderTranscript formats messages as the input of the next speaker.
func renderTranscript(messages []Message) string {
	var sb strings.Builder

	for i, m := range messages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%s: %s", m.Source, m.Content)
	}

	return sb.String()
}
