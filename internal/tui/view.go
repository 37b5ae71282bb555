package tui

import (
	"fmt"

	"github.com/jask/lovenudge/internal/session"
)

// Hint is one key shown in the footer.
type Hint struct {
	Key  string
	Desc string
}

// View describes what the screen shows for a state. It carries no styling.
type View struct {
	Title string
	Lines []string
	// Prompt labels the text input; empty means the step takes no free text.
	Prompt  string
	Presets []string
	Warning string
	Hints   []Hint
}

// ViewInput is the screen-local context Describe needs besides the session state.
type ViewInput struct {
	Presets      []string
	ConfirmReset bool
	Busy         bool
}

// Describe maps a session state to a view. It is pure.
func Describe(st session.State, in ViewInput) View {
	var v View
	switch st.Step {
	case session.AwaitingName:
		v = View{
			Title:  "Who are you?",
			Lines:  []string{"Pick the name your partner will look you up by."},
			Prompt: "Your name",
			Hints:  []Hint{{"enter", "register"}},
		}
	case session.AwaitingPartner:
		v = View{
			Title: fmt.Sprintf("Hi %s", st.UserName),
			Lines: []string{
				"Your token: " + orNone(st.LocalPushToken),
				"Enter the name your partner registered with.",
			},
			Prompt: "Partner name",
			Hints:  []Hint{{"enter", "look up"}},
		}
	default:
		v = View{
			Title: fmt.Sprintf("Hi %s", st.UserName),
			Lines: []string{
				"Your token: " + orNone(st.LocalPushToken),
				"Sending to: " + orNone(st.TargetToken()),
			},
			Prompt:  "Message",
			Presets: append([]string(nil), in.Presets...),
			Hints:   []Hint{{"1-9", "send preset"}, {"enter", "send message"}},
		}
		if st.LastSent != "" {
			v.Lines = append(v.Lines, "Last sent: "+st.LastSent)
		}
	}

	if n := st.Latest; !n.IsZero() {
		v.Lines = append(v.Lines, "", "Latest notification: "+orNone(n.Title))
		if n.Body != "" {
			v.Lines = append(v.Lines, "  "+n.Body)
		}
		if data := n.DataJSON(); data != "" {
			v.Lines = append(v.Lines, "  data: "+data)
		}
	}

	switch {
	case st.SendsToSelf() && st.Step != session.AwaitingName:
		v.Warning = "No partner yet: messages go to your own device."
	case st.TokenChanged:
		v.Warning = "Your push token changed. Register again to update it."
	}

	if in.ConfirmReset {
		v.Prompt = ""
		v.Hints = []Hint{{"y", "confirm reset"}, {"any key", "cancel"}}
		v.Warning = "Forget your name and partner?"
		return v
	}
	if in.Busy {
		v.Hints = []Hint{{"ctrl+c", "quit"}}
		return v
	}
	v.Hints = append(v.Hints, Hint{"ctrl+r", "reset"}, Hint{"esc", "quit"})
	return v
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
