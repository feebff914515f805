package notifications

import (
	"maps"

	"github.com/a-h/templ"
)

// Level is the severity shown by notification feeds.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Priority orders notifications in feeds.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// Action is a call-to-action attached to a database notification.
type Action struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
	URL   string `json:"url,omitempty"`
	Style string `json:"style,omitempty"` // primary, secondary, danger
	Icon  string `json:"icon,omitempty"`
}

// ToMap returns the action as a map, omitting empty fields except Name.
func (a Action) ToMap() map[string]any {
	m := map[string]any{"name": a.Name}
	for k, v := range map[string]string{"label": a.Label, "url": a.URL, "style": a.Style, "icon": a.Icon} {
		if v != "" {
			m[k] = v
		}
	}
	return m
}

// DatabaseMessage builds the payload stored by the database channel.
type DatabaseMessage struct {
	Title    string
	Message  string
	Level    Level
	Priority Priority
	Actions  []Action
	Data     map[string]any
}

// NewDatabaseMessage starts a message with a title and body.
func NewDatabaseMessage(title, message string) *DatabaseMessage {
	return &DatabaseMessage{Title: title, Message: message, Level: LevelInfo, Priority: PriorityNormal}
}

// WithLevel sets the severity.
func (m *DatabaseMessage) WithLevel(level Level) *DatabaseMessage {
	m.Level = level
	return m
}

// WithPriority sets the priority.
func (m *DatabaseMessage) WithPriority(p Priority) *DatabaseMessage {
	m.Priority = p
	return m
}

// WithAction appends a call-to-action.
func (m *DatabaseMessage) WithAction(a Action) *DatabaseMessage {
	m.Actions = append(m.Actions, a)
	return m
}

// With sets an arbitrary data field.
func (m *DatabaseMessage) With(key string, value any) *DatabaseMessage {
	if m.Data == nil {
		m.Data = make(map[string]any)
	}
	m.Data[key] = value
	return m
}

// ToMap flattens the message into the stored data payload. Custom fields
// never override the structured ones.
func (m *DatabaseMessage) ToMap() map[string]any {
	out := make(map[string]any, len(m.Data)+5)
	maps.Copy(out, m.Data)

	if m.Title != "" {
		out["title"] = m.Title
	}
	if m.Message != "" {
		out["message"] = m.Message
	}
	if m.Level != "" {
		out["level"] = string(m.Level)
	}
	out["priority"] = int(m.Priority)
	if len(m.Actions) > 0 {
		actions := make([]map[string]any, 0, len(m.Actions))
		for _, a := range m.Actions {
			actions = append(actions, a.ToMap())
		}
		out["actions"] = actions
	}
	return out
}

// MailMessage is rendered by notifications for the mail channel.
type MailMessage struct {
	// To overrides the recipient's "mail" route.
	To string
	// Subject is used verbatim unless SubjectKey is set and a translator is
	// configured on the channel.
	Subject     string
	SubjectKey  string
	SubjectArgs []string

	Greeting   string
	Lines      []string
	ActionText string
	ActionURL  string
	OutroLines []string
	Salutation string

	// Template replaces the default line layout for the HTML body.
	Template templ.Component
	// Text is the plain text body. Lines are joined when empty.
	Text string
	Tag  string
}

// Line appends an intro line.
func (m *MailMessage) Line(s string) *MailMessage {
	m.Lines = append(m.Lines, s)
	return m
}

// Action sets the call-to-action button.
func (m *MailMessage) Action(text, url string) *MailMessage {
	m.ActionText, m.ActionURL = text, url
	return m
}

// Outro appends a line after the action button.
func (m *MailMessage) Outro(s string) *MailMessage {
	m.OutroLines = append(m.OutroLines, s)
	return m
}
