package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Button is a call-to-action link.
type Button struct {
	Text string
	URL  string
}

// SimpleMessage is a plain transactional layout: greeting, intro lines, an
// optional button and outro lines.
type SimpleMessage struct {
	Greeting   string
	IntroLines []string
	Action     *Button
	OutroLines []string
	Salutation string
}

// Simple returns a component rendering msg with every value HTML-escaped.
func Simple(msg SimpleMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		bw := &errWriter{w: w}
		bw.write(`<!DOCTYPE html><html><body style="font-family:Arial,sans-serif;color:#1f2937;">`)
		if msg.Greeting != "" {
			bw.write(`<h1 style="font-size:20px;">` + templ.EscapeString(msg.Greeting) + `</h1>`)
		}
		for _, line := range msg.IntroLines {
			bw.write(`<p>` + templ.EscapeString(line) + `</p>`)
		}
		if msg.Action != nil && msg.Action.URL != "" {
			bw.write(`<p><a href="` + templ.EscapeString(string(templ.URL(msg.Action.URL))) +
				`" style="background:#2563eb;color:#ffffff;padding:10px 16px;border-radius:4px;text-decoration:none;">` +
				templ.EscapeString(msg.Action.Text) + `</a></p>`)
		}
		for _, line := range msg.OutroLines {
			bw.write(`<p>` + templ.EscapeString(line) + `</p>`)
		}
		if msg.Salutation != "" {
			bw.write(`<p>` + templ.EscapeString(msg.Salutation) + `</p>`)
		}
		bw.write(`</body></html>`)
		return bw.err
	})
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) write(s string) {
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, s)
}
