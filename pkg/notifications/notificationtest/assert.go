package notificationtest

import (
	"fmt"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

// AssertSent asserts that at least one notification of type typ was sent.
func (s *Sender) AssertSent(t assert.TestingT, typ string, msgAndArgs ...any) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	if len(s.ByType(typ)) > 0 {
		return true
	}
	return assert.Fail(t, fmt.Sprintf("expected %q to be sent, sent types: %v", typ, s.types()), msgAndArgs...)
}

// AssertNotSent asserts that no notification of type typ was sent.
func (s *Sender) AssertNotSent(t assert.TestingT, typ string, msgAndArgs ...any) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	if n := len(s.ByType(typ)); n > 0 {
		return assert.Fail(t, fmt.Sprintf("expected %q not to be sent, sent %d time(s)", typ, n), msgAndArgs...)
	}
	return true
}

// AssertCount asserts the total number of recorded notifications.
func (s *Sender) AssertCount(t assert.TestingT, want int, msgAndArgs ...any) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	return assert.Equal(t, want, s.Count(), msgAndArgs...)
}

// AssertNothingSent asserts that nothing was recorded.
func (s *Sender) AssertNothingSent(t assert.TestingT, msgAndArgs ...any) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	if n := s.Count(); n > 0 {
		return assert.Fail(t, fmt.Sprintf("expected no notifications, got %d: %v", n, s.types()), msgAndArgs...)
	}
	return true
}

// AssertSentTo asserts that r received a notification of type typ.
func (s *Sender) AssertSentTo(t assert.TestingT, r notifications.Recipient, typ string, msgAndArgs ...any) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	if len(s.For(r, typ)) > 0 {
		return true
	}
	return assert.Fail(t, fmt.Sprintf("expected %q to be sent to %s", typ, describe(r)), msgAndArgs...)
}

// AssertNotSentTo asserts that r received no notification of type typ.
func (s *Sender) AssertNotSentTo(t assert.TestingT, r notifications.Recipient, typ string, msgAndArgs ...any) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	if n := len(s.For(r, typ)); n > 0 {
		return assert.Fail(t, fmt.Sprintf("expected %q not to be sent to %s, sent %d time(s)", typ, describe(r), n), msgAndArgs...)
	}
	return true
}

// AssertSentToChannel asserts that a notification of type typ was routed to
// channel.
func (s *Sender) AssertSentToChannel(t assert.TestingT, channel, typ string, msgAndArgs ...any) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	for _, e := range s.ByChannel(channel) {
		if e.Type == typ {
			return true
		}
	}
	return assert.Fail(t, fmt.Sprintf("expected %q to be sent via %q", typ, channel), msgAndArgs...)
}

// AssertOnDemandSent asserts that an anonymous recipient received a
// notification of type typ.
func (s *Sender) AssertOnDemandSent(t assert.TestingT, typ string, msgAndArgs ...any) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	for _, e := range s.OnDemand() {
		if e.Type == typ {
			return true
		}
	}
	return assert.Fail(t, fmt.Sprintf("expected %q to be sent on demand", typ), msgAndArgs...)
}

// AssertSentTimes asserts how many times type typ was sent, counting each
// recipient once.
func (s *Sender) AssertSentTimes(t assert.TestingT, typ string, want int, msgAndArgs ...any) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	return assert.Len(t, s.ByType(typ), want, msgAndArgs...)
}

// AssertSentToTimes asserts how many times r received type typ.
func (s *Sender) AssertSentToTimes(t assert.TestingT, r notifications.Recipient, typ string, want int, msgAndArgs ...any) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	return assert.Len(t, s.For(r, typ), want, msgAndArgs...)
}

// AssertDataContains asserts that some notification of type typ rendered a
// database payload with key set to want.
func (s *Sender) AssertDataContains(t assert.TestingT, typ, key string, want any, msgAndArgs ...any) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	var seen []any
	for _, e := range s.ByType(typ) {
		got, ok := e.Data[key]
		if !ok {
			continue
		}
		if assert.ObjectsAreEqual(want, got) {
			return true
		}
		seen = append(seen, got)
	}
	return assert.Fail(t, fmt.Sprintf("expected %q data %q to be %#v, seen %#v", typ, key, want, seen), msgAndArgs...)
}

func (s *Sender) types() []string {
	var out []string
	for _, e := range s.Notifications() {
		out = append(out, e.Type)
	}
	return out
}

func describe(r notifications.Recipient) string {
	if id, ok := notifications.IdentityOf(r); ok {
		return id.String()
	}
	return fmt.Sprintf("anonymous %T", r)
}
