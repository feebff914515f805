package notifications

import (
	"maps"
	"slices"
)

// Identity addresses a persisted recipient by model tag and primary key.
type Identity struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

// NotificationIdentity makes an Identity usable as a Recipient. An Identity
// with an empty key is treated as anonymous.
func (i Identity) NotificationIdentity() (Identity, bool) {
	return i, i.Type != "" && i.Key != ""
}

// String returns "type:key".
func (i Identity) String() string {
	return i.Type + ":" + i.Key
}

// Recipient is anything a notification can be sent to. Identified
// recipients return their identity and true; anonymous ones return false.
type Recipient interface {
	NotificationIdentity() (Identity, bool)
}

// Router is implemented by recipients that know their address on a channel,
// such as an email address for "mail" or an URL for "webhook".
type Router interface {
	RouteNotificationFor(channel string) (string, bool)
}

// LocalePreferrer is implemented by recipients with a preferred locale.
type LocalePreferrer interface {
	PreferredLocale() string
}

// IdentityOf returns the identity of r. Nil recipients are anonymous.
func IdentityOf(r Recipient) (Identity, bool) {
	if r == nil {
		return Identity{}, false
	}
	return r.NotificationIdentity()
}

// RouteFor resolves the address of r on channel. Recipients without a
// Router capability have no routes.
func RouteFor(r Recipient, channel string) (string, bool) {
	router, ok := r.(Router)
	if !ok {
		return "", false
	}
	addr, ok := router.RouteNotificationFor(channel)
	if !ok || addr == "" {
		return "", false
	}
	return addr, true
}

// Anonymous is an on-demand recipient holding explicit channel addresses
// and no persisted identity.
type Anonymous struct {
	routes map[string]string
}

// Route creates an anonymous recipient with a single channel address.
func Route(channel, address string) *Anonymous {
	return (&Anonymous{}).Route(channel, address)
}

// Routes creates an anonymous recipient from a channel to address map.
func Routes(routes map[string]string) *Anonymous {
	a := &Anonymous{routes: make(map[string]string, len(routes))}
	maps.Copy(a.routes, routes)
	return a
}

// Route adds or replaces the address for channel and returns a for chaining.
func (a *Anonymous) Route(channel, address string) *Anonymous {
	if a.routes == nil {
		a.routes = make(map[string]string)
	}
	a.routes[channel] = address
	return a
}

// RouteNotificationFor returns the address registered for channel.
func (a *Anonymous) RouteNotificationFor(channel string) (string, bool) {
	addr, ok := a.routes[channel]
	return addr, ok
}

// Channels returns the routed channel names in sorted order.
func (a *Anonymous) Channels() []string {
	return slices.Sorted(maps.Keys(a.routes))
}

// NotificationIdentity always reports an anonymous recipient.
func (a *Anonymous) NotificationIdentity() (Identity, bool) {
	return Identity{}, false
}
