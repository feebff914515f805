package broadcast

import "errors"

// ErrBroadcasterClosed is returned when publishing to a closed broadcaster.
var ErrBroadcasterClosed = errors.New("broadcast: broadcaster is closed")
