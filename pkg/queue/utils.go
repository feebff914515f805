package queue

import (
	"fmt"
	"strings"
)

// TaskNameOf returns the default task name for a payload value: its type
// name without pointer markers.
func TaskNameOf(v any) string {
	return strings.TrimLeft(fmt.Sprintf("%T", v), "*")
}
