// Package realtime subscribes to the push channels the backend updates while
// the agent works: the current step label, the running/idle status and the
// outputs map, all under a per-user namespace.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrClosed is returned when subscribing through a closed store or scope.
var ErrClosed = errors.New("realtime: closed")

// Snapshot is the value at a path. Exists is false when the path is empty
// or was deleted.
type Snapshot struct {
	Path   string
	Data   json.RawMessage
	Exists bool
}

// Decode unmarshals the snapshot into v. A missing value leaves v untouched.
func (s Snapshot) Decode(v any) error {
	if !s.Exists || len(s.Data) == 0 || string(s.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(s.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", s.Path, err)
	}
	return nil
}

// String returns the value as a string, or "" when it is not one.
func (s Snapshot) String() string {
	var out string
	if err := s.Decode(&out); err != nil {
		return ""
	}
	return out
}

// Handler receives every value delivered on a path, starting with the
// current one.
type Handler func(Snapshot)

// Subscription is a live listener. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// Store is a realtime backend.
type Store interface {
	Subscribe(ctx context.Context, path string, fn Handler) (Subscription, error)
	Close() error
}

// Writer stores values. The memory and NATS drivers implement it.
type Writer interface {
	Set(ctx context.Context, path string, value any) error
}

// Channel names under a user's namespace.
const (
	ChannelCurrentStep = "current_step"
	ChannelStatus      = "status"
	ChannelOutputs     = "Outputs"
	ChannelSteps       = "steps"
)

// StatusIdle is the status value written when the agent stops working.
const StatusIdle = "idle"

// UserPath returns users/{uid}/{channel}.
func UserPath(uid, channel string) string {
	return "users/" + uid + "/" + channel
}

func cleanPath(p string) string {
	return strings.Trim(p, "/")
}

type subscriptionFunc func()

func (f subscriptionFunc) Unsubscribe() { f() }
