// ABOUTME: Store interface for on-device settings persistence
// ABOUTME: Holds the latest settings snapshot per user plus device-level state

package store

import (
	"context"
	"errors"

	"github.com/sestako/eunio-app-sub019/internal/settings"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Store defines the interface for local settings persistence. Every method
// accepts a context for cancellation.
type Store interface {
	// Settings snapshots, one per user
	SaveSettings(ctx context.Context, agg settings.Aggregate) error
	GetSettings(ctx context.Context, userID string) (settings.Aggregate, error)
	DeleteSettings(ctx context.Context, userID string) error
	ListSettings(ctx context.Context) ([]settings.Aggregate, error)

	// Device state
	SetActiveUser(ctx context.Context, userID string) error
	GetActiveUser(ctx context.Context) (string, error)

	// Close releases any resources held by the store
	Close() error
}

// activeUserKey is the device_state key recording the restored user.
const activeUserKey = "active_user"
