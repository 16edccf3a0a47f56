// Package bus carries dashboard notifications between API instances, so a
// job finished on one instance reaches streams held open on another.
package bus

import (
	"context"

	"github.com/yungbote/illumyn-backend/internal/realtime"
)

type Bus interface {
	// Publish sends msg to every instance, this one included.
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	// StartForwarder hands every received message to onMsg until ctx ends.
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
