package realtime

import (
	"github.com/google/uuid"

	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

const outboundBuffer = 32

// SSEClient is one open dashboard stream. Only the hub touches channels.
type SSEClient struct {
	ID          uuid.UUID
	RequesterID string
	Outbound    chan SSEMessage

	channels map[string]struct{}
	done     chan struct{}
	log      *logger.Logger
}

func (hub *SSEHub) NewSSEClient(requesterID string) *SSEClient {
	id := uuid.New()
	return &SSEClient{
		ID:          id,
		RequesterID: requesterID,
		Outbound:    make(chan SSEMessage, outboundBuffer),
		channels:    map[string]struct{}{},
		done:        make(chan struct{}),
		log:         hub.logger.With("client_id", id, "requester_id", requesterID),
	}
}

// Listening reports whether the client is subscribed to channel.
func (hub *SSEHub) Listening(client *SSEClient, channel string) bool {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	_, ok := client.channels[channel]
	return ok
}
