package channels

import (
	"context"
	"errors"

	"github.com/mr1hm/go-alert-notify/internal/models"
)

// Message is the channel-agnostic payload produced by the formatter. Handlers
// apply their own length truncation; the structured Alert rides along for
// channels that send a machine-readable envelope.
type Message struct {
	Subject      string
	Body         string
	Alert        *models.Alert
	SubscriberID string
}

// Handler delivers one formatted message to one destination address. Send
// makes exactly one attempt and never panics; every failure mode is an error
// return. Retry policy belongs to a layer above the handler.
type Handler interface {
	Name() string
	Enabled() bool
	Send(ctx context.Context, destination string, msg Message) error
}

// ErrDisabled is returned by handlers whose channel is not configured.
var ErrDisabled = errors.New("channel disabled")
