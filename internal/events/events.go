package events

import (
	"context"

	"github.com/rs/zerolog/log"
)

type Change string

const (
	Created Change = "created"
	Updated Change = "updated"
	Deleted Change = "deleted"
)

type PropertyUpdated struct {
	PropertyID string
	Change     Change
}

type Publisher interface {
	PublishPropertyUpdated(ctx context.Context, evt PropertyUpdated)
	SubscribePropertyUpdated() <-chan PropertyUpdated
}

type inMemory struct{ ch chan PropertyUpdated }

func NewInMemory(buffer int) Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &inMemory{ch: make(chan PropertyUpdated, buffer)}
}

// PublishPropertyUpdated never blocks; events are dropped when the buffer is full.
func (m *inMemory) PublishPropertyUpdated(_ context.Context, evt PropertyUpdated) {
	select {
	case m.ch <- evt:
	default:
		log.Warn().Str("property_id", evt.PropertyID).Msg("property event dropped; buffer full")
	}
}

func (m *inMemory) SubscribePropertyUpdated() <-chan PropertyUpdated { return m.ch }
