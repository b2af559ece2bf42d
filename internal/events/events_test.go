package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryDropsWhenFull(t *testing.T) {
	pub := NewInMemory(1)
	pub.PublishPropertyUpdated(context.Background(), PropertyUpdated{PropertyID: "a", Change: Created})
	pub.PublishPropertyUpdated(context.Background(), PropertyUpdated{PropertyID: "b", Change: Updated})

	got := <-pub.SubscribePropertyUpdated()
	assert.Equal(t, "a", got.PropertyID)
	select {
	case extra := <-pub.SubscribePropertyUpdated():
		t.Fatalf("unexpected event %v", extra)
	default:
	}
}
