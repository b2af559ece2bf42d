package search

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/yourorg/property-api/internal/canon"
	"github.com/yourorg/property-api/internal/events"
	"github.com/yourorg/property-api/internal/store"
)

type CoordinateStore interface {
	GetProperty(ctx context.Context, id string) (canon.Document, error)
	UpsertCoordinates(ctx context.Context, propertyID string, loc canon.Location) error
}

// CoordinatePromoter consumes property events and copies any coordinates
// embedded in the payload into the coordinates table, so proximity queries
// see them. Fallback points are never promoted.
type CoordinatePromoter struct {
	Pub   events.Publisher
	Store CoordinateStore
}

func (p *CoordinatePromoter) Run(ctx context.Context) {
	sub := p.Pub.SubscribePropertyUpdated()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-sub:
			if evt.Change == events.Deleted {
				continue
			}
			if _, err := p.Promote(ctx, evt.PropertyID); err != nil {
				log.Warn().Err(err).Str("property_id", evt.PropertyID).Msg("coordinate promotion failed")
			}
		}
	}
}

// Promote reports whether a new location was written.
func (p *CoordinatePromoter) Promote(ctx context.Context, id string) (bool, error) {
	doc, err := p.Store.GetProperty(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return PromoteDocument(ctx, p.Store, doc)
}

// PromoteDocument writes the document's embedded location, ignoring
// coordinates-table points (already stored) and fallback points.
func PromoteDocument(ctx context.Context, st CoordinateStore, doc canon.Document) (bool, error) {
	embedded := doc
	embedded.Coordinates = nil
	loc := canon.ExtractLocation(embedded, canon.DefaultCenter)
	if !loc.Verified() {
		return false, nil
	}
	if row := doc.Coordinates; row != nil && row.Latitude == loc.Latitude && row.Longitude == loc.Longitude {
		return false, nil
	}
	if err := st.UpsertCoordinates(ctx, doc.ID, loc); err != nil {
		return false, err
	}
	log.Debug().Str("property_id", doc.ID).Str("source", string(loc.Source)).Msg("coordinates promoted")
	return true, nil
}
