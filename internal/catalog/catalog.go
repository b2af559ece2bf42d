package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yourorg/property-api/internal/canon"
	"github.com/yourorg/property-api/internal/events"
	"github.com/yourorg/property-api/internal/metrics"
	"github.com/yourorg/property-api/internal/store"
)

var (
	ErrNotFound      = store.ErrNotFound
	ErrInvalid       = errors.New("catalog: invalid input")
	ErrImageNotFound = errors.New("catalog: image not found")
	ErrNoImageStore  = errors.New("catalog: image storage not configured")
)

// Store is the persistence the catalog needs; *store.Store and
// *store.Memory both satisfy it.
type Store interface {
	ListProperties(ctx context.Context, f store.Filter) ([]canon.Document, error)
	GetProperty(ctx context.Context, id string) (canon.Document, error)
	GetProperties(ctx context.Context, ids []string) ([]canon.Document, error)
	InsertProperty(ctx context.Context, in store.PropertyInput) (canon.Document, error)
	UpdateProperty(ctx context.Context, id string, in store.PropertyInput) (canon.Document, error)
	UpdateDetails(ctx context.Context, id string, details map[string]any) error
	DeleteProperty(ctx context.Context, id string) error
	AddFavorite(ctx context.Context, userID, propertyID string) error
	RemoveFavorite(ctx context.Context, userID, propertyID string) error
	ListFavoriteIDs(ctx context.Context, userID string) ([]string, error)
	InsertVisitRequest(ctx context.Context, v store.VisitRequest) (store.VisitRequest, error)
	InsertReport(ctx context.Context, r store.Report) (store.Report, error)
	NearbyProperties(ctx context.Context, lat, lng, radiusKm float64, max int) ([]store.Nearby, error)
	SimilarProperties(ctx context.Context, propertyID string, max int) ([]string, error)
}

type ImageStore interface {
	Enabled() bool
	Upload(ctx context.Context, propertyID, filename, contentType string, body io.Reader) (string, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	PublicURL(propertyID, filename string) string
	KeyFor(url string) (string, bool)
}

// Service reads and writes properties. Reads come back normalized; writes
// publish a PropertyUpdated event.
type Service struct {
	Store  Store
	Pub    events.Publisher
	URLs   canon.URLResolver
	Center canon.Center
}

func (s *Service) options(omitDetails bool) canon.Options {
	return canon.Options{Center: s.Center, URLs: s.URLs, OmitDetails: omitDetails}
}

func (s *Service) normalize(docs []canon.Document, omitDetails bool) []canon.Record {
	recs := canon.NormalizeAll(docs, s.options(omitDetails))
	for _, r := range recs {
		metrics.ObserveNormalized(string(r.CoordSource), string(r.FlowSource), r.Price > 0)
	}
	return recs
}

func (s *Service) publish(ctx context.Context, id string, change events.Change) {
	if s.Pub != nil {
		s.Pub.PublishPropertyUpdated(ctx, events.PropertyUpdated{PropertyID: id, Change: change})
	}
}

type ListQuery struct {
	store.Filter
	Flow canon.Flow
}

// List returns one page of records. A flow filter is applied after
// classification, so a page may hold fewer than Limit records.
func (s *Service) List(ctx context.Context, q ListQuery) ([]canon.Record, error) {
	docs, err := s.Store.ListProperties(ctx, q.Filter)
	if err != nil {
		return nil, err
	}
	recs := s.normalize(docs, true)
	if q.Flow == "" {
		return recs, nil
	}
	out := recs[:0]
	for _, r := range recs {
		if r.Flow == q.Flow {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (canon.Record, error) {
	doc, err := s.Store.GetProperty(ctx, id)
	if err != nil {
		return canon.Record{}, err
	}
	return s.normalize([]canon.Document{doc}, false)[0], nil
}

// Input is the write model accepted from clients.
type Input struct {
	OwnerID  string         `json:"owner_id"`
	City     string         `json:"city"`
	State    string         `json:"state"`
	FlowType string         `json:"flow_type"`
	Price    any            `json:"price"`
	Details  map[string]any `json:"property_details"`
}

func (in Input) validate() error {
	if strings.TrimSpace(in.OwnerID) == "" {
		return fmt.Errorf("%w: owner_id required", ErrInvalid)
	}
	if in.FlowType != "" {
		if _, ok := canon.ParseFlow(in.FlowType); !ok {
			return fmt.Errorf("%w: unknown flow_type %q", ErrInvalid, in.FlowType)
		}
	}
	return nil
}

func (in Input) storeInput() store.PropertyInput {
	flow := ""
	if f, ok := canon.ParseFlow(in.FlowType); ok {
		flow = string(f)
	}
	details := in.Details
	if details == nil {
		details = map[string]any{}
	}
	return store.PropertyInput{OwnerID: in.OwnerID, City: strings.TrimSpace(in.City), State: strings.TrimSpace(in.State), FlowType: flow, Price: in.Price, Details: details}
}

func (s *Service) Create(ctx context.Context, in Input) (canon.Record, error) {
	if err := in.validate(); err != nil {
		return canon.Record{}, err
	}
	doc, err := s.Store.InsertProperty(ctx, in.storeInput())
	if err != nil {
		return canon.Record{}, err
	}
	s.publish(ctx, doc.ID, events.Created)
	log.Info().Str("property_id", doc.ID).Msg("property created")
	return s.normalize([]canon.Document{doc}, false)[0], nil
}

func (s *Service) Update(ctx context.Context, id string, in Input) (canon.Record, error) {
	if err := in.validate(); err != nil {
		return canon.Record{}, err
	}
	doc, err := s.Store.UpdateProperty(ctx, id, in.storeInput())
	if err != nil {
		return canon.Record{}, err
	}
	s.publish(ctx, id, events.Updated)
	return s.normalize([]canon.Document{doc}, false)[0], nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.Store.DeleteProperty(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, id, events.Deleted)
	return nil
}

// Nearby returns records around a point, nearest first. Only stored
// coordinates take part; placeholder points never do.
func (s *Service) Nearby(ctx context.Context, lat, lng, radiusKm float64, max int) ([]canon.Record, error) {
	hits, err := s.Store.NearbyProperties(ctx, lat, lng, radiusKm, max)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.PropertyID)
	}
	return s.byIDs(ctx, ids)
}

func (s *Service) Similar(ctx context.Context, id string, max int) ([]canon.Record, error) {
	if _, err := s.Store.GetProperty(ctx, id); err != nil {
		return nil, err
	}
	ids, err := s.Store.SimilarProperties(ctx, id, max)
	if err != nil {
		return nil, err
	}
	return s.byIDs(ctx, ids)
}

func (s *Service) byIDs(ctx context.Context, ids []string) ([]canon.Record, error) {
	docs, err := s.Store.GetProperties(ctx, ids)
	if err != nil {
		return nil, err
	}
	return s.normalize(docs, true), nil
}

func (s *Service) Favorites(ctx context.Context, userID string) ([]canon.Record, error) {
	ids, err := s.Store.ListFavoriteIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.byIDs(ctx, ids)
}

func (s *Service) FavoriteIDs(ctx context.Context, userID string) ([]string, error) {
	return s.Store.ListFavoriteIDs(ctx, userID)
}

func (s *Service) SetFavorite(ctx context.Context, userID, propertyID string, on bool) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(propertyID) == "" {
		return fmt.Errorf("%w: user and property required", ErrInvalid)
	}
	if !on {
		return s.Store.RemoveFavorite(ctx, userID, propertyID)
	}
	if _, err := s.Store.GetProperty(ctx, propertyID); err != nil {
		return err
	}
	return s.Store.AddFavorite(ctx, userID, propertyID)
}

func (s *Service) RequestVisit(ctx context.Context, v store.VisitRequest) (store.VisitRequest, error) {
	if strings.TrimSpace(v.UserID) == "" || (strings.TrimSpace(v.Phone) == "" && strings.TrimSpace(v.Name) == "") {
		return v, fmt.Errorf("%w: user_id and a name or phone required", ErrInvalid)
	}
	if _, err := s.Store.GetProperty(ctx, v.PropertyID); err != nil {
		return v, err
	}
	return s.Store.InsertVisitRequest(ctx, v)
}

func (s *Service) Report(ctx context.Context, r store.Report) (store.Report, error) {
	if strings.TrimSpace(r.UserID) == "" || strings.TrimSpace(r.Reason) == "" {
		return r, fmt.Errorf("%w: user_id and reason required", ErrInvalid)
	}
	if _, err := s.Store.GetProperty(ctx, r.PropertyID); err != nil {
		return r, err
	}
	return s.Store.InsertReport(ctx, r)
}

// Images returns the record's images in display order.
func (s *Service) Images(ctx context.Context, id string) ([]canon.Image, error) {
	doc, err := s.Store.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}
	return canon.ExtractImages(doc, s.URLs), nil
}

// SignedImages is Images with every stored object swapped for a
// time-limited URL. Images hosted elsewhere keep their URL.
func (s *Service) SignedImages(ctx context.Context, images ImageStore, id string, ttl time.Duration) ([]canon.Image, error) {
	if images == nil || !images.Enabled() {
		return nil, ErrNoImageStore
	}
	out, err := s.Images(ctx, id)
	if err != nil {
		return nil, err
	}
	for i, img := range out {
		key, ok := images.KeyFor(img.URL)
		if !ok {
			continue
		}
		signed, err := images.SignedURL(ctx, key, ttl)
		if err != nil {
			return nil, fmt.Errorf("sign %s: %w", key, err)
		}
		out[i].URL = signed
	}
	return out, nil
}

// SetPrimaryImage rewrites the payload so exactly one image is primary.
func (s *Service) SetPrimaryImage(ctx context.Context, id, imageID string) ([]canon.Image, error) {
	doc, err := s.Store.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canon.MarkPrimary(doc.Details, imageID) {
		return nil, ErrImageNotFound
	}
	if err := s.Store.UpdateDetails(ctx, id, doc.Details); err != nil {
		return nil, err
	}
	s.publish(ctx, id, events.Updated)
	return canon.ExtractImages(doc, s.URLs), nil
}

// AddImage uploads a file and appends it to the record's image list.
func (s *Service) AddImage(ctx context.Context, images ImageStore, id, filename, contentType string, body io.Reader) (canon.Image, error) {
	if images == nil || !images.Enabled() {
		return canon.Image{}, ErrNoImageStore
	}
	doc, err := s.Store.GetProperty(ctx, id)
	if err != nil {
		return canon.Image{}, err
	}
	imageID := uuid.NewString()
	name := imageID + strings.ToLower(path.Ext(filename))
	if _, err := images.Upload(ctx, id, name, contentType, body); err != nil {
		return canon.Image{}, err
	}
	details := canon.AppendImage(doc.Details, imageID, images.PublicURL(id, name))
	if err := s.Store.UpdateDetails(ctx, id, details); err != nil {
		return canon.Image{}, err
	}
	s.publish(ctx, id, events.Updated)
	doc.Details = details
	for _, img := range canon.ExtractImages(doc, s.URLs) {
		if img.ID == imageID {
			return img, nil
		}
	}
	return canon.Image{ID: imageID, URL: images.PublicURL(id, name)}, nil
}
