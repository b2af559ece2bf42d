package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/property-api/internal/canon"
)

// Memory is an in-process store with the same behaviour as Store. Payloads
// are stored as JSON so readers see the same shapes Postgres returns.
type Memory struct {
	mu        sync.RWMutex
	props     map[string]memRow
	favorites map[string]map[string]time.Time
	coords    map[string]canon.CoordinateRow
	visits    []VisitRequest
	reports   []Report
	now       func() time.Time
}

type memRow struct {
	id, ownerID, city, state, flowType string
	price, details                     []byte
	createdAt                          time.Time
}

func NewMemory() *Memory {
	return &Memory{
		props:     map[string]memRow{},
		favorites: map[string]map[string]time.Time{},
		coords:    map[string]canon.CoordinateRow{},
		now:       time.Now,
	}
}

func (m *Memory) tick() time.Time {
	// strictly increasing so created_at ordering is stable
	t := m.now().UTC()
	for _, r := range m.props {
		if !t.After(r.createdAt) {
			t = r.createdAt.Add(time.Microsecond)
		}
	}
	return t
}

func (m *Memory) toDocument(r memRow) canon.Document {
	doc := canon.Document{ID: r.id, OwnerID: r.ownerID, City: r.city, State: r.state, FlowType: r.flowType, CreatedAt: r.createdAt, Details: map[string]any{}}
	if len(r.price) > 0 {
		var v any
		if json.Unmarshal(r.price, &v) == nil {
			doc.Price = v
		}
	}
	if err := json.Unmarshal(r.details, &doc.Details); err != nil || doc.Details == nil {
		doc.Details = map[string]any{}
	}
	if c, ok := m.coords[r.id]; ok {
		c := c
		doc.Coordinates = &c
	}
	return doc
}

func encodeRow(r *memRow, in PropertyInput) error {
	r.ownerID, r.city, r.state, r.flowType = in.OwnerID, in.City, in.State, in.FlowType
	r.price = nil
	if in.Price != nil {
		b, err := json.Marshal(in.Price)
		if err != nil {
			return fmt.Errorf("encode price: %w", err)
		}
		r.price = b
	}
	d, err := detailsJSON(in.Details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	r.details = []byte(d)
	return nil
}

func (m *Memory) ListProperties(_ context.Context, f Filter) ([]canon.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(f.Q))
	rows := make([]memRow, 0, len(m.props))
	for _, r := range m.props {
		if f.City != "" && !strings.EqualFold(r.city, f.City) {
			continue
		}
		if f.State != "" && !strings.EqualFold(r.state, f.State) {
			continue
		}
		if f.OwnerID != "" && r.ownerID != f.OwnerID {
			continue
		}
		if q != "" && !m.matchesQ(r, q) {
			continue
		}
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].createdAt.Equal(rows[j].createdAt) {
			return rows[i].createdAt.After(rows[j].createdAt)
		}
		return rows[i].id < rows[j].id
	})
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	out := []canon.Document{}
	for i := offset; i < len(rows) && len(out) < limit; i++ {
		out = append(out, m.toDocument(rows[i]))
	}
	return out, nil
}

func (m *Memory) matchesQ(r memRow, q string) bool {
	if strings.Contains(strings.ToLower(r.city), q) || strings.Contains(strings.ToLower(r.state), q) {
		return true
	}
	var d map[string]any
	_ = json.Unmarshal(r.details, &d)
	title := canon.LookupString(d, "title")
	if title == "" {
		title = canon.LookupString(d, "meta.title")
	}
	return strings.Contains(strings.ToLower(title), q)
}

func (m *Memory) GetProperty(_ context.Context, id string) (canon.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.props[id]
	if !ok {
		return canon.Document{}, ErrNotFound
	}
	return m.toDocument(r), nil
}

func (m *Memory) GetProperties(_ context.Context, ids []string) ([]canon.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]canon.Document, 0, len(ids))
	for _, id := range ids {
		if r, ok := m.props[id]; ok {
			out = append(out, m.toDocument(r))
		}
	}
	return out, nil
}

func (m *Memory) InsertProperty(_ context.Context, in PropertyInput) (canon.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := memRow{id: uuid.NewString(), createdAt: m.tick()}
	if err := encodeRow(&r, in); err != nil {
		return canon.Document{}, err
	}
	m.props[r.id] = r
	return m.toDocument(r), nil
}

func (m *Memory) UpdateProperty(_ context.Context, id string, in PropertyInput) (canon.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.props[id]
	if !ok {
		return canon.Document{}, ErrNotFound
	}
	if err := encodeRow(&r, in); err != nil {
		return canon.Document{}, err
	}
	m.props[id] = r
	return m.toDocument(r), nil
}

func (m *Memory) UpdateDetails(_ context.Context, id string, details map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.props[id]
	if !ok {
		return ErrNotFound
	}
	d, err := detailsJSON(details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	r.details = []byte(d)
	m.props[id] = r
	return nil
}

func (m *Memory) DeleteProperty(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.props[id]; !ok {
		return ErrNotFound
	}
	delete(m.props, id)
	delete(m.coords, id)
	for _, favs := range m.favorites {
		delete(favs, id)
	}
	return nil
}

func (m *Memory) AddFavorite(_ context.Context, userID, propertyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.props[propertyID]; !ok {
		return fmt.Errorf("add favorite: %w", ErrNotFound)
	}
	favs := m.favorites[userID]
	if favs == nil {
		favs = map[string]time.Time{}
		m.favorites[userID] = favs
	}
	if _, ok := favs[propertyID]; !ok {
		favs[propertyID] = m.now()
	}
	return nil
}

func (m *Memory) RemoveFavorite(_ context.Context, userID, propertyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.favorites[userID], propertyID)
	return nil
}

func (m *Memory) ListFavoriteIDs(_ context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	favs := m.favorites[userID]
	ids := make([]string, 0, len(favs))
	for id := range favs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if !favs[ids[i]].Equal(favs[ids[j]]) {
			return favs[ids[i]].After(favs[ids[j]])
		}
		return ids[i] < ids[j]
	})
	return ids, nil
}

func (m *Memory) InsertVisitRequest(_ context.Context, v VisitRequest) (VisitRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.props[v.PropertyID]; !ok {
		return v, fmt.Errorf("insert visit request: %w", ErrNotFound)
	}
	v.ID, v.CreatedAt = uuid.NewString(), m.now()
	m.visits = append(m.visits, v)
	return v, nil
}

func (m *Memory) InsertReport(_ context.Context, r Report) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.props[r.PropertyID]; !ok {
		return r, fmt.Errorf("insert report: %w", ErrNotFound)
	}
	r.ID, r.CreatedAt = uuid.NewString(), m.now()
	m.reports = append(m.reports, r)
	return r, nil
}

func (m *Memory) UpsertCoordinates(_ context.Context, propertyID string, loc canon.Location) error {
	if !loc.Verified() {
		return fmt.Errorf("upsert coordinates %s: unverified source %q", propertyID, loc.Source)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.props[propertyID]; !ok {
		return fmt.Errorf("upsert coordinates %s: %w", propertyID, ErrNotFound)
	}
	m.coords[propertyID] = canon.CoordinateRow{Latitude: loc.Latitude, Longitude: loc.Longitude, Source: string(loc.Source)}
	return nil
}

func (m *Memory) GetCoordinates(_ context.Context, propertyID string) (canon.CoordinateRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.coords[propertyID]
	if !ok {
		return c, ErrNotFound
	}
	return c, nil
}

func (m *Memory) NearbyProperties(_ context.Context, lat, lng, radiusKm float64, max int) ([]Nearby, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	origin := canon.Location{Latitude: lat, Longitude: lng, Source: canon.CoordsFromDocument}
	out := []Nearby{}
	for id, c := range m.coords {
		d, ok := canon.HaversineKm(origin, canon.Location{Latitude: c.Latitude, Longitude: c.Longitude, Source: canon.CoordsFromTable})
		if ok && d <= radiusKm {
			out = append(out, Nearby{PropertyID: id, DistanceKm: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (m *Memory) SimilarProperties(_ context.Context, propertyID string, max int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.props[propertyID]
	if !ok {
		return []string{}, nil
	}
	propType := func(r memRow) string {
		var d map[string]any
		_ = json.Unmarshal(r.details, &d)
		return canon.LookupString(d, "propertyType")
	}
	type scored struct {
		row   memRow
		score int
	}
	var cands []scored
	for id, o := range m.props {
		if id == propertyID {
			continue
		}
		sameCity := strings.EqualFold(o.city, t.city)
		if !sameCity && (o.flowType == "" || o.flowType != t.flowType) {
			continue
		}
		s := 0
		if sameCity {
			s += 2
		}
		if o.flowType == t.flowType {
			s += 2
		}
		if strings.EqualFold(o.state, t.state) {
			s++
		}
		if pt := propType(t); pt != "" && pt == propType(o) {
			s++
		}
		cands = append(cands, scored{o, s})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].row.createdAt.After(cands[j].row.createdAt)
	})
	ids := []string{}
	for _, c := range cands {
		if max > 0 && len(ids) >= max {
			break
		}
		ids = append(ids, c.row.id)
	}
	return ids, nil
}
