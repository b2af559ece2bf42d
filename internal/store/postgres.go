package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yourorg/property-api/internal/canon"
)

var ErrNotFound = errors.New("store: not found")

type Store struct{ DB *sql.DB }

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{DB: db}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS cube;`,
		`CREATE EXTENSION IF NOT EXISTS earthdistance;`,
		`CREATE TABLE IF NOT EXISTS properties (
            id               TEXT PRIMARY KEY,
            owner_id         TEXT NOT NULL DEFAULT '',
            city             TEXT NOT NULL DEFAULT '',
            state            TEXT NOT NULL DEFAULT '',
            flow_type        TEXT,
            price            JSONB,
            property_details JSONB NOT NULL DEFAULT '{}'::jsonb,
            created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_properties_city ON properties(city);`,
		`CREATE INDEX IF NOT EXISTS idx_properties_owner ON properties(owner_id);`,
		`CREATE INDEX IF NOT EXISTS idx_properties_created ON properties(created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS favorites (
            user_id     TEXT NOT NULL,
            property_id TEXT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
            created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
            PRIMARY KEY (user_id, property_id)
        );`,
		`CREATE TABLE IF NOT EXISTS visit_requests (
            id           TEXT PRIMARY KEY,
            property_id  TEXT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
            user_id      TEXT NOT NULL,
            name         TEXT NOT NULL DEFAULT '',
            phone        TEXT NOT NULL DEFAULT '',
            preferred_at TIMESTAMPTZ,
            message      TEXT NOT NULL DEFAULT '',
            created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE TABLE IF NOT EXISTS property_reports (
            id          TEXT PRIMARY KEY,
            property_id TEXT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
            user_id     TEXT NOT NULL,
            reason      TEXT NOT NULL,
            details     TEXT NOT NULL DEFAULT '',
            created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE TABLE IF NOT EXISTS property_coordinates (
            property_id TEXT PRIMARY KEY REFERENCES properties(id) ON DELETE CASCADE,
            latitude    DOUBLE PRECISION NOT NULL,
            longitude   DOUBLE PRECISION NOT NULL,
            source      TEXT NOT NULL,
            updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_property_coordinates_geo ON property_coordinates USING GIST (ll_to_earth(latitude, longitude));`,
		`CREATE OR REPLACE FUNCTION nearby_properties(p_lat DOUBLE PRECISION, p_lng DOUBLE PRECISION, p_radius_km DOUBLE PRECISION, p_max INT)
        RETURNS TABLE(property_id TEXT, distance_km DOUBLE PRECISION)
        LANGUAGE sql STABLE AS $$
            SELECT c.property_id,
                   earth_distance(ll_to_earth(p_lat, p_lng), ll_to_earth(c.latitude, c.longitude)) / 1000.0 AS distance_km
            FROM property_coordinates c
            WHERE earth_box(ll_to_earth(p_lat, p_lng), p_radius_km * 1000.0) @> ll_to_earth(c.latitude, c.longitude)
              AND earth_distance(ll_to_earth(p_lat, p_lng), ll_to_earth(c.latitude, c.longitude)) <= p_radius_km * 1000.0
            ORDER BY distance_km
            LIMIT p_max
        $$;`,
		`CREATE OR REPLACE FUNCTION similar_properties(p_id TEXT, p_max INT)
        RETURNS TABLE(property_id TEXT, score INT)
        LANGUAGE sql STABLE AS $$
            SELECT o.id,
                   (CASE WHEN lower(o.city) = lower(t.city) THEN 2 ELSE 0 END
                  + CASE WHEN o.flow_type IS NOT DISTINCT FROM t.flow_type THEN 2 ELSE 0 END
                  + CASE WHEN lower(o.state) = lower(t.state) THEN 1 ELSE 0 END
                  + CASE WHEN o.property_details->>'propertyType' = t.property_details->>'propertyType' THEN 1 ELSE 0 END) AS score
            FROM properties t
            JOIN properties o ON o.id <> t.id
            WHERE t.id = p_id
              AND (lower(o.city) = lower(t.city) OR o.flow_type = t.flow_type)
            ORDER BY score DESC, o.created_at DESC
            LIMIT p_max
        $$;`,
	}
	for _, q := range stmts {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Filter narrows ListProperties. Empty fields are ignored.
type Filter struct {
	City    string
	State   string
	OwnerID string
	Q       string
	Offset  int
	Limit   int
}

// PropertyInput is the writable part of a property row.
type PropertyInput struct {
	OwnerID  string
	City     string
	State    string
	FlowType string
	Price    any
	Details  map[string]any
}

const selectDocument = `
    SELECT p.id, p.owner_id, p.city, p.state, COALESCE(p.flow_type, ''), p.price, p.property_details, p.created_at,
           c.latitude, c.longitude, c.source
    FROM properties p
    LEFT JOIN property_coordinates c ON c.property_id = p.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (canon.Document, error) {
	var (
		doc      canon.Document
		price    []byte
		details  []byte
		lat, lng sql.NullFloat64
		source   sql.NullString
	)
	if err := row.Scan(&doc.ID, &doc.OwnerID, &doc.City, &doc.State, &doc.FlowType, &price, &details, &doc.CreatedAt, &lat, &lng, &source); err != nil {
		return doc, err
	}
	if len(price) > 0 {
		var v any
		if err := json.Unmarshal(price, &v); err == nil {
			doc.Price = v
		}
	}
	doc.Details = map[string]any{}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &doc.Details); err != nil || doc.Details == nil {
			doc.Details = map[string]any{}
		}
	}
	if lat.Valid && lng.Valid {
		doc.Coordinates = &canon.CoordinateRow{Latitude: lat.Float64, Longitude: lng.Float64, Source: source.String}
	}
	return doc, nil
}

func collect(rows *sql.Rows) ([]canon.Document, error) {
	defer rows.Close()
	out := []canon.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *Store) ListProperties(ctx context.Context, f Filter) ([]canon.Document, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.City != "" {
		add("lower(p.city) = lower($%d)", f.City)
	}
	if f.State != "" {
		add("lower(p.state) = lower($%d)", f.State)
	}
	if f.OwnerID != "" {
		add("p.owner_id = $%d", f.OwnerID)
	}
	if q := strings.TrimSpace(f.Q); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(`(p.city ILIKE $%d OR p.state ILIKE $%d OR COALESCE(p.property_details->>'title', p.property_details#>>'{meta,title}', '') ILIKE $%d)`, n, n, n))
	}
	query := selectDocument
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY p.created_at DESC, p.id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	return collect(rows)
}

func (s *Store) GetProperty(ctx context.Context, id string) (canon.Document, error) {
	doc, err := scanDocument(s.DB.QueryRowContext(ctx, selectDocument+` WHERE p.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return doc, ErrNotFound
	}
	if err != nil {
		return doc, fmt.Errorf("get property %s: %w", id, err)
	}
	return doc, nil
}

// GetProperties returns the documents for ids, preserving the order of ids
// and skipping ids that no longer exist.
func (s *Store) GetProperties(ctx context.Context, ids []string) ([]canon.Document, error) {
	if len(ids) == 0 {
		return []canon.Document{}, nil
	}
	rows, err := s.DB.QueryContext(ctx, selectDocument+` WHERE p.id = ANY($1::text[])`, ids)
	if err != nil {
		return nil, fmt.Errorf("get properties: %w", err)
	}
	docs, err := collect(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]canon.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	out := make([]canon.Document, 0, len(docs))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func encodeJSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func detailsJSON(d map[string]any) (string, error) {
	if d == nil {
		return "{}", nil
	}
	b, err := json.Marshal(d)
	return string(b), err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *Store) InsertProperty(ctx context.Context, in PropertyInput) (canon.Document, error) {
	price, err := encodeJSON(in.Price)
	if err != nil {
		return canon.Document{}, fmt.Errorf("encode price: %w", err)
	}
	details, err := detailsJSON(in.Details)
	if err != nil {
		return canon.Document{}, fmt.Errorf("encode details: %w", err)
	}
	id := uuid.NewString()
	_, err = s.DB.ExecContext(ctx, `
        INSERT INTO properties (id, owner_id, city, state, flow_type, price, property_details)
        VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		id, in.OwnerID, in.City, in.State, nullIfEmpty(in.FlowType), price, details,
	)
	if err != nil {
		return canon.Document{}, fmt.Errorf("insert property: %w", err)
	}
	return s.GetProperty(ctx, id)
}

func (s *Store) UpdateProperty(ctx context.Context, id string, in PropertyInput) (canon.Document, error) {
	price, err := encodeJSON(in.Price)
	if err != nil {
		return canon.Document{}, fmt.Errorf("encode price: %w", err)
	}
	details, err := detailsJSON(in.Details)
	if err != nil {
		return canon.Document{}, fmt.Errorf("encode details: %w", err)
	}
	res, err := s.DB.ExecContext(ctx, `
        UPDATE properties
        SET owner_id=$2, city=$3, state=$4, flow_type=$5, price=$6, property_details=$7, updated_at=now()
        WHERE id=$1`,
		id, in.OwnerID, in.City, in.State, nullIfEmpty(in.FlowType), price, details,
	)
	if err != nil {
		return canon.Document{}, fmt.Errorf("update property %s: %w", id, err)
	}
	if err := requireRow(res); err != nil {
		return canon.Document{}, err
	}
	return s.GetProperty(ctx, id)
}

// UpdateDetails replaces only the JSON payload, leaving the columns alone.
func (s *Store) UpdateDetails(ctx context.Context, id string, details map[string]any) error {
	b, err := detailsJSON(details)
	if err != nil {
		return fmt.Errorf("encode details: %w", err)
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE properties SET property_details=$2, updated_at=now() WHERE id=$1`, id, b)
	if err != nil {
		return fmt.Errorf("update details %s: %w", id, err)
	}
	return requireRow(res)
}

func (s *Store) DeleteProperty(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM properties WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete property %s: %w", id, err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) AddFavorite(ctx context.Context, userID, propertyID string) error {
	_, err := s.DB.ExecContext(ctx, `
        INSERT INTO favorites (user_id, property_id) VALUES ($1,$2)
        ON CONFLICT (user_id, property_id) DO NOTHING`, userID, propertyID)
	if err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, propertyID string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM favorites WHERE user_id=$1 AND property_id=$2`, userID, propertyID); err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

func (s *Store) ListFavoriteIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT property_id FROM favorites WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type VisitRequest struct {
	ID          string    `json:"id"`
	PropertyID  string    `json:"property_id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	PreferredAt time.Time `json:"preferred_at,omitempty"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Store) InsertVisitRequest(ctx context.Context, v VisitRequest) (VisitRequest, error) {
	v.ID = uuid.NewString()
	var preferred any
	if !v.PreferredAt.IsZero() {
		preferred = v.PreferredAt
	}
	err := s.DB.QueryRowContext(ctx, `
        INSERT INTO visit_requests (id, property_id, user_id, name, phone, preferred_at, message)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING created_at`,
		v.ID, v.PropertyID, v.UserID, v.Name, v.Phone, preferred, v.Message,
	).Scan(&v.CreatedAt)
	if err != nil {
		return v, fmt.Errorf("insert visit request: %w", err)
	}
	return v, nil
}

type Report struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id"`
	UserID     string    `json:"user_id"`
	Reason     string    `json:"reason"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Store) InsertReport(ctx context.Context, r Report) (Report, error) {
	r.ID = uuid.NewString()
	err := s.DB.QueryRowContext(ctx, `
        INSERT INTO property_reports (id, property_id, user_id, reason, details)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING created_at`,
		r.ID, r.PropertyID, r.UserID, r.Reason, r.Details,
	).Scan(&r.CreatedAt)
	if err != nil {
		return r, fmt.Errorf("insert report: %w", err)
	}
	return r, nil
}

// UpsertCoordinates caches a verified location for a property. Fallback
// points must never reach this table.
func (s *Store) UpsertCoordinates(ctx context.Context, propertyID string, loc canon.Location) error {
	if !loc.Verified() {
		return fmt.Errorf("upsert coordinates %s: unverified source %q", propertyID, loc.Source)
	}
	_, err := s.DB.ExecContext(ctx, `
        INSERT INTO property_coordinates (property_id, latitude, longitude, source)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (property_id)
        DO UPDATE SET latitude=EXCLUDED.latitude, longitude=EXCLUDED.longitude, source=EXCLUDED.source, updated_at=now()`,
		propertyID, loc.Latitude, loc.Longitude, string(loc.Source),
	)
	if err != nil {
		return fmt.Errorf("upsert coordinates %s: %w", propertyID, err)
	}
	return nil
}

func (s *Store) GetCoordinates(ctx context.Context, propertyID string) (canon.CoordinateRow, error) {
	var row canon.CoordinateRow
	err := s.DB.QueryRowContext(ctx, `SELECT latitude, longitude, source FROM property_coordinates WHERE property_id=$1`, propertyID).
		Scan(&row.Latitude, &row.Longitude, &row.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return row, ErrNotFound
	}
	if err != nil {
		return row, fmt.Errorf("get coordinates %s: %w", propertyID, err)
	}
	return row, nil
}

type Nearby struct {
	PropertyID string
	DistanceKm float64
}

func (s *Store) NearbyProperties(ctx context.Context, lat, lng, radiusKm float64, max int) ([]Nearby, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT property_id, distance_km FROM nearby_properties($1,$2,$3,$4)`, lat, lng, radiusKm, max)
	if err != nil {
		return nil, fmt.Errorf("nearby properties: %w", err)
	}
	defer rows.Close()
	out := []Nearby{}
	for rows.Next() {
		var n Nearby
		if err := rows.Scan(&n.PropertyID, &n.DistanceKm); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) SimilarProperties(ctx context.Context, propertyID string, max int) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT property_id FROM similar_properties($1,$2)`, propertyID, max)
	if err != nil {
		return nil, fmt.Errorf("similar properties: %w", err)
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
