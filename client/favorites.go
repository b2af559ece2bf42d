package client

import (
	"context"
	"sort"
	"sync"
)

// FavoriteAPI is the backend side of a favorites set.
type FavoriteAPI interface {
	FavoriteIDs(ctx context.Context, userID string) ([]string, error)
	SetFavorite(ctx context.Context, userID, propertyID string, on bool) error
}

// Favorites is one user's favorite set. Toggle updates the local set before
// the backend answers and restores it if the call fails.
type Favorites struct {
	API    FavoriteAPI
	UserID string

	mu  sync.Mutex
	ids map[string]struct{}
	// per-id toggle sequence; only the latest toggle may roll back
	pending map[string]int
}

func NewFavorites(api FavoriteAPI, userID string) *Favorites {
	return &Favorites{API: api, UserID: userID, ids: map[string]struct{}{}, pending: map[string]int{}}
}

// Load replaces the local set with the backend's.
func (f *Favorites) Load(ctx context.Context) error {
	ids, err := f.API.FavoriteIDs(ctx, f.UserID)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		f.ids[id] = struct{}{}
	}
	return nil
}

func (f *Favorites) Has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.ids[id]
	return ok
}

// IDs returns the set sorted.
func (f *Favorites) IDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.ids))
	for id := range f.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Toggle flips id and returns the new state. On a backend error the flip is
// undone, unless a later toggle of the same id has already superseded it.
func (f *Favorites) Toggle(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	_, was := f.ids[id]
	f.set(id, !was)
	f.pending[id]++
	seq := f.pending[id]
	f.mu.Unlock()

	err := f.API.SetFavorite(ctx, f.UserID, id, !was)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending[id] == seq {
		delete(f.pending, id)
		if err != nil {
			f.set(id, was)
		}
	}
	if err != nil {
		return was, err
	}
	return !was, nil
}

// Set forces the state of id, with the same rollback rule as Toggle.
func (f *Favorites) Set(ctx context.Context, id string, on bool) error {
	if f.Has(id) == on {
		return nil
	}
	_, err := f.Toggle(ctx, id)
	return err
}

func (f *Favorites) set(id string, on bool) {
	if on {
		f.ids[id] = struct{}{}
		return
	}
	delete(f.ids, id)
}
