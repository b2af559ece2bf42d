package client

import (
	"context"
	"errors"
	"sync"

	"github.com/yourorg/property-api/internal/canon"
)

// ErrSuperseded is returned by Search when a newer search started before this
// one finished. Its result is dropped.
var ErrSuperseded = errors.New("client: search superseded")

type Lister interface {
	List(ctx context.Context, p ListParams) ([]canon.Record, error)
}

// Searcher serializes a stream of searches so only the latest one's result
// is ever returned. Each Search takes a new generation and cancels the one
// before it.
type Searcher struct {
	API Lister

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

func NewSearcher(api Lister) *Searcher { return &Searcher{API: api} }

func (s *Searcher) Search(ctx context.Context, p ListParams) ([]canon.Record, error) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	cctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	recs, err := s.API.List(cctx, p)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		cancel()
		return nil, ErrSuperseded
	}
	s.cancel = nil
	cancel()
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// Generation is the number of searches started so far.
func (s *Searcher) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}
