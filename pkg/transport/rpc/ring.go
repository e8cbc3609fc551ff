package rpc

import (
	"errors"
	"log/slog"

	"github.com/danl5/ringelect/pkg/model"
)

// Ring is a whole ring of rpc endpoints hosted by one process.
type Ring struct {
	links   []*Link
	errChan chan error
}

// NewRing starts one endpoint per identity, listening on the matching
// address, and connects every endpoint to its neighbors.
func NewRing(ids []model.Identity, addresses []string, cfg *Config, logger *slog.Logger) (*Ring, error) {
	if len(ids) != len(addresses) {
		return nil, errors.New("one address per process is required")
	}
	r := &Ring{errChan: make(chan error, len(ids))}

	for i, id := range ids {
		link, err := NewLink(id, cfg, r.errChan, logger)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.links = append(r.links, link)
		if err := link.Listen(addresses[i]); err != nil {
			_ = r.Close()
			return nil, err
		}
	}

	// listen addresses may have been port 0, connect with the bound ones
	for _, link := range r.links {
		if err := link.Connect(r.links[link.id.Left].Addr(), r.links[link.id.Right].Addr()); err != nil {
			_ = r.Close()
			return nil, err
		}
	}
	return r, nil
}

// Links returns the ring links indexed by rank.
func (r *Ring) Links() []model.Link {
	links := make([]model.Link, len(r.links))
	for i, l := range r.links {
		links[i] = l
	}
	return links
}

// Errors reports delivery failures of any endpoint.
func (r *Ring) Errors() <-chan error {
	return r.errChan
}

// Close shuts every endpoint down and returns the joined errors.
func (r *Ring) Close() error {
	var errs []error
	for _, l := range r.links {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
