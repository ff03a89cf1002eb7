package updater

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/feral-file/ff-state-reducer/internal/domain"
)

// DefaultParallelism bounds concurrent refreshes of a batch
const DefaultParallelism = 8

// RefreshResult is the outcome of one refresh in a batch
type RefreshResult struct {
	Ref      domain.EntityRef
	Snapshot Snapshot
	Err      error
}

// Service routes refreshes and reads to the runner of each entity kind
type Service struct {
	runners     map[domain.EntityKind]Runner
	parallelism int
}

// NewService creates a service over one runner per kind
func NewService(parallelism int, runners ...Runner) *Service {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	s := &Service{
		runners:     make(map[domain.EntityKind]Runner, len(runners)),
		parallelism: parallelism,
	}
	for _, r := range runners {
		s.runners[r.Kind()] = r
	}
	return s
}

// Kinds returns the kinds served, in the canonical order
func (s *Service) Kinds() []domain.EntityKind {
	var kinds []domain.EntityKind
	for _, k := range domain.EntityKinds {
		if _, ok := s.runners[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Runner returns the runner of a kind
func (s *Service) Runner(kind domain.EntityKind) (Runner, error) {
	r, ok := s.runners[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEntityKind, kind)
	}
	return r, nil
}

// Refresh recomputes one entity
func (s *Service) Refresh(ctx context.Context, ref domain.EntityRef) (Snapshot, error) {
	r, err := s.Runner(ref.Kind)
	if err != nil {
		return Snapshot{}, err
	}
	return r.Refresh(ctx, ref.ID)
}

// Get reads one stored entity
func (s *Service) Get(ctx context.Context, ref domain.EntityRef) (Snapshot, error) {
	r, err := s.Runner(ref.Kind)
	if err != nil {
		return Snapshot{}, err
	}
	return r.Get(ctx, ref.ID)
}

// RefreshMany refreshes entities independently; one failure does not stop the others.
// Results are in the order of refs.
func (s *Service) RefreshMany(ctx context.Context, refs []domain.EntityRef) []RefreshResult {
	results := make([]RefreshResult, len(refs))

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for i, ref := range refs {
		g.Go(func() error {
			snapshot, err := s.Refresh(ctx, ref)
			results[i] = RefreshResult{Ref: ref, Snapshot: snapshot, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
