package dispute

import "context"

// Reader is the read and lifecycle surface used by the HTTP layer.
type Reader interface {
	Get(ctx context.Context, ownerID, disputeID string) (Detail, error)
	List(ctx context.Context, ownerID string, includeArchived bool) ([]Summary, error)
	SetArchived(ctx context.Context, ownerID, disputeID string, archived bool) (Record, error)
	Delete(ctx context.Context, ownerID, disputeID string) error
}

// Service exposes a user's disputes to the dashboard.
type Service struct {
	repo Reader
}

// NewService wraps repo.
func NewService(repo Reader) *Service {
	return &Service{repo: repo}
}

// List returns the owner's disputes, newest first.
func (s *Service) List(ctx context.Context, ownerID string, includeArchived bool) ([]Summary, error) {
	return s.repo.List(ctx, ownerID, includeArchived)
}

// Get returns one dispute with its proof bundle.
func (s *Service) Get(ctx context.Context, ownerID, disputeID string) (Detail, error) {
	return s.repo.Get(ctx, ownerID, disputeID)
}

// Archive hides a dispute from the default list.
func (s *Service) Archive(ctx context.Context, ownerID, disputeID string) (Record, error) {
	return s.repo.SetArchived(ctx, ownerID, disputeID, true)
}

// Restore brings an archived dispute back.
func (s *Service) Restore(ctx context.Context, ownerID, disputeID string) (Record, error) {
	return s.repo.SetArchived(ctx, ownerID, disputeID, false)
}

// Delete removes a dispute and its bundle.
func (s *Service) Delete(ctx context.Context, ownerID, disputeID string) error {
	return s.repo.Delete(ctx, ownerID, disputeID)
}
