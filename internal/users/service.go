package users

import (
	"context"
)

// RepositoryPort defines data access methods for accounts.
type RepositoryPort interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	SetFlags(ctx context.Context, id int64, isActive, isVerified, isAvailable bool) error
}

// Service handles account management logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListAccounts returns all accounts.
func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.repo.ListAccounts(ctx)
}

// GetAccount fetches one account.
func (s *Service) GetAccount(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// SetFlags updates account gates.
func (s *Service) SetFlags(ctx context.Context, id int64, isActive, isVerified, isAvailable bool) error {
	return s.repo.SetFlags(ctx, id, isActive, isVerified, isAvailable)
}
