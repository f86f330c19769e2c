package clients

import (
	"context"
	"fmt"
	"strings"

	"github.com/agencydesk/agencydesk/internal/shared"
)

// RepositoryPort defines data access methods for clients.
type RepositoryPort interface {
	Create(ctx context.Context, orgID string, input ClientInput) (*Client, error)
	Update(ctx context.Context, orgID string, id int64, input ClientInput) (*Client, error)
	GetByID(ctx context.Context, orgID string, id int64) (*Client, error)
	List(ctx context.Context, orgID string, filter ListFilter) ([]Client, int, error)
	ListBillable(ctx context.Context, orgID string) ([]Client, error)
	SetClosed(ctx context.Context, orgID string, id int64, closed bool) error
	SetPaymentStatus(ctx context.Context, orgID string, id int64, status PaymentStatus) error
	SoftDelete(ctx context.Context, orgID string, id int64) error
	Restore(ctx context.Context, orgID string, id int64) error
}

// Service handles client master data.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

func validate(input ClientInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: client name is required", shared.ErrValidation)
	}
	if input.ContractValue < 0 {
		return fmt.Errorf("%w: contract value must not be negative", shared.ErrValidation)
	}
	if input.PaymentDay < 1 || input.PaymentDay > 31 {
		return fmt.Errorf("%w: payment day must be between 1 and 31", shared.ErrValidation)
	}
	if input.ContractStart != nil && input.ContractEnd != nil && input.ContractEnd.Before(*input.ContractStart) {
		return fmt.Errorf("%w: contract end precedes contract start", shared.ErrValidation)
	}
	if input.IsInstallment {
		if input.InstallmentCount < 1 {
			return fmt.Errorf("%w: installment count must be at least 1", shared.ErrValidation)
		}
		if len(input.InstallmentPaymentDays) == 0 {
			return fmt.Errorf("%w: installment plan needs at least one payment day", shared.ErrValidation)
		}
		for _, day := range input.InstallmentPaymentDays {
			if day < 1 || day > 31 {
				return fmt.Errorf("%w: installment payment day must be between 1 and 31", shared.ErrValidation)
			}
		}
	}
	return nil
}

// Create registers a new client.
func (s *Service) Create(ctx context.Context, orgID string, input ClientInput) (*Client, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, orgID, input)
}

// Update mutates contract fields of an existing client.
func (s *Service) Update(ctx context.Context, orgID string, id int64, input ClientInput) (*Client, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, orgID, id, input)
}

// GetByID returns one client.
func (s *Service) GetByID(ctx context.Context, orgID string, id int64) (*Client, error) {
	return s.repo.GetByID(ctx, orgID, id)
}

// List returns clients matching the filter with pagination metadata.
func (s *Service) List(ctx context.Context, orgID string, filter ListFilter) ([]Client, shared.Pagination, error) {
	items, total, err := s.repo.List(ctx, orgID, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Close marks a client's engagement as ended; automation skips closed clients.
func (s *Service) Close(ctx context.Context, orgID string, id int64) error {
	return s.repo.SetClosed(ctx, orgID, id, true)
}

// Reopen reverts Close.
func (s *Service) Reopen(ctx context.Context, orgID string, id int64) error {
	return s.repo.SetClosed(ctx, orgID, id, false)
}

// SoftDelete hides a client from default reads.
func (s *Service) SoftDelete(ctx context.Context, orgID string, id int64) error {
	return s.repo.SoftDelete(ctx, orgID, id)
}

// Restore reverts a soft delete.
func (s *Service) Restore(ctx context.Context, orgID string, id int64) error {
	return s.repo.Restore(ctx, orgID, id)
}

// ListBillable returns open clients with a positive contract value.
func (s *Service) ListBillable(ctx context.Context, orgID string) ([]Client, error) {
	return s.repo.ListBillable(ctx, orgID)
}

// SetPaymentStatus updates the derived payment status.
func (s *Service) SetPaymentStatus(ctx context.Context, orgID string, id int64, status PaymentStatus) error {
	return s.repo.SetPaymentStatus(ctx, orgID, id, status)
}
