package suppliers

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harborline/supplychain-backend/pkg/db"
	"github.com/harborline/supplychain-backend/pkg/db/models"
	"github.com/harborline/supplychain-backend/pkg/enums"
	pkgerrors "github.com/harborline/supplychain-backend/pkg/errors"
	"github.com/harborline/supplychain-backend/pkg/pagination"
)

var validate = validator.New()

// Service exposes supplier directory operations.
type Service interface {
	Create(ctx context.Context, input CreateSupplierInput) (*models.Supplier, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Supplier, error)
	List(ctx context.Context, input ListSuppliersInput) ([]models.Supplier, error)
	Update(ctx context.Context, id uuid.UUID, patch UpdateSupplierInput) (*models.Supplier, error)
	Delete(ctx context.Context, id uuid.UUID) error
	RecordOrderCompletion(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
}

type service struct {
	repo Repository
}

// CreateSupplierInput holds the validated payload to register a supplier.
type CreateSupplierInput struct {
	Name        string  `validate:"required"`
	Category    string  `validate:"required"`
	ContactName string  `validate:"omitempty"`
	Email       string  `validate:"required,email"`
	Phone       string  `validate:"omitempty"`
	Address     string  `validate:"omitempty"`
	Rating      float64 `validate:"gte=0,lte=5"`
	Notes       *string
}

// UpdateSupplierInput holds optional mutation values for a supplier.
type UpdateSupplierInput struct {
	Name        *string
	Category    *string
	ContactName *string
	Email       *string `validate:"omitempty,email"`
	Phone       *string
	Address     *string
	Status      *enums.SupplierStatus
	Rating      *float64 `validate:"omitempty,gte=0,lte=5"`
	Notes       *string
}

// ListSuppliersInput configures filtering and pagination for listings.
type ListSuppliersInput struct {
	Category  *string
	Status    *enums.SupplierStatus
	MinRating *float64
	Limit     int
	Offset    int
}

// NewService constructs a supplier directory service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("suppliers repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateSupplierInput) (*models.Supplier, error) {
	if err := validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid supplier payload")
	}

	supplier := &models.Supplier{
		Name:        input.Name,
		Category:    input.Category,
		ContactName: input.ContactName,
		Email:       input.Email,
		Phone:       input.Phone,
		Address:     input.Address,
		Status:      enums.SupplierStatusActive,
		Rating:      input.Rating,
		TotalSpent:  decimal.Zero,
		Notes:       input.Notes,
	}

	if err := s.repo.Create(ctx, supplier); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "supplier email already registered")
		}
		return nil, wrapStorage(err, "insert supplier")
	}
	return supplier, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Supplier, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id required")
	}
	supplier, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "supplier not found")
		}
		return nil, wrapStorage(err, "load supplier")
	}
	return supplier, nil
}

func (s *service) List(ctx context.Context, input ListSuppliersInput) ([]models.Supplier, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid supplier status filter")
	}

	rows, err := s.repo.List(ctx, ListFilters{
		Category:  input.Category,
		Status:    input.Status,
		MinRating: input.MinRating,
	}, pagination.Params{Limit: input.Limit, Offset: input.Offset})
	if err != nil {
		return nil, wrapStorage(err, "list suppliers")
	}
	return rows, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, patch UpdateSupplierInput) (*models.Supplier, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id required")
	}
	if err := validate.Struct(patch); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid supplier patch")
	}

	updates := map[string]any{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.Category != nil {
		updates["category"] = *patch.Category
	}
	if patch.ContactName != nil {
		updates["contact_name"] = *patch.ContactName
	}
	if patch.Email != nil {
		updates["email"] = *patch.Email
	}
	if patch.Phone != nil {
		updates["phone"] = *patch.Phone
	}
	if patch.Address != nil {
		updates["address"] = *patch.Address
	}
	if patch.Status != nil {
		if !patch.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid supplier status")
		}
		updates["status"] = *patch.Status
	}
	if patch.Rating != nil {
		updates["rating"] = *patch.Rating
	}
	if patch.Notes != nil {
		updates["notes"] = *patch.Notes
	}
	if len(updates) == 0 {
		return s.Get(ctx, id)
	}

	affected, err := s.repo.Update(ctx, id, updates)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "supplier email already registered")
		}
		return nil, wrapStorage(err, "update supplier")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "supplier not found")
	}
	return s.Get(ctx, id)
}

// Delete removes a supplier. Deletion is refused while any non-terminal
// purchase order still references the supplier; terminal orders keep the
// dangling reference.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "supplier id required")
	}

	open, err := s.repo.CountOpenOrders(ctx, id)
	if err != nil {
		return wrapStorage(err, "count open orders")
	}
	if open > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "supplier has open purchase orders").
			WithDetails(map[string]any{"open_orders": open})
	}

	affected, err := s.repo.Delete(ctx, id)
	if err != nil {
		return wrapStorage(err, "delete supplier")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "supplier not found")
	}
	return nil
}

func (s *service) RecordOrderCompletion(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "supplier id required")
	}
	if amount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "completion amount cannot be negative")
	}

	affected, err := s.repo.RecordOrderCompletion(ctx, id, amount)
	if err != nil {
		return wrapStorage(err, "record order completion")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "supplier not found")
	}
	return nil
}

func wrapStorage(err error, message string) error {
	if db.IsTimeout(err) {
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, err, message)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
