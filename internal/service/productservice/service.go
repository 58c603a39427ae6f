package productservice

import (
	"context"
	"fmt"
	"strings"

	"stockdash/internal/domain"
	apperror "stockdash/internal/errors"
	"stockdash/internal/pkg/logger"
)

// ProductRepository is what the service needs from the persistence layer.
type ProductRepository interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, code string) (domain.Product, error)
	Add(ctx context.Context, p domain.Product) error
	UpdateFields(ctx context.Context, code string, updates map[domain.Field]interface{}) error
	Delete(ctx context.Context, code string) error
}

// Service holds the business rules for product administration.
type Service struct {
	repo   ProductRepository
	logger logger.Logger
}

// NewService creates the product service.
func NewService(repo ProductRepository, log logger.Logger) *Service {
	return &Service{repo: repo, logger: log}
}

// GetProducts returns the cached listing.
func (s *Service) GetProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list products", err)
		return nil, err
	}
	s.logger.Debug("products listed", map[string]interface{}{"count": len(products)})
	return products, nil
}

// GetProduct returns one product by code.
func (s *Service) GetProduct(ctx context.Context, code string) (domain.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Product{}, apperror.NewValidationError("product code is required")
	}
	return s.repo.Get(ctx, code)
}

// CreateProduct validates and adds a new product.
func (s *Service) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.Code = strings.TrimSpace(p.Code)
	p.Name = strings.TrimSpace(p.Name)
	if p.Code == "" || p.Name == "" {
		return domain.Product{}, apperror.NewValidationError(domain.MsgFieldsRequired)
	}
	if err := p.Validate(); err != nil {
		return domain.Product{}, apperror.NewValidationError(err.Error())
	}

	if err := s.repo.Add(ctx, p); err != nil {
		if !apperror.IsAlreadyExists(err) {
			s.logger.Error("failed to add product", err)
		}
		return domain.Product{}, err
	}

	s.logger.Info("product added", map[string]interface{}{"code": p.Code, "name": p.Name})
	return p, nil
}

// UpdateProduct applies a partial update given as raw field name/value
// pairs. Values are checked against the field's kind and must not be
// negative.
func (s *Service) UpdateProduct(ctx context.Context, code string, raw map[string]interface{}) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return apperror.NewValidationError("product code is required")
	}
	if len(raw) == 0 {
		return apperror.NewValidationError(domain.MsgNoChanges)
	}

	updates := make(map[domain.Field]interface{}, len(raw))
	for name, v := range raw {
		f, err := domain.ParseField(name)
		if err != nil {
			return apperror.NewValidationError(err.Error())
		}
		if _, isText := v.(string); !isText && f.Kind() == domain.KindText {
			return apperror.NewValidationError(fmt.Sprintf("%s must be text", f))
		}
		cv, err := domain.CoerceInput(f, v)
		if err != nil {
			return apperror.NewValidationError(err.Error())
		}
		updates[f] = cv
	}

	if err := s.repo.UpdateFields(ctx, code, updates); err != nil {
		if !apperror.IsNotFound(err) {
			s.logger.Error(fmt.Sprintf("failed to update product %s", code), err)
		}
		return err
	}

	s.logger.Info("product updated", map[string]interface{}{"code": code, "fields": len(updates)})
	return nil
}

// DeleteProduct removes a product by code.
func (s *Service) DeleteProduct(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return apperror.NewValidationError("product code is required")
	}

	if err := s.repo.Delete(ctx, code); err != nil {
		if !apperror.IsNotFound(err) {
			s.logger.Error(fmt.Sprintf("failed to delete product %s", code), err)
		}
		return err
	}

	s.logger.Info("product deleted", map[string]interface{}{"code": code})
	return nil
}
