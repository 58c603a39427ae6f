package product

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"stockdash/internal/api/response"
	"stockdash/internal/domain"
	apperror "stockdash/internal/errors"
	"stockdash/internal/pkg/logger"
	"stockdash/internal/pkg/middleware"
)

// ProductService is what the handler needs from the service layer.
type ProductService interface {
	GetProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, code string) (domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	UpdateProduct(ctx context.Context, code string, raw map[string]interface{}) error
	DeleteProduct(ctx context.Context, code string) error
}

// Handler serves the product routes.
type Handler struct {
	Service ProductService
	Logger  logger.Logger
}

// NewHandler creates the product handler.
func NewHandler(svc ProductService, log logger.Logger) *Handler {
	return &Handler{Service: svc, Logger: log}
}

// ListResponse is the body of GET /v1/products.
type ListResponse struct {
	Items  []domain.Product `json:"items"`
	Notice *domain.Notice   `json:"notice,omitempty"`
}

// ProductResponse carries a product and the notice shown to the user.
type ProductResponse struct {
	Product *domain.Product `json:"product,omitempty"`
	Notice  domain.Notice   `json:"notice"`
}

// ListProductsHandler handles GET /v1/products.
// @Summary List products
// @Description Returns every product. The listing is cached until the next write.
// @Tags products
// @Produce json
// @Success 200 {object} ListResponse
// @Failure 502 {object} domain.ErrorResponse
// @Router /v1/products [get]
func (h *Handler) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := h.Service.GetProducts(r.Context())
	if err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	resp := ListResponse{Items: products}
	if len(products) == 0 {
		resp.Notice = &domain.Notice{Level: domain.NoticeInfo, Message: domain.MsgNoProducts}
	}
	response.Handle(w, r, h.Logger, resp, nil, http.StatusOK)
}

// GetProductHandler handles GET /v1/products/{code}.
// @Summary Get a product
// @Tags products
// @Produce json
// @Param code path string true "Product code"
// @Success 200 {object} domain.Product
// @Failure 404 {object} domain.ErrorResponse
// @Router /v1/products/{code} [get]
func (h *Handler) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.GetProduct(r.Context(), mux.Vars(r)["code"])
	response.Handle(w, r, h.Logger, p, err, http.StatusOK)
}

// CreateProductHandler handles POST /v1/products.
// @Summary Add a product
// @Description Code and name are required; numeric fields must not be negative.
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param product body domain.Product true "New product"
// @Success 201 {object} ProductResponse
// @Failure 400 {object} domain.ErrorResponse
// @Failure 409 {object} domain.ErrorResponse
// @Router /v1/products [post]
func (h *Handler) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	if claims, ok := middleware.GetUserClaimsFromContext(r.Context()); ok {
		h.Logger.Debug("create product requested", map[string]interface{}{"subject": claims.Subject})
	}

	var req domain.Product
	if err := response.Decode(r, &req); err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusCreated)
		return
	}

	created, err := h.Service.CreateProduct(r.Context(), req)
	if err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusCreated)
		return
	}

	response.Handle(w, r, h.Logger, ProductResponse{
		Product: &created,
		Notice: domain.Notice{
			Level:   domain.NoticeSuccess,
			Message: fmt.Sprintf("Product %s added successfully.", created.Code),
		},
	}, nil, http.StatusCreated)
}

// UpdateProductHandler handles PATCH /v1/products/{code}.
// @Summary Update product fields
// @Description Merges the given fields into the product. Numbers may be sent as strings.
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "Product code"
// @Param fields body map[string]interface{} true "Fields to change"
// @Success 200 {object} ProductResponse
// @Failure 400 {object} domain.ErrorResponse
// @Failure 404 {object} domain.ErrorResponse
// @Router /v1/products/{code} [patch]
func (h *Handler) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	raw := map[string]interface{}{}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		response.Handle(w, r, h.Logger, nil, apperror.NewValidationError("invalid JSON payload"), http.StatusOK)
		return
	}

	if err := h.Service.UpdateProduct(r.Context(), code, raw); err != nil {
		response.Handle(w, r, h.Logger, nil, err, http.StatusOK)
		return
	}

	response.Handle(w, r, h.Logger, ProductResponse{
		Notice: domain.Notice{
			Level:   domain.NoticeSuccess,
			Message: fmt.Sprintf("Product %s updated successfully.", code),
		},
	}, nil, http.StatusOK)
}

// DeleteProductHandler handles DELETE /v1/products/{code}.
// @Summary Delete a product
// @Tags products
// @Security BearerAuth
// @Param code path string true "Product code"
// @Success 204
// @Failure 404 {object} domain.ErrorResponse
// @Router /v1/products/{code} [delete]
func (h *Handler) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	err := h.Service.DeleteProduct(r.Context(), mux.Vars(r)["code"])
	response.Handle(w, r, h.Logger, nil, err, http.StatusNoContent)
}
