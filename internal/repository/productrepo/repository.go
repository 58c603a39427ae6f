package productrepo

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"stockdash/internal/domain"
	apperror "stockdash/internal/errors"
	"stockdash/internal/pkg/cache"
	"stockdash/internal/pkg/docstore"
	"stockdash/internal/pkg/telemetry"
)

// ProductRepository is the data-access layer over the document store. It
// owns type coercion, the existence guards and the listing cache; every
// successful write invalidates the cache exactly once.
type ProductRepository struct {
	Store     docstore.Store
	Cache     *cache.ListingCache
	DBTimeout time.Duration
}

// NewProductRepository wires a store and a fresh listing cache. A zero
// dbTimeout means store calls are bounded only by the caller's context.
func NewProductRepository(store docstore.Store, dbTimeout time.Duration) *ProductRepository {
	return &ProductRepository{
		Store:     store,
		Cache:     cache.New(),
		DBTimeout: dbTimeout,
	}
}

func (r *ProductRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.DBTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.DBTimeout)
}

// ListAll reads every document from the store, bypassing the cache. Order
// is whatever the store yields.
func (r *ProductRepository) ListAll(ctx context.Context) (products []domain.Product, err error) {
	ctx, span := telemetry.AddSpan(ctx, "productrepo.ListAll")
	defer func() { telemetry.EndSpan(span, err) }()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	it := r.Store.StreamAll(ctx)
	defer it.Stop()

	products = []domain.Product{}
	for {
		doc, nerr := it.Next()
		if nerr == docstore.Done {
			break
		}
		if nerr != nil {
			return nil, apperror.NewStoreError("failed to stream products", nerr)
		}
		p, cerr := domain.FromDocument(doc.Key, doc.Fields)
		if cerr != nil {
			return nil, apperror.NewStoreError("failed to decode product", cerr)
		}
		products = append(products, p)
	}
	span.SetAttributes(attribute.Int("products.count", len(products)))
	return products, nil
}

// List returns the cached listing, loading it through ListAll on a miss.
func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	return r.Cache.GetAll(ctx, r.ListAll)
}

// Get reads a single product.
func (r *ProductRepository) Get(ctx context.Context, code string) (p domain.Product, err error) {
	ctx, span := telemetry.AddSpan(ctx, "productrepo.Get", attribute.String("product.code", code))
	defer func() { telemetry.EndSpan(span, err) }()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	fields, ok, err := r.Store.Get(ctx, code)
	if err != nil {
		return domain.Product{}, apperror.NewStoreError("failed to read product", err)
	}
	if !ok {
		return domain.Product{}, apperror.NewNotFoundError(code)
	}
	p, err = domain.FromDocument(code, fields)
	if err != nil {
		return domain.Product{}, apperror.NewStoreError("failed to decode product", err)
	}
	return p, nil
}

// Add creates the product. It fails with AlreadyExists, leaving the stored
// document untouched, when the code is taken.
func (r *ProductRepository) Add(ctx context.Context, p domain.Product) (err error) {
	ctx, span := telemetry.AddSpan(ctx, "productrepo.Add", attribute.String("product.code", p.Code))
	defer func() { telemetry.EndSpan(span, err) }()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	exists, err := r.Store.Exists(ctx, p.Code)
	if err != nil {
		return apperror.NewStoreError("failed to check product", err)
	}
	if exists {
		return apperror.NewAlreadyExistsError(p.Code)
	}

	doc, err := coerceAll(p.Document())
	if err != nil {
		return apperror.NewValidationError(err.Error())
	}
	if err = r.Store.Set(ctx, p.Code, doc); err != nil {
		return apperror.NewStoreError("failed to create product", err)
	}

	r.Cache.Invalidate()
	return nil
}

// UpdateFields merges the given fields into an existing product. Values are
// coerced to the field's declared type; unknown fields pass through as is.
func (r *ProductRepository) UpdateFields(ctx context.Context, code string, updates map[domain.Field]interface{}) (err error) {
	ctx, span := telemetry.AddSpan(ctx, "productrepo.UpdateFields",
		attribute.String("product.code", code),
		attribute.Int("fields.count", len(updates)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	exists, err := r.Store.Exists(ctx, code)
	if err != nil {
		return apperror.NewStoreError("failed to check product", err)
	}
	if !exists {
		return apperror.NewNotFoundError(code)
	}

	doc := make(docstore.Fields, len(updates))
	for f, raw := range updates {
		v, cerr := domain.Coerce(f, raw)
		if cerr != nil {
			return apperror.NewValidationError(cerr.Error())
		}
		doc[string(f)] = v
	}

	if err = r.Store.UpdateFields(ctx, code, doc); err != nil {
		return apperror.NewStoreError("failed to update product", err)
	}

	r.Cache.Invalidate()
	return nil
}

// Delete removes an existing product.
func (r *ProductRepository) Delete(ctx context.Context, code string) (err error) {
	ctx, span := telemetry.AddSpan(ctx, "productrepo.Delete", attribute.String("product.code", code))
	defer func() { telemetry.EndSpan(span, err) }()

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	exists, err := r.Store.Exists(ctx, code)
	if err != nil {
		return apperror.NewStoreError("failed to check product", err)
	}
	if !exists {
		return apperror.NewNotFoundError(code)
	}

	if err = r.Store.Delete(ctx, code); err != nil {
		return apperror.NewStoreError("failed to delete product", err)
	}

	r.Cache.Invalidate()
	return nil
}

func coerceAll(doc map[string]interface{}) (docstore.Fields, error) {
	out := make(docstore.Fields, len(doc))
	for k, raw := range doc {
		v, err := domain.Coerce(domain.Field(k), raw)
		if err != nil {
			return nil, fmt.Errorf("coerce %s: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
