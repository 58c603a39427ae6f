package domain

import "fmt"

// Product is the only entity of the inventory. Code is the document key and
// never changes after creation.
type Product struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Stock    int64   `json:"stock"`
	StockMin int64   `json:"stock_min"`
	StockMax int64   `json:"stock_max"`
}

// Document returns the stored field map of the product. The code is not part
// of the document, it is the key.
func (p Product) Document() map[string]interface{} {
	return map[string]interface{}{
		string(FieldName):     p.Name,
		string(FieldPrice):    p.Price,
		string(FieldStock):    p.Stock,
		string(FieldStockMin): p.StockMin,
		string(FieldStockMax): p.StockMax,
	}
}

// Value returns the current value of a mutable field.
func (p Product) Value(f Field) (interface{}, bool) {
	switch f {
	case FieldName:
		return p.Name, true
	case FieldPrice:
		return p.Price, true
	case FieldStock:
		return p.Stock, true
	case FieldStockMin:
		return p.StockMin, true
	case FieldStockMax:
		return p.StockMax, true
	}
	return nil, false
}

// Validate checks the non-negativity invariants of the numeric fields.
func (p Product) Validate() error {
	if p.Price < 0 {
		return fmt.Errorf("%w: price must be >= 0, got %v", ErrInvalidValue, p.Price)
	}
	for _, f := range []struct {
		field Field
		v     int64
	}{{FieldStock, p.Stock}, {FieldStockMin, p.StockMin}, {FieldStockMax, p.StockMax}} {
		if f.v < 0 {
			return fmt.Errorf("%w: %s must be >= 0, got %d", ErrInvalidValue, f.field, f.v)
		}
	}
	return nil
}

// FromDocument rebuilds a product from a raw stored document. Absent name
// defaults to "" and absent numbers to zero; present values are coerced to
// the declared type whatever their stored representation.
func FromDocument(code string, doc map[string]interface{}) (Product, error) {
	p := Product{Code: code}

	if v, ok := doc[string(FieldName)]; ok && v != nil {
		if s, isStr := v.(string); isStr {
			p.Name = s
		} else {
			p.Name = fmt.Sprint(v)
		}
	}

	var err error
	if v, ok := doc[string(FieldPrice)]; ok && v != nil {
		if p.Price, err = ToFloat(v); err != nil {
			return Product{}, fmt.Errorf("document %s: price: %w", code, err)
		}
	}
	counts := []struct {
		field Field
		dst   *int64
	}{{FieldStock, &p.Stock}, {FieldStockMin, &p.StockMin}, {FieldStockMax, &p.StockMax}}
	for _, c := range counts {
		v, ok := doc[string(c.field)]
		if !ok || v == nil {
			continue
		}
		if *c.dst, err = ToInt(v); err != nil {
			return Product{}, fmt.Errorf("document %s: %s: %w", code, c.field, err)
		}
	}
	return p, nil
}
