// Package workflow drives the guided product update: select a product, look
// at its current values, pick the fields to change, enter new values and
// submit. Transitions are pure functions over a Snapshot; the only side
// effect, the store write on submit, is carried out by Session.
package workflow

import (
	"fmt"

	"stockdash/internal/domain"
	apperror "stockdash/internal/errors"
)

// State of an update session.
type State string

const (
	StateSelectProduct State = "select_product"
	StateNoProducts    State = "no_products"
	StateShowCurrent   State = "show_current"
	StateSelectFields  State = "select_fields"
	StateCollectValues State = "collect_values"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Terminal reports whether no further events are accepted.
func (s State) Terminal() bool {
	return s == StateNoProducts || s == StateDone || s == StateFailed
}

// EventType names the events the UI pushes into a session.
type EventType string

const (
	EventSelectProduct EventType = "select_product"
	EventProceed       EventType = "proceed"
	EventSelectFields  EventType = "select_fields"
	EventEnterValue    EventType = "enter_value"
	EventSubmit        EventType = "submit"
)

// Event is one user interaction. Only the members relevant to Type are read.
type Event struct {
	Type   EventType   `json:"type" example:"enter_value"`
	Name   string      `json:"name,omitempty" example:"Widget"`
	Fields []string    `json:"fields,omitempty"`
	Field  string      `json:"field,omitempty" example:"stock"`
	Value  interface{} `json:"value,omitempty" swaggertype:"string" example:"7"`
}

// allowed lists, per state, the events it accepts.
var allowed = map[State][]EventType{
	StateSelectProduct: {EventSelectProduct},
	StateShowCurrent:   {EventProceed, EventSelectFields},
	StateSelectFields:  {EventSelectFields},
	StateCollectValues: {EventEnterValue, EventSubmit},
}

// Allowed returns the events accepted in s.
func Allowed(s State) []EventType {
	return append([]EventType(nil), allowed[s]...)
}

// Snapshot is the complete state of a session at one point in time.
type Snapshot struct {
	State    State
	Products []domain.Product
	Current  *domain.Product
	Selected []domain.Field
	Pending  map[domain.Field]interface{}
	Notice   *domain.Notice
}

// Effect is a side effect requested by a transition. Only submit produces
// one.
type Effect struct {
	Code    string
	Updates map[domain.Field]interface{}
}

// Start builds the first snapshot from the product listing.
func Start(products []domain.Product) Snapshot {
	if len(products) == 0 {
		return Snapshot{
			State:  StateNoProducts,
			Notice: &domain.Notice{Level: domain.NoticeInfo, Message: domain.MsgNoProducts},
		}
	}
	return Snapshot{
		State:    StateSelectProduct,
		Products: append([]domain.Product(nil), products...),
	}
}

// Options are the product names offered for selection, in listing order.
func (s Snapshot) Options() []string {
	names := make([]string, 0, len(s.Products))
	for _, p := range s.Products {
		names = append(names, p.Name)
	}
	return names
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Selected = append([]domain.Field(nil), s.Selected...)
	if s.Pending != nil {
		out.Pending = make(map[domain.Field]interface{}, len(s.Pending))
		for k, v := range s.Pending {
			out.Pending[k] = v
		}
	}
	if s.Current != nil {
		cur := *s.Current
		out.Current = &cur
	}
	return out
}

func notAllowed(s State, ev EventType) error {
	return apperror.NewValidationError(fmt.Sprintf("event %q is not allowed in state %q", ev, s))
}

func isAllowed(s State, ev EventType) bool {
	for _, e := range allowed[s] {
		if e == ev {
			return true
		}
	}
	return false
}

// Transition applies ev to s. On error the returned snapshot is s itself.
// A non-nil Effect must be executed and its outcome fed to Resolve.
func Transition(s Snapshot, ev Event) (Snapshot, *Effect, error) {
	if !isAllowed(s.State, ev.Type) {
		return s, nil, notAllowed(s.State, ev.Type)
	}

	next := s.clone()
	next.Notice = nil

	switch ev.Type {
	case EventSelectProduct:
		for _, p := range s.Products {
			if p.Name == ev.Name {
				cur := p
				next.Current = &cur
				next.State = StateShowCurrent
				return next, nil, nil
			}
		}
		return s, nil, apperror.NewValidationError(fmt.Sprintf("no product named %q", ev.Name))

	case EventProceed:
		next.State = StateSelectFields
		return next, nil, nil

	case EventSelectFields:
		fields, err := parseFields(ev.Fields)
		if err != nil {
			return s, nil, err
		}
		next.Selected = fields
		next.Pending = make(map[domain.Field]interface{}, len(fields))
		for _, f := range fields {
			if v, ok := next.Current.Value(f); ok {
				next.Pending[f] = v
			}
		}
		next.State = StateCollectValues
		return next, nil, nil

	case EventEnterValue:
		f, err := domain.ParseField(ev.Field)
		if err != nil {
			return s, nil, apperror.NewValidationError(err.Error())
		}
		if !contains(s.Selected, f) {
			return s, nil, apperror.NewValidationError(fmt.Sprintf("field %q was not selected", f))
		}
		// An empty string removes the field from the update, even though it
		// stays selected.
		if str, ok := ev.Value.(string); ok && str == "" {
			delete(next.Pending, f)
			return next, nil, nil
		}
		if _, ok := ev.Value.(string); !ok && f.Kind() == domain.KindText {
			return s, nil, apperror.NewValidationError(fmt.Sprintf("%s must be text", f))
		}
		v, err := domain.CoerceInput(f, ev.Value)
		if err != nil {
			return s, nil, apperror.NewValidationError(err.Error())
		}
		next.Pending[f] = v
		return next, nil, nil

	case EventSubmit:
		if len(s.Pending) == 0 {
			next.Notice = &domain.Notice{Level: domain.NoticeWarning, Message: domain.MsgNoChanges}
			return next, nil, nil
		}
		eff := &Effect{Code: s.Current.Code, Updates: next.clone().Pending}
		return next, eff, nil
	}

	return s, nil, notAllowed(s.State, ev.Type)
}

// Resolve moves a submitted snapshot to its terminal state given the result
// of the store write.
func Resolve(s Snapshot, err error) Snapshot {
	next := s.clone()
	if err != nil {
		next.State = StateFailed
		msg := fmt.Sprintf("Failed to update product %s: %v", s.Current.Code, err)
		if apperror.IsNotFound(err) {
			msg = fmt.Sprintf("Product %s no longer exists.", s.Current.Code)
		}
		next.Notice = &domain.Notice{Level: domain.NoticeError, Message: msg}
		return next
	}

	next.State = StateDone
	for f, v := range s.Pending {
		applyValue(next.Current, f, v)
	}
	next.Notice = &domain.Notice{
		Level:   domain.NoticeSuccess,
		Message: fmt.Sprintf("Product %s (%s) updated successfully.", next.Current.Name, next.Current.Code),
	}
	return next
}

func parseFields(names []string) ([]domain.Field, error) {
	fields := make([]domain.Field, 0, len(names))
	for _, n := range names {
		f, err := domain.ParseField(n)
		if err != nil {
			return nil, apperror.NewValidationError(err.Error())
		}
		if !contains(fields, f) {
			fields = append(fields, f)
		}
	}
	return fields, nil
}

func contains(fields []domain.Field, f domain.Field) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}

func applyValue(p *domain.Product, f domain.Field, v interface{}) {
	switch f {
	case domain.FieldName:
		if s, ok := v.(string); ok {
			p.Name = s
		}
	case domain.FieldPrice:
		if n, ok := v.(float64); ok {
			p.Price = n
		}
	case domain.FieldStock:
		if n, ok := v.(int64); ok {
			p.Stock = n
		}
	case domain.FieldStockMin:
		if n, ok := v.(int64); ok {
			p.StockMin = n
		}
	case domain.FieldStockMax:
		if n, ok := v.(int64); ok {
			p.StockMax = n
		}
	}
}
