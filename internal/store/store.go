// Package store reads interview experiences from the hosted data store.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/prep-assistant/internal/experience"
)

// ErrNoBackend is returned when the configured backend name is unknown.
var ErrNoBackend = errors.New("unknown store backend")

// Field is a column of the experiences table that queries may reference.
type Field string

const (
	FieldCompany       Field = "company"
	FieldRole          Field = "role"
	FieldFullText      Field = "full_text"
	FieldCreatedAt     Field = "created_at"
	FieldAverageRating Field = "average_rating"
	FieldUpvotes       Field = "upvotes"
)

func (f Field) valid() bool {
	switch f {
	case FieldCompany, FieldRole, FieldFullText, FieldCreatedAt, FieldAverageRating, FieldUpvotes:
		return true
	default:
		return false
	}
}

// Op is a predicate operator.
type Op string

const (
	// OpEq is an exact equality match.
	OpEq Op = "eq"
	// OpILike is a case-insensitive substring match.
	OpILike Op = "ilike"
)

// Clause is a single predicate on one field.
type Clause struct {
	Field Field
	Op    Op
	Value string
}

func (c Clause) String() string {
	return fmt.Sprintf("%s %s %q", c.Field, c.Op, c.Value)
}

// Contains builds a case-insensitive substring clause.
func Contains(field Field, value string) Clause {
	return Clause{Field: field, Op: OpILike, Value: value}
}

type Order struct {
	Field Field
	Desc  bool
}

// Query selects experiences matching any of its clauses.
type Query struct {
	// Any clauses are joined with logical OR.
	Any   []Clause
	Order []Order
	Limit int
}

// Empty reports whether the query has no predicate, in which case no lookup is issued.
func (q Query) Empty() bool { return len(q.Any) == 0 }

// Validate rejects fields and operators the backends do not know how to render.
func (q Query) Validate() error {
	for _, c := range q.Any {
		if !c.Field.valid() {
			return fmt.Errorf("unsupported field %q", c.Field)
		}
		if c.Op != OpEq && c.Op != OpILike {
			return fmt.Errorf("unsupported operator %q", c.Op)
		}
	}
	for _, o := range q.Order {
		if !o.Field.valid() {
			return fmt.Errorf("unsupported order field %q", o.Field)
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("negative limit %d", q.Limit)
	}
	return nil
}

// Lookup is a filtered read against the experiences table.
type Lookup interface {
	Find(ctx context.Context, q Query) ([]experience.Experience, error)
}
