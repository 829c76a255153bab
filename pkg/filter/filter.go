// Package filter implements the metadata predicate evaluator (spec
// component C6): a closed boolean expression tree over the scalar/array
// values the record store attaches to each record, narrowed from a looser
// string-parsed BETWEEN/LIKE/REGEX superset down to the exact closed
// grammar spec §4.5 defines.
package filter

import (
	"fmt"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/record"
)

// Op identifies a comparison operator. The set is closed per spec §9.
type Op int

const (
	Eq Op = iota
	Neq
	Gt
	Gte
	Lt
	Lte
	In
	NotIn
	Contains
)

func (o Op) String() string {
	switch o {
	case Eq:
		return "eq"
	case Neq:
		return "neq"
	case Gt:
		return "gt"
	case Gte:
		return "gte"
	case Lt:
		return "lt"
	case Lte:
		return "lte"
	case In:
		return "in"
	case NotIn:
		return "not_in"
	case Contains:
		return "contains"
	default:
		return "unknown"
	}
}

// Expr is the closed predicate grammar: And(exprs*) | Or(exprs*) | Not(expr)
// | Cmp(field, op, value). Exactly one of the fields below is populated,
// matching the "closed tagged variant" preference in spec §9.
type Expr struct {
	Kind ExprKind

	And []*Expr
	Or  []*Expr
	Not *Expr

	Field string
	Op    Op
	Value interface{}
}

// ExprKind tags which alternative of Expr is populated.
type ExprKind int

const (
	KindAnd ExprKind = iota
	KindOr
	KindNot
	KindCmp
)

func NewAnd(exprs ...*Expr) *Expr { return &Expr{Kind: KindAnd, And: exprs} }
func NewOr(exprs ...*Expr) *Expr  { return &Expr{Kind: KindOr, Or: exprs} }
func NewNot(expr *Expr) *Expr     { return &Expr{Kind: KindNot, Not: expr} }
func NewCmp(field string, op Op, value interface{}) *Expr {
	return &Expr{Kind: KindCmp, Field: field, Op: op, Value: value}
}

// Eval evaluates the expression against md, short-circuiting And/Or.
func Eval(e *Expr, md record.Metadata) bool {
	if e == nil {
		return true
	}
	switch e.Kind {
	case KindAnd:
		for _, c := range e.And {
			if !Eval(c, md) {
				return false
			}
		}
		return true
	case KindOr:
		for _, c := range e.Or {
			if Eval(c, md) {
				return true
			}
		}
		return len(e.Or) == 0
	case KindNot:
		return !Eval(e.Not, md)
	case KindCmp:
		return evalCmp(e, md)
	default:
		return false
	}
}

// evalCmp implements the per-operator type coercion rules of spec §4.5.
// Missing fields never match positively: Eq/Gt/.../In -> false,
// Neq/NotIn -> true.
func evalCmp(e *Expr, md record.Metadata) bool {
	val, present := md[e.Field]

	switch e.Op {
	case Eq:
		if !present {
			return false
		}
		return structuralEqual(val, e.Value)
	case Neq:
		if !present {
			return true
		}
		return !structuralEqual(val, e.Value)
	case Gt, Gte, Lt, Lte:
		if !present {
			return false
		}
		a, aok := asFloat(val)
		b, bok := asFloat(e.Value)
		if !aok || !bok {
			return false
		}
		switch e.Op {
		case Gt:
			return a > b
		case Gte:
			return a >= b
		case Lt:
			return a < b
		default:
			return a <= b
		}
	case In:
		if !present {
			return false
		}
		return membership(e.Value, val)
	case NotIn:
		if !present {
			return true
		}
		return !membership(e.Value, val)
	case Contains:
		if !present {
			return false
		}
		return contains(val, e.Value)
	default:
		return false
	}
}

// structuralEqual compares two JSON-like scalar/array values with number
// normalization (int/float compare by numeric value, not Go type).
func structuralEqual(a, b interface{}) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}
	as, aIsArr := asSlice(a)
	bs, bIsArr := asSlice(b)
	if aIsArr || bIsArr {
		if !aIsArr || !bIsArr || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !structuralEqual(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	return a == b
}

// membership reports whether val equals any element of arr (by Eq). arr
// must be an array per spec §4.5; any other shape never matches.
func membership(arr interface{}, val interface{}) bool {
	items, ok := asSlice(arr)
	if !ok {
		return false
	}
	for _, item := range items {
		if structuralEqual(item, val) {
			return true
		}
	}
	return false
}

// contains implements the Contains operator: left side (the field value)
// must be a string (substring match) or array (element membership).
func contains(left, needle interface{}) bool {
	if s, ok := left.(string); ok {
		sub, ok := needle.(string)
		if !ok {
			return false
		}
		return stringContains(s, sub)
	}
	if items, ok := asSlice(left); ok {
		for _, item := range items {
			if structuralEqual(item, needle) {
				return true
			}
		}
		return false
	}
	return false
}

func stringContains(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	default:
		return 0, false
	}
}

func asSlice(v interface{}) ([]interface{}, bool) {
	s, ok := v.([]interface{})
	return s, ok
}

// Validate reports whether the expression is well-formed (no nil children,
// known operator), returning an error naming the first problem found.
func Validate(e *Expr) error {
	if e == nil {
		return nil
	}
	switch e.Kind {
	case KindAnd:
		for _, c := range e.And {
			if err := Validate(c); err != nil {
				return err
			}
		}
	case KindOr:
		for _, c := range e.Or {
			if err := Validate(c); err != nil {
				return err
			}
		}
	case KindNot:
		if e.Not == nil {
			return fmt.Errorf("filter: Not expression missing child")
		}
		return Validate(e.Not)
	case KindCmp:
		if e.Field == "" {
			return fmt.Errorf("filter: Cmp expression missing field")
		}
		if e.Op < Eq || e.Op > Contains {
			return fmt.Errorf("filter: unknown operator %v", e.Op)
		}
	default:
		return fmt.Errorf("filter: unknown expression kind %v", e.Kind)
	}
	return nil
}

// ReferencedFields returns the set of metadata keys this expression
// touches, used by the planner's selectivity estimator.
func ReferencedFields(e *Expr) []string {
	seen := map[string]bool{}
	var walk func(*Expr)
	walk = func(e *Expr) {
		if e == nil {
			return
		}
		switch e.Kind {
		case KindAnd:
			for _, c := range e.And {
				walk(c)
			}
		case KindOr:
			for _, c := range e.Or {
				walk(c)
			}
		case KindNot:
			walk(e.Not)
		case KindCmp:
			seen[e.Field] = true
		}
	}
	walk(e)
	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	return fields
}
