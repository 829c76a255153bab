package filter

import (
	"testing"

	"github.com/PhilipJohnBasile/vecstore-sub002/pkg/record"
)

func TestEvalCmpBasic(t *testing.T) {
	md := record.Metadata{"category": "tech", "price": 42, "tags": []interface{}{"a", "b"}}

	cases := []struct {
		name string
		expr *Expr
		want bool
	}{
		{"eq-match", NewCmp("category", Eq, "tech"), true},
		{"eq-miss", NewCmp("category", Eq, "other"), false},
		{"neq-match", NewCmp("category", Neq, "other"), true},
		{"eq-missing-field", NewCmp("absent", Eq, "x"), false},
		{"neq-missing-field", NewCmp("absent", Neq, "x"), true},
		{"gt-number", NewCmp("price", Gt, 10.0), true},
		{"gte-number-normalized", NewCmp("price", Gte, 42), true},
		{"lt-false", NewCmp("price", Lt, 10.0), false},
		{"in-match", NewCmp("category", In, []interface{}{"tech", "other"}), true},
		{"in-missing", NewCmp("absent", In, []interface{}{"tech"}), false},
		{"not-in-missing", NewCmp("absent", NotIn, []interface{}{"tech"}), true},
		{"contains-array", NewCmp("tags", Contains, "a"), true},
		{"contains-array-miss", NewCmp("tags", Contains, "z"), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Eval(c.expr, md); got != c.want {
				t.Errorf("got %v want %v", got, c.want)
			}
		})
	}
}

func TestEvalAndOrNot(t *testing.T) {
	md := record.Metadata{"category": "tech", "price": 42.0}

	and := NewAnd(NewCmp("category", Eq, "tech"), NewCmp("price", Gt, 10.0))
	if !Eval(and, md) {
		t.Fatal("expected And to match")
	}

	or := NewOr(NewCmp("category", Eq, "other"), NewCmp("price", Lt, 10.0))
	if Eval(or, md) {
		t.Fatal("expected Or to not match")
	}

	not := NewNot(NewCmp("category", Eq, "other"))
	if !Eval(not, md) {
		t.Fatal("expected Not to match")
	}
}

func TestContainsSubstring(t *testing.T) {
	md := record.Metadata{"title": "machine learning basics"}
	if !Eval(NewCmp("title", Contains, "learning"), md) {
		t.Fatal("expected substring match")
	}
	if Eval(NewCmp("title", Contains, "deep"), md) {
		t.Fatal("expected substring miss")
	}
}

func TestNumberNormalization(t *testing.T) {
	md := record.Metadata{"count": 5}
	if !Eval(NewCmp("count", Eq, 5.0), md) {
		t.Fatal("expected int/float normalization to match")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(NewAnd(NewCmp("a", Eq, 1))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate(&Expr{Kind: KindCmp, Field: ""}); err == nil {
		t.Fatal("expected error for missing field")
	}
	if err := Validate(&Expr{Kind: KindNot}); err == nil {
		t.Fatal("expected error for missing Not child")
	}
}

func TestReferencedFields(t *testing.T) {
	e := NewAnd(NewCmp("category", Eq, "tech"), NewOr(NewCmp("price", Gt, 1.0), NewCmp("tags", Contains, "x")))
	fields := ReferencedFields(e)
	want := map[string]bool{"category": true, "price": true, "tags": true}
	if len(fields) != len(want) {
		t.Fatalf("got %v", fields)
	}
	for _, f := range fields {
		if !want[f] {
			t.Fatalf("unexpected field %q", f)
		}
	}
}
