package value

import "testing"

func TestPrint(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Float(1.5), "1.50"},
		{Int(-3), "-3"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Category(5), "C5"},
		{Missing(), "<missing>"},
		{Array([]Value{Category(1), Category(2), Category(3)}), "[C1,C2,C3]"},
	}
	for _, c := range cases {
		if got := c.v.Print(); got != c.want {
			t.Errorf("Print(%v) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestCheckType(t *testing.T) {
	v := Category(7)
	if err := v.CheckType(TagCategory); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := v.CheckType(TagFloat)
	if err == nil {
		t.Fatal("expected type error")
	}
	te, ok := err.(*TypeError)
	if !ok {
		t.Fatalf("expected *TypeError, got %T", err)
	}
	if te.Expected != TagFloat || te.Actual != TagCategory {
		t.Errorf("TypeError = %+v", te)
	}
}

func TestEqualTagAware(t *testing.T) {
	if !Category(3).Equal(Category(3)) {
		t.Error("expected equal categories to be equal")
	}
	if Category(3).Equal(Int(3)) {
		t.Error("expected different tags to be unequal regardless of payload")
	}
	if !Missing().Equal(Missing()) {
		t.Error("expected missing to equal missing")
	}
}

func TestArrayEqual(t *testing.T) {
	a := Array([]Value{Category(1), Category(2)})
	b := Array([]Value{Category(1), Category(2)})
	c := Array([]Value{Category(1), Category(3)})
	if !a.Equal(b) {
		t.Error("expected equal arrays to be equal")
	}
	if a.Equal(c) {
		t.Error("expected differing arrays to be unequal")
	}
}
