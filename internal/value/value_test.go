package value

import "testing"

func TestIsFalsey(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"nil", NewNil(), true},
		{"false", NewBool(false), true},
		{"true", NewBool(true), false},
		{"zero", NewNumber(0), false},
		{"empty string", NewObj(&Object{Kind: ObjString, Str: ""}), false},
	}
	for _, tt := range tests {
		if got := IsFalsey(tt.v); got != tt.want {
			t.Errorf("%s: IsFalsey() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestEqualNumbersAndNaN(t *testing.T) {
	if !Equal(NewNumber(1), NewNumber(1)) {
		t.Fatal("1 == 1 should hold")
	}
	nan := NewNumber(nan())
	if Equal(nan, nan) {
		t.Fatal("NaN should not equal itself")
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestInternStringIdentity(t *testing.T) {
	in := NewInterner()
	a := in.InternString("foobar")
	b := in.InternString("foobar")
	if a != b {
		t.Fatal("interning the same bytes twice should return the same object")
	}
	if !Equal(NewObj(a), NewObj(b)) {
		t.Fatal("interned strings with equal bytes should be Equal by identity")
	}

	c := in.InternString("other")
	if a == c {
		t.Fatal("interning distinct bytes should not collapse to the same object")
	}
	if in.LiveObjects() != 2 {
		t.Fatalf("expected 2 live objects, got %d", in.LiveObjects())
	}

	in.Release()
	if in.LiveObjects() != 0 {
		t.Fatal("Release should leave no reachable objects")
	}
}

func TestTableGrowthAndTombstones(t *testing.T) {
	in := NewInterner()
	var tbl Table
	keys := make([]*Object, 0, 20)
	for i := 0; i < 20; i++ {
		k := in.InternString(string(rune('a' + i)))
		keys = append(keys, k)
		if !tbl.Set(k, NewNumber(float64(i))) {
			t.Fatalf("Set of a fresh key %d should report isNewKey", i)
		}
	}
	for i, k := range keys {
		v, ok := tbl.Get(k)
		if !ok || v.AsNumber != float64(i) {
			t.Fatalf("Get(%d) = %v, %v", i, v, ok)
		}
	}

	if !tbl.Delete(keys[0]) {
		t.Fatal("Delete of an existing key should succeed")
	}
	if _, ok := tbl.Get(keys[0]); ok {
		t.Fatal("deleted key should no longer be found")
	}
	// A surviving key must still be found once another key's slot has
	// become a tombstone.
	if _, ok := tbl.Get(keys[1]); !ok {
		t.Fatal("tombstone must not break probing for surviving keys")
	}
}
