package book

import "testing"

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry()

	b1 := r.GetOrCreate("AAPL")
	b2 := r.GetOrCreate("AAPL")
	if b1 != b2 {
		t.Fatalf("expected the same book instance per symbol")
	}

	if _, ok := r.Get("MSFT"); ok {
		t.Fatalf("Get must not create books")
	}

	r.GetOrCreate("MSFT")
	if len(r.Symbols()) != 2 {
		t.Fatalf("expected 2 symbols, got %v", r.Symbols())
	}
}
