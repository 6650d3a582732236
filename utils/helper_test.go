package utils_test

import (
	"testing"
	"time"

	"github.com/hisabworks/hisab_backend/utils"
)

func TestDateOnly(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	in := time.Date(2026, 8, 28, 23, 59, 59, 999, loc)
	got := utils.DateOnly(in)
	want := time.Date(2026, 8, 28, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("DateOnly = %v, want %v", got, want)
	}
	if got.Location() != loc {
		t.Fatalf("DateOnly changed location to %v", got.Location())
	}
}

func TestUniqueSlice(t *testing.T) {
	got := utils.UniqueSlice([]int{3, 1, 3, 2, 1})
	if len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("UniqueSlice = %v", got)
	}
}

func TestNilIfEmpty(t *testing.T) {
	if utils.NilIfEmpty("") != nil {
		t.Fatal("empty string should map to nil")
	}
	if p := utils.NilIfEmpty("x"); p == nil || *p != "x" {
		t.Fatalf("NilIfEmpty(\"x\") = %v", p)
	}
}

func TestDereferencePtr(t *testing.T) {
	if got := utils.DereferencePtr[int](nil, 7); got != 7 {
		t.Fatalf("default not used: %d", got)
	}
	v := 3
	if got := utils.DereferencePtr(&v, 7); got != 3 {
		t.Fatalf("pointer not used: %d", got)
	}
	if got := utils.DereferencePtr[string](nil); got != "" {
		t.Fatalf("zero value not used: %q", got)
	}
}
