package memory

import (
	"context"
	"reflect"
	"testing"
)

func TestStoreAppendAtRow(t *testing.T) {
	s := New([]string{"h1", "h2"}, []string{"a", "b"})
	ctx := context.Background()

	if err := s.AppendRows(ctx, [][]string{{"c", "d"}}, 3); err != nil {
		t.Fatalf("AppendRows: %v", err)
	}
	rows, err := s.ReadAllRows(ctx)
	if err != nil {
		t.Fatalf("ReadAllRows: %v", err)
	}
	want := [][]string{{"h1", "h2"}, {"a", "b"}, {"c", "d"}}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("rows = %v, want %v", rows, want)
	}

	// A gap is padded with blank rows.
	if err := s.AppendRows(ctx, [][]string{{"e", "f"}}, 6); err != nil {
		t.Fatalf("AppendRows: %v", err)
	}
	if s.Len() != 6 {
		t.Fatalf("Len() = %d, want 6", s.Len())
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	s := New([]string{"h"})
	rows, _ := s.ReadAllRows(context.Background())
	rows[0][0] = "changed"
	again, _ := s.ReadAllRows(context.Background())
	if again[0][0] != "h" {
		t.Fatal("ReadAllRows leaked internal state")
	}
}

func TestStoreRejectsInvalidRow(t *testing.T) {
	s := New()
	if err := s.AppendRows(context.Background(), [][]string{{"x"}}, 0); err == nil {
		t.Fatal("expected error for row 0")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.AppendRows(ctx, [][]string{{"x"}}, 1); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
