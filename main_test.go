package main

import (
	"testing"

	"github.com/xiaot623/treeleaf/internal/outcome"
)

func TestNewSourcesKeepPrizeCodesSecure(t *testing.T) {
	outcomes, codes := newSources(42)
	if _, ok := outcomes.(*outcome.SeededSource); !ok {
		t.Fatalf("expected a seeded outcome source, got %T", outcomes)
	}
	if _, ok := codes.(outcome.SecureSource); !ok {
		t.Fatalf("expected a secure prize code source, got %T", codes)
	}

	outcomes, codes = newSources(0)
	if _, ok := outcomes.(outcome.SecureSource); !ok {
		t.Fatalf("expected a secure outcome source, got %T", outcomes)
	}
	if _, ok := codes.(outcome.SecureSource); !ok {
		t.Fatalf("expected a secure prize code source, got %T", codes)
	}
}
