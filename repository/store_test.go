package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
)

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), "memory://", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("expected *MemoryStore, got %T", s)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestOpenUnknownScheme(t *testing.T) {
	if _, err := Open(context.Background(), "mysql://localhost/crm", ""); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}

func TestIsUnavailable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not found", ErrNotFound, false},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"refused", errors.New("dial tcp 127.0.0.1:27017: connection refused"), true},
		{"mongo network timeout code", mongo.CommandError{Code: 89, Message: "NetworkTimeout"}, true},
		{"mongo duplicate key", mongo.CommandError{Code: 11000, Message: "E11000"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUnavailable(tt.err); got != tt.want {
				t.Errorf("IsUnavailable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
