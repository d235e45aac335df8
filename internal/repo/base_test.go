package repo

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	return conn
}

func TestNewBaseKeepsConnection(t *testing.T) {
	db := openSQLite(t)
	base := NewBase(db)

	if base.db != db {
		t.Fatalf("expected base to keep the provided connection")
	}
}

func TestBaseDBBindsContext(t *testing.T) {
	db := openSQLite(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	bound := base.DB(ctx)

	if bound == nil {
		t.Fatalf("expected non-nil DB when context provided")
	}
	if bound.Statement == nil || bound.Statement.Context != ctx {
		t.Fatalf("expected context to flow through WithContext")
	}

	if base.DB(nil) != db {
		t.Fatalf("expected nil context to return the raw connection")
	}
}
