package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// Statements returns the schema split into individual statements. Comment
// lines are dropped.
func Statements() []string {
	return splitStatements(schemaSQL)
}

func splitStatements(src string) []string {
	var b strings.Builder
	for _, line := range strings.Split(src, "\n") {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	var out []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Migrate applies the embedded schema. Every statement is idempotent
// (CREATE TABLE IF NOT EXISTS), so running it twice is harmless.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	stmts := Statements()
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return i, fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return len(stmts), nil
}
