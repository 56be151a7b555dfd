// Package db holds pieces shared by the SQL dialect adapters.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ApplySchema runs each statement of an idempotent schema script in order.
// Statements are separated by a semicolon at the end of a line.
func ApplySchema(ctx context.Context, conn *sql.DB, schema string) error {
	for i, stmt := range SplitStatements(schema) {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

// SplitStatements drops "--" comment lines and splits on trailing semicolons.
func SplitStatements(schema string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, line := range strings.Split(schema, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(cur.String()), ";")
			if stmt != "" {
				out = append(out, stmt)
			}
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}
