package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	schema := `-- heading comment
CREATE TABLE a (
    id TEXT PRIMARY KEY
);

-- second
CREATE INDEX IF NOT EXISTS a_idx
    ON a (id);
`
	stmts := SplitStatements(schema)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.NotContains(t, stmts[0], ";")
	assert.Contains(t, stmts[1], "ON a (id)")
}

func TestNullString(t *testing.T) {
	blank := "  "
	val := "P1"
	assert.False(t, NullString(nil).Valid)
	assert.False(t, NullString(&blank).Valid)
	assert.Equal(t, sql.NullString{String: "P1", Valid: true}, NullString(&val))
}
