package game

import (
	"bytes"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingRowsAreNotLogged(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	conn, err := Open(DSN("file:db_missing_rows?mode=memory&cache=shared"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, Migrate(conn))

	var g Game
	require.Error(t, conn.First(&g, 42).Error)
	assert.NotContains(t, buf.String(), "record not found")

	require.Error(t, conn.Exec("SELECT * FROM no_such_table").Error)
	assert.Contains(t, buf.String(), "no_such_table")
}
