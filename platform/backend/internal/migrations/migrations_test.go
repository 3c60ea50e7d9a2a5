package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMigrationFiles_Ordered(t *testing.T) {
	files, err := getMigrationFiles()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"001_create_game_sessions.sql",
		"002_create_action_records.sql",
		"003_create_score_records.sql",
	}, files)
}

func TestMigrationFiles_CreateTables(t *testing.T) {
	files, err := getMigrationFiles()
	require.NoError(t, err)

	for _, name := range files {
		content, err := fs.ReadFile(migrationFS, "sql/"+name)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(content), "CREATE TABLE IF NOT EXISTS"), name)
	}
}
