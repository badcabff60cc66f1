package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_SeedsFixture(t *testing.T) {
	db := filepath.Join(t.TempDir(), "site.db")
	fixture := writeFile(t, "tree.yaml", treeFixture)

	out, err := execute(t, NewInitCommand, &RootOptions{Format: "text", Database: db}, "--fixture", fixture)
	require.NoError(t, err)
	assert.Contains(t, out, "1 nodes, 0 channel sets, 7 entities")
	assert.FileExists(t, db)
}

func TestInit_JSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "site.db")

	out, err := execute(t, NewInitCommand, &RootOptions{Format: "json", Database: db})
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   InitResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, db, resp.Data.Database)
	assert.Zero(t, resp.Data.Entities)
}

func TestInit_MissingFixture(t *testing.T) {
	db := filepath.Join(t.TempDir(), "site.db")

	_, err := execute(t, NewInitCommand, &RootOptions{Format: "text", Database: db}, "--fixture", "nowhere.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.NoFileExists(t, db)
}
