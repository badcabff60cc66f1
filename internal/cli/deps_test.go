package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type depsResponse struct {
	Status string     `json:"status"`
	Data   DepsResult `json:"data"`
}

func runDepsJSON(t *testing.T, db string, args ...string) DepsResult {
	t.Helper()
	out, err := execute(t, NewDepsCommand, &RootOptions{Format: "json", Database: db}, args...)
	require.NoError(t, err)
	var resp depsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func hasDependent(deps []dependencyJSON, prefix string, dynamic bool) bool {
	for _, d := range deps {
		if strings.HasPrefix(d.Dependent, prefix) && d.Dynamic == dynamic {
			return true
		}
	}
	return false
}

func TestDeps_StaticRules(t *testing.T) {
	db := initDB(t)

	res := runDepsJSON(t, db, "folder", "2", "--props", "pub_dir")
	assert.Equal(t, "folder:2", res.Entity)
	assert.Equal(t, []string{"pub_dir", "url"}, res.Closure)
	assert.True(t, hasDependent(res.Dependencies, "page:10", false), "pages below the folder use its url")
	assert.True(t, hasDependent(res.Dependencies, "file:20", false))
	assert.False(t, hasDependent(res.Dependencies, "folder:1", false))
}

func TestDeps_TextOutput(t *testing.T) {
	db := initDB(t)

	out, err := execute(t, NewDepsCommand, &RootOptions{Format: "text", Database: db}, "folder", "2", "--props", "pub_dir")
	require.NoError(t, err)
	assert.Contains(t, out, "Closure: pub_dir, url")
	assert.Contains(t, out, "static")
}

func TestDeps_MissingEntity(t *testing.T) {
	db := initDB(t)

	out, err := execute(t, NewDepsCommand, &RootOptions{Format: "text", Database: db}, "page", "99")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "page:99 not found")
}
