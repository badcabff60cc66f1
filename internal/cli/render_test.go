package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_RecordsAndClears(t *testing.T) {
	db := initDB(t)
	opts := &RootOptions{Format: "text", Database: db}

	out, err := execute(t, NewRenderCommand, opts, "page", "13", "--read", "page:11:name", "--channel", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded 1 dependencies for page:13")

	res := runDepsJSON(t, db, "page", "11", "--props", "name", "--channel", "1")
	assert.True(t, hasDependent(res.Dependencies, "page:13", true), "rendered dependency is found")

	res = runDepsJSON(t, db, "page", "13", "--recorded")
	require.Len(t, res.Recorded, 1)
	assert.Equal(t, "name", res.Recorded[0].SourceProperty)
	assert.Equal(t, int64(1), res.Recorded[0].ChannelID)

	out, err = execute(t, NewRenderCommand, opts, "page", "13", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed recorded dependencies of page:13")

	res = runDepsJSON(t, db, "page", "13", "--recorded")
	assert.Empty(t, res.Recorded)
}

func TestRender_JSON(t *testing.T) {
	db := initDB(t)

	out, err := execute(t, NewRenderCommand, &RootOptions{Format: "json", Database: db},
		"page", "13", "--read", "page:11:name", "--read", "page:12:name")
	require.NoError(t, err)

	var resp struct {
		Data RenderResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "page:13", resp.Data.Root)
	assert.Len(t, resp.Data.Rows, 2)
	assert.Equal(t, "index-de", resp.Data.Values["page:11.name"])
}

func TestRender_ThenTriggerMarksRoot(t *testing.T) {
	db := initDB(t)
	opts := &RootOptions{Format: "json", Database: db}

	_, err := execute(t, NewRenderCommand, opts, "page", "13", "--read", "page:11:name", "--channel", "1")
	require.NoError(t, err)

	out, err := execute(t, NewTriggerCommand, opts, "page", "11", "--props", "name", "--channel", "1")
	require.NoError(t, err)
	var resp triggerResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	found := false
	for _, m := range resp.Data.Marks {
		if m.Kind == "page" && m.ID == 13 {
			found = true
			assert.Equal(t, "dependency", m.Action)
		}
	}
	assert.True(t, found, "page 13 rendered the name of page 11")
}

func TestParseRead(t *testing.T) {
	r, err := parseRead("page:11:name")
	require.NoError(t, err)
	assert.Equal(t, "page:11", r.ref.String())
	assert.Equal(t, "name", r.property)

	for _, bad := range []string{"page:11", "page:x:name", "widget:1:name", "page:1:"} {
		_, err := parseRead(bad)
		assert.Error(t, err, bad)
	}
}
