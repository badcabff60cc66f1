package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_ListAndClear(t *testing.T) {
	db := initDB(t)
	opts := &RootOptions{Format: "text", Database: db}

	_, err := execute(t, NewTriggerCommand, opts, "page", "10", "--mutation", "takeoffline")
	require.NoError(t, err)

	out, err := execute(t, NewQueueCommand, opts)
	require.NoError(t, err)
	assert.Contains(t, out, "3 entries")
	assert.Contains(t, out, "remove")

	out, err = execute(t, NewQueueCommand, opts, "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 3 entries")

	out, err = execute(t, NewQueueCommand, opts)
	require.NoError(t, err)
	assert.Contains(t, out, "Publish queue is empty")
}

func TestQueue_MergesAcrossTransactions(t *testing.T) {
	db := initDB(t)
	opts := &RootOptions{Format: "json", Database: db}

	_, err := execute(t, NewTriggerCommand, opts, "page", "13", "--props", "name")
	require.NoError(t, err)
	_, err = execute(t, NewTriggerCommand, opts, "page", "13", "--mask", "delete")
	require.NoError(t, err)

	out, err := execute(t, NewQueueCommand, opts)
	require.NoError(t, err)
	var resp struct {
		Data QueueResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))

	var page13 []markJSON
	for _, m := range resp.Data.Marks {
		if m.Kind == "page" && m.ID == 13 {
			page13 = append(page13, m)
		}
	}
	require.Len(t, page13, 1, "one entry per entity and channel")
	assert.Equal(t, "remove", page13[0].Action)
}

func TestQueue_MissingDatabase(t *testing.T) {
	_, err := execute(t, NewQueueCommand, &RootOptions{Format: "text", Database: t.TempDir() + "/none.db"})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
