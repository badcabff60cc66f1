package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const treeFixture = `
nodes:
  - {id: 1, name: site}
entities:
  - {kind: folder, id: 1, node_id: 1, attributes: {name: root, pub_dir: /}}
  - {kind: folder, id: 2, folder_id: 1, node_id: 1, attributes: {name: news, pub_dir: /news}}
  - {kind: page, id: 10, folder_id: 2, node_id: 1, contentset_id: 500, content_id: 600, online: true, attributes: {name: index}}
  - {kind: page, id: 11, folder_id: 2, node_id: 1, contentset_id: 500, online: true, attributes: {name: index-de}}
  - {kind: page, id: 12, folder_id: 2, node_id: 1, content_id: 600, online: true, attributes: {name: index-print}}
  - {kind: page, id: 13, folder_id: 2, node_id: 1, online: true, attributes: {name: other}}
  - {kind: file, id: 20, folder_id: 2, node_id: 1, attributes: {name: report.pdf}}
`

// writeFile writes content to name inside a temp dir and returns its path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// initDB creates a seeded database and returns its path.
func initDB(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "cascade.db")
	_, err := execute(t, NewInitCommand, &RootOptions{Format: "text", Database: db},
		"--fixture", writeFile(t, "tree.yaml", treeFixture))
	require.NoError(t, err)
	return db
}

// execute runs a subcommand and returns what it wrote to stdout.
func execute(t *testing.T, newCmd func(*RootOptions) *cobra.Command, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := newCmd(opts)
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
