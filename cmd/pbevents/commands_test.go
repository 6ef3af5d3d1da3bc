package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogCommand(t *testing.T) {
	t.Setenv("RUN_TYPE", "test")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.yaml"), []byte(`
events:
  - name: bidWon
    id_path: adUnitCode
  - name: auctionEnd
`), 0o644))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"catalog", "--conf", dir})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "auctionEnd\nbidWon\tadUnitCode\n", out.String())
}

func TestCatalogCommandMissingConfig(t *testing.T) {
	t.Setenv("RUN_TYPE", "test")
	cmd := newRootCmd()
	cmd.SetArgs([]string{"catalog", "--conf", t.TempDir()})
	assert.ErrorContains(t, cmd.Execute(), "config file not found")
}
