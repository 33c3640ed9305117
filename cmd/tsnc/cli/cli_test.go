package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokensCmdRunsWithoutError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "add.tsn")
	require.NoError(t, os.WriteFile(path, []byte("function add(a: i32, b: i32): i32 { return a + b; }"), 0o644))

	cmd := newTokensCmd()
	cmd.SetArgs([]string{path})
	require.NoError(t, cmd.Execute())
}

func TestParseCallArgs(t *testing.T) {
	args, err := parseCallArgs([]string{"3", "4.5f"})
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, int32(3), args[0])
	assert.Equal(t, 4.5, args[1])
}

func TestParseCallArgsRejectsGarbage(t *testing.T) {
	_, err := parseCallArgs([]string{"not-a-number"})
	assert.Error(t, err)
}
