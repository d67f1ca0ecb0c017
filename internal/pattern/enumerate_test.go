package pattern

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumerateFiles_ExtractsCaptures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "a.c"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "b.c"), []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "readme.txt"), []byte("x"), 0o644))

	c, err := Compile("src/<name>.c")
	require.NoError(t, err)

	cands, err := EnumerateFiles(dir, c)
	require.NoError(t, err)
	require.Len(t, cands, 2)

	names := map[string]bool{}
	for _, cand := range cands {
		names[cand.Captures["name"]] = true
	}
	assert.True(t, names["a"])
	assert.True(t, names["b"])
}

func TestEnumerateKeys_MatchesAgainstProvidedList(t *testing.T) {
	c, err := Compile("logs/<date>/<host>.log")
	require.NoError(t, err)
	cands := EnumerateKeys([]string{
		"logs/2026-07-30/web1.log",
		"logs/2026-07-30/web2.log",
		"logs/README",
	}, c)
	require.Len(t, cands, 2)
	assert.Equal(t, "2026-07-30", cands[0].Captures["date"])
}
