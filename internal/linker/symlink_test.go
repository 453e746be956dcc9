package linker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plexlinker/plexlinker/internal/testutil"
)

func TestEnsureLink_Idempotent(t *testing.T) {
	root := t.TempDir()
	source := testutil.WriteFile(t, root, "movies/Alpha/Alpha.mkv", "data")
	dest := filepath.Join(root, "shows", "Beta", "Season 00", "Beta - S00E01 - Special.mkv")

	for i := 0; i < 2; i++ {
		ok, err := EnsureLink(source, dest)
		require.NoError(t, err)
		require.True(t, ok)

		target, err := os.Readlink(dest)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("..", "..", "..", "movies", "Alpha", "Alpha.mkv"), target)

		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "data", string(data))
	}
}

func TestEnsureLink_SourceNotRegular(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "shows", "Beta", "Season 00", "x.mkv")

	ok, err := EnsureLink(filepath.Join(root, "missing.mkv"), dest)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = os.Stat(filepath.Join(root, "shows"))
	assert.True(t, os.IsNotExist(err), "no directories should be created")

	dir := filepath.Join(root, "movies", "Alpha")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	ok, err = EnsureLink(dir, dest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnsureLink_ReplacesExisting(t *testing.T) {
	root := t.TempDir()
	oldSource := testutil.WriteFile(t, root, "movies/Old.mkv", "old")
	newSource := testutil.WriteFile(t, root, "movies/New.mkv", "new")
	dest := filepath.Join(root, "shows", "link.mkv")

	ok, err := EnsureLink(oldSource, dest)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = EnsureLink(newSource, dest)
	require.NoError(t, err)
	require.True(t, ok)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	// A plain file in the way is replaced too.
	plain := testutil.WriteFile(t, root, "shows/plain.mkv", "plain")
	ok, err = EnsureLink(newSource, plain)
	require.NoError(t, err)
	require.True(t, ok)
	info, err := os.Lstat(plain)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink)
}

func TestPruneBrokenSymlinks_Nested(t *testing.T) {
	root := t.TempDir()
	kept := testutil.WriteFile(t, root, "movies/Kept.mkv", "k")
	gone := testutil.WriteFile(t, root, "movies/Gone.mkv", "g")

	var good, broken []string
	for _, dir := range []string{"shows", "shows/A/Season 00", "shows/A/B/C/D"} {
		full := filepath.Join(root, filepath.FromSlash(dir))
		require.NoError(t, os.MkdirAll(full, 0o755))

		g := filepath.Join(full, "good.mkv")
		require.NoError(t, os.Symlink(kept, g))
		good = append(good, g)

		b := filepath.Join(full, "broken.mkv")
		require.NoError(t, os.Symlink(gone, b))
		broken = append(broken, b)
	}
	require.NoError(t, os.Remove(gone))

	removed := PruneBrokenSymlinks(root)
	assert.Equal(t, len(broken), removed)

	for _, p := range broken {
		_, err := os.Lstat(p)
		assert.True(t, os.IsNotExist(err), "%s should be removed", p)
	}
	for _, p := range good {
		_, err := os.Stat(p)
		assert.NoError(t, err, "%s should be kept", p)
	}

	_, err := os.Stat(kept)
	assert.NoError(t, err)
	assert.Equal(t, 0, PruneBrokenSymlinks(root))
	assert.Equal(t, 0, PruneBrokenSymlinks(filepath.Join(root, "missing")))
}
