package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"umid/pkg/sentinel"
)

func TestInMemory(t *testing.T) {
	ctx := context.Background()

	t.Run("seeded IDs exist", func(t *testing.T) {
		reg := NewInMemory("user-1", "user-2")

		ok, err := reg.Exists(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = reg.Exists(ctx, "user-3")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("add and remove mutate membership", func(t *testing.T) {
		reg := NewInMemory()
		reg.Add("user-1")
		reg.Remove("user-1")

		ok, err := reg.Exists(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("list enumerates every ID", func(t *testing.T) {
		reg := NewInMemory("a", "b", "c")

		ids, err := reg.ListIDs(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b", "c"}, ids)
	})
}

func TestAllowAll(t *testing.T) {
	ctx := context.Background()

	ok, err := AllowAll{}.Exists(ctx, "anyone")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = AllowAll{}.ListIDs(ctx)
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestLoadSeedFile(t *testing.T) {
	t.Run("parses IDs skipping blanks and comments", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "users.txt")
		content := "# known users\nuser-1\n\n  user-2  \n# trailing comment\nuser-3\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		reg, err := LoadSeedFile(path)
		require.NoError(t, err)

		ids, err := reg.ListIDs(context.Background())
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"user-1", "user-2", "user-3"}, ids)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadSeedFile(filepath.Join(t.TempDir(), "absent.txt"))
		require.ErrorContains(t, err, "open registry seed file")
	})
}
