package steplog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/treasurehunt/game/engine"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "records"))
	require.NoError(t, err)
	return store
}

func sampleRecord() Record {
	return Record{
		Steps: []engine.Position{{X: 0, Y: 0}, {X: 0, Y: 1}},
		Grid:  engine.MustParseGrid("@*", ".T"),
	}
}

func TestRecordName(t *testing.T) {
	assert.Equal(t, "classic_Solved.txt", RecordName("classic.txt"))
	assert.Equal(t, "classic_Solved.txt", RecordName("classic"))
	assert.Equal(t, "classic_Solved.txt", RecordName("classic_Solved.txt"))
}

func TestStore_SaveLoad(t *testing.T) {
	store := newTestStore(t)

	name, err := store.Save("classic.txt", sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, "classic_Solved.txt", name)
	assert.FileExists(t, filepath.Join(store.Dir(), name))

	byRecord, err := store.Load(name)
	require.NoError(t, err)
	assert.True(t, sampleRecord().Equal(byRecord))

	byMap, err := store.Load("classic.txt")
	require.NoError(t, err)
	assert.True(t, byRecord.Equal(byMap))

	raw, err := store.ReadRaw("classic")
	require.NoError(t, err)
	assert.Equal(t, "#STEPS\n0,0\n0,1\n#MAP\n@*\n.T\n", string(raw))
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save("a.txt", sampleRecord())
	require.NoError(t, err)

	updated := Record{Grid: engine.MustParseGrid("T")}
	_, err = store.Save("a.txt", updated)
	require.NoError(t, err)

	loaded, err := store.Load("a.txt")
	require.NoError(t, err)
	assert.True(t, updated.Equal(loaded))
}

func TestStore_LoadMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("nope.txt")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, err = store.ReadRaw("nope.txt")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestStore_LoadMalformed(t *testing.T) {
	store := newTestStore(t)
	path := filepath.Join(store.Dir(), "broken_Solved.txt")
	require.NoError(t, os.WriteFile(path, []byte("#STEPS\n0,0\n"), 0644))

	_, err := store.Load("broken")
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestStore_RejectsPaths(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save("../escape.txt", sampleRecord())
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = store.Load("sub/dir")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestStore_ListAndDelete(t *testing.T) {
	store := newTestStore(t)

	for _, m := range []string{"zeta.txt", "alpha.txt", "mid.txt"} {
		_, err := store.Save(m, sampleRecord())
		require.NoError(t, err)
	}
	_, err := store.WriteNoSolution("alpha.txt", engine.Position{X: 1, Y: 2})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("x"), 0644))

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha_Solved.txt", "mid_Solved.txt", "zeta_Solved.txt"}, names)

	require.NoError(t, store.Delete("mid.txt"))
	assert.ErrorIs(t, store.Delete("mid.txt"), ErrRecordNotFound)

	names, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha_Solved.txt", "zeta_Solved.txt"}, names)
}

func TestStore_WriteNoSolution(t *testing.T) {
	store := newTestStore(t)

	name, err := store.WriteNoSolution("maze.txt", engine.Position{X: 3, Y: 4})
	require.NoError(t, err)
	assert.Equal(t, "maze_NoSolution.txt", name)

	data, err := os.ReadFile(filepath.Join(store.Dir(), name))
	require.NoError(t, err)
	assert.Equal(t, "Error: map has no solution starting at coordinate x=3, y=4\n", string(data))
}
