package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFeed(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestDirSource_Fetch(t *testing.T) {
	dir := t.TempDir()
	writeFeed(t, dir, map[string]string{
		IndexFile: "id,name,cards,enabled,notes\n" +
			"poker,Poker,poker.csv,true,\n" +
			"empty,Empty Deck,,false,no cards\n",
		"poker.csv": "\ufeffid,value,suit,quantity\n" +
			"as,A,♠,1\n" +
			"kh,K,♥\n",
	})

	feed, err := NewDirSource(dir).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, feed, 2)

	poker := feed[0]
	assert.Equal(t, "poker", poker.Prop("id"))
	assert.Equal(t, true, poker.Props["enabled"])
	assert.Nil(t, poker.Props["notes"])
	assert.Equal(t, []string{"id", "value", "suit", "quantity"}, poker.Columns)
	require.Len(t, poker.Data, 2)
	assert.Equal(t, "♥", poker.Data[1]["suit"])
	assert.Equal(t, "", poker.Data[1]["quantity"], "short rows are padded")

	empty := feed[1]
	assert.Nil(t, empty.Data)
	enabled, ok := empty.BoolProp("enabled")
	assert.True(t, ok)
	assert.False(t, enabled)
	assert.Equal(t, "no cards", empty.Prop("notes"))
}

func TestDirSource_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing index", func(t *testing.T) {
		_, err := NewDirSource(t.TempDir()).Fetch(ctx)
		assert.Error(t, err)
	})

	t.Run("empty index", func(t *testing.T) {
		dir := t.TempDir()
		writeFeed(t, dir, map[string]string{IndexFile: ""})
		_, err := NewDirSource(dir).Fetch(ctx)
		assert.ErrorIs(t, err, ErrInvalidFeed)
	})

	t.Run("card file outside feed", func(t *testing.T) {
		dir := t.TempDir()
		writeFeed(t, dir, map[string]string{IndexFile: "id,cards\nd,../secret.csv\n"})
		_, err := NewDirSource(dir).Fetch(ctx)
		assert.ErrorIs(t, err, ErrInvalidFeed)
	})

	t.Run("row longer than header", func(t *testing.T) {
		dir := t.TempDir()
		writeFeed(t, dir, map[string]string{IndexFile: "id,name\nd,Deck,extra\n"})
		_, err := NewDirSource(dir).Fetch(ctx)
		assert.ErrorIs(t, err, ErrInvalidFeed)
	})

	t.Run("missing card file", func(t *testing.T) {
		dir := t.TempDir()
		writeFeed(t, dir, map[string]string{IndexFile: "id,cards\nd,missing.csv\n"})
		_, err := NewDirSource(dir).Fetch(ctx)
		assert.Error(t, err)
	})
}
