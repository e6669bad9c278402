package provider

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/poisignal/internal/model"
)

func TestArchiveSeededMatch(t *testing.T) {
	ctx := context.Background()
	a, err := OpenArchive(ctx, ":memory:")
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	entries, err := a.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, len(SeedEntries))

	sig, err := a.Fetch(ctx, model.Poi{Name: "Het Stadsmus (Hasselt)"})
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, model.SourceArchive, sig.Source)
	assert.Equal(t, 1.0, sig.Confidence)
	assert.Equal(t, "https://www.visithasselt.be/nl/het-stadsmus", sig.Link)

	sig, err = a.Fetch(ctx, model.Poi{Name: "Kapermolenpark"})
	require.NoError(t, err)
	assert.Nil(t, sig)
}

func TestArchivePersistsAndUpserts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.db")

	a, err := OpenArchive(ctx, path)
	require.NoError(t, err)
	require.NoError(t, a.Put(ctx, ArchiveEntry{Key: "Japanse Tuin", Description: "first"}))
	require.NoError(t, a.Put(ctx, ArchiveEntry{Key: "japanse tuin", Description: "second", Link: "https://example.org"}))
	require.NoError(t, a.Close())

	a, err = OpenArchive(ctx, path)
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	entries, err := a.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, len(SeedEntries)+1)

	sig, err := a.Fetch(ctx, model.Poi{Name: "De Japanse Tuin"})
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, "second", sig.Content)

	assert.Error(t, a.Put(ctx, ArchiveEntry{Key: "  "}))
}
