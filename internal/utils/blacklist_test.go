package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBlacklistMissingFile(t *testing.T) {
	b, err := LoadBlacklist(filepath.Join(t.TempDir(), "blacklist.txt"))
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())

	hit, _ := b.IsBlacklisted("Anything.2020.1080p")
	assert.False(t, hit)
}

func TestLoadBlacklist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.txt")
	content := "# screeners\nCAMRip\n\n  TeleSync  \n# HDTS\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	b, err := LoadBlacklist(path)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Len())

	hit, term := b.IsBlacklisted("Dune.Part.Two.2024.camrip.x264")
	assert.True(t, hit)
	assert.Equal(t, "camrip", term)

	hit, _ = b.IsBlacklisted("Dune.Part.Two.2024.HDTS")
	assert.False(t, hit)
}

func TestNilBlacklist(t *testing.T) {
	var b *Blacklist
	assert.Equal(t, 0, b.Len())
	hit, term := b.IsBlacklisted("x")
	assert.False(t, hit)
	assert.Empty(t, term)
}
