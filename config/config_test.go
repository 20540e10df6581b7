package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReturnsDefaultsWhenMissing(t *testing.T) {
	m := NewManagerFs(afero.NewMemMapFs(), "data/settings.json")

	settings, err := m.Load()
	require.NoError(t, err)

	want := DefaultSettings()
	assert.Equal(t, want.Server.Port, settings.Server.Port)
	assert.NotEmpty(t, settings.Player.CodecCandidates)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := NewManagerFs(afero.NewMemMapFs(), "data/settings.json")

	settings := DefaultSettings()
	settings.Server.Port = 9090
	settings.Player.EvictAfterSeconds = 45
	settings.Player.CodecCandidates = []string{"avc1.42e01e"}

	require.NoError(t, m.Save(settings))

	loaded, err := m.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, loaded.Server.Port)
	assert.Equal(t, 45, loaded.Player.EvictAfterSeconds)
	assert.Equal(t, []string{"avc1.42e01e"}, loaded.Player.CodecCandidates)
}

func TestPartialSettingsKeepDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "settings.json", []byte(`{"server":{"port":8123}}`), 0o644))

	m := NewManagerFs(fs, "settings.json")
	settings, err := m.Load()
	require.NoError(t, err)

	assert.Equal(t, 8123, settings.Server.Port)
	assert.Equal(t, DefaultSettings().Player.EvictAfterSeconds, settings.Player.EvictAfterSeconds)
}

func TestDurationHelpers(t *testing.T) {
	p := DefaultSettings().Player

	assert.Equal(t, p.EvictAfter().Seconds(), float64(p.EvictAfterSeconds))
	assert.Equal(t, p.RewindMargin().Seconds(), float64(p.RewindMarginSeconds))
	assert.Equal(t, p.MinTrimRange().Seconds(), float64(p.MinTrimRangeSeconds))
}
