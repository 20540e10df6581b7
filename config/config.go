package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// Settings is the persisted configuration for the gateway.
type Settings struct {
	Server   ServerSettings   `json:"server"`
	Database DatabaseSettings `json:"database"`
	Player   PlayerSettings   `json:"player"`
	Log      LogSettings      `json:"log"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Address returns the listen address in host:port form.
func (s ServerSettings) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseSettings configures the camera directory store.
type DatabaseSettings struct {
	Path string `json:"path"`
}

// PlayerSettings tunes the playback pipeline. Durations are seconds.
type PlayerSettings struct {
	// CodecCandidates is the ordered negotiation list, most capable first.
	// Static configuration, never derived from the stream.
	CodecCandidates []string `json:"codecCandidates"`
	// EvictAfterSeconds is the played-but-buffered margin that triggers a
	// routine trim before the next append.
	EvictAfterSeconds int `json:"evictAfterSeconds"`
	// RewindMarginSeconds of already-played data survive every trim.
	RewindMarginSeconds int `json:"rewindMarginSeconds"`
	// MinTrimRangeSeconds is the smallest buffered range worth halving
	// during quota recovery; below it the segment is dropped instead.
	MinTrimRangeSeconds int `json:"minTrimRangeSeconds"`
	// ChunkBytes is the read size of the byte-stream source.
	ChunkBytes int `json:"chunkBytes"`
	// ReconnectAttempts bounds the manager-level reconnect policy.
	// Zero disables automatic reconnection.
	ReconnectAttempts int `json:"reconnectAttempts"`
	// ReconnectDelaySeconds is the initial backoff delay between attempts.
	ReconnectDelaySeconds int `json:"reconnectDelaySeconds"`
	// RemuxTemplate is the HTTP endpoint of the external RTSP remuxer,
	// with {url} standing in for the escaped camera URL. Empty means RTSP
	// cameras cannot be played.
	RemuxTemplate string `json:"remuxTemplate"`
}

// EvictAfter returns the eviction threshold as a duration.
func (p PlayerSettings) EvictAfter() time.Duration {
	return time.Duration(p.EvictAfterSeconds) * time.Second
}

// RewindMargin returns the rewind margin as a duration.
func (p PlayerSettings) RewindMargin() time.Duration {
	return time.Duration(p.RewindMarginSeconds) * time.Second
}

// MinTrimRange returns the quota-recovery floor as a duration.
func (p PlayerSettings) MinTrimRange() time.Duration {
	return time.Duration(p.MinTrimRangeSeconds) * time.Second
}

// LogSettings configures file logging rotation.
type LogSettings struct {
	File       string `json:"file"`
	MaxSizeMB  int    `json:"maxSizeMb"`
	MaxBackups int    `json:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays"`
}

// DefaultSettings returns the configuration used when no settings file exists.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseSettings{
			Path: "data/cameras.db",
		},
		Player: PlayerSettings{
			CodecCandidates: []string{
				"avc1.640028", // high 4.0
				"avc1.64001f", // high 3.1
				"avc1.4d401f", // main 3.1
				"avc1.42e01e", // baseline 3.0
			},
			EvictAfterSeconds:     30,
			RewindMarginSeconds:   10,
			MinTrimRangeSeconds:   5,
			ChunkBytes:            64 * 1024,
			ReconnectAttempts:     0,
			ReconnectDelaySeconds: 2,
		},
		Log: LogSettings{
			File:       "",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// Manager loads and saves settings behind a lock. The filesystem is
// abstracted so tests can run against an in-memory backend.
type Manager struct {
	fs   afero.Fs
	path string
	mu   sync.RWMutex
}

// NewManager returns a manager persisting to the OS filesystem.
func NewManager(path string) *Manager {
	return NewManagerFs(afero.NewOsFs(), path)
}

// NewManagerFs returns a manager persisting to the supplied filesystem.
func NewManagerFs(fs afero.Fs, path string) *Manager {
	return &Manager{fs: fs, path: path}
}

// Load reads settings from disk, falling back to defaults when the file
// does not exist yet.
func (m *Manager) Load() (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exists, err := afero.Exists(m.fs, m.path)
	if err != nil {
		return Settings{}, fmt.Errorf("stat settings: %w", err)
	}
	if !exists {
		return DefaultSettings(), nil
	}

	data, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}

	return settings, nil
}

// Save writes settings to disk, creating the parent directory when needed.
func (m *Manager) Save(settings Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if dir := filepath.Dir(m.path); dir != "" && dir != "." {
		if err := m.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings directory: %w", err)
		}
	}

	if err := afero.WriteFile(m.fs, m.path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}
