package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Manager owns the live configuration and swaps it when the file changes.
// Published configs are never mutated, so a *Config obtained from Current
// is a consistent snapshot.
type Manager struct {
	viper      *viper.Viper
	validate   *validator.Validate
	configLock sync.RWMutex
	config     *Config
	onChange   []func(*Config)
}

// NewManager loads the file at path. A load error is returned before
// anything starts.
func NewManager(path string) (*Manager, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{viper: v, validate: newValidator()}
	cfg, err := decode(v, m.validate)
	if err != nil {
		return nil, err
	}
	m.config = cfg
	return m, nil
}

// Current returns the latest valid configuration.
func (m *Manager) Current() *Config {
	m.configLock.RLock()
	defer m.configLock.RUnlock()
	return m.config
}

// OnChange registers a callback run after every successful reload.
func (m *Manager) OnChange(fn func(*Config)) {
	m.configLock.Lock()
	m.onChange = append(m.onChange, fn)
	m.configLock.Unlock()
}

// Watch starts hot reloading on file changes.
func (m *Manager) Watch() {
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		if err := m.Reload(); err != nil {
			log.Warn().Err(err).Str("file", e.Name).Msg("config reload rejected, keeping previous config")
			return
		}
		log.Info().Str("file", e.Name).Msg("config reloaded")
	})
	m.viper.WatchConfig()
}

// Reload re-reads the file. On error the previous config stays active.
func (m *Manager) Reload() error {
	if err := m.viper.ReadInConfig(); err != nil {
		return err
	}
	cfg, err := decode(m.viper, m.validate)
	if err != nil {
		return err
	}

	m.configLock.Lock()
	m.config = cfg
	callbacks := append([]func(*Config){}, m.onChange...)
	m.configLock.Unlock()

	for _, fn := range callbacks {
		fn(cfg)
	}
	return nil
}
