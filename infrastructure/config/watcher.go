package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	domainconfig "careflow-backend/domain/config"
)

// DynamicConfig is the runtime-changeable part of the configuration,
// reloaded from a JSON file without a restart.
type DynamicConfig struct {
	Limits    DynamicLimits   `json:"limits"`
	WebSocket WebSocketConfig `json:"websocket"`
	Metadata  ConfigMetadata  `json:"metadata"`
}

// DynamicLimits holds the canvas limits operators may tune live. The
// duplicate-types flag is a pointer so an absent key keeps the default
// instead of reading as false.
type DynamicLimits struct {
	MaxNodes                     int   `json:"maxNodes"`
	MaxConnections               int   `json:"maxConnections"`
	AllowDuplicateComponentTypes *bool `json:"allowDuplicateComponentTypes,omitempty"`
}

// WebSocketConfig holds WebSocket tuning
type WebSocketConfig struct {
	MaxConnectionsPerUser int `json:"maxConnectionsPerUser"`
	MessageQueueSize      int `json:"messageQueueSize"`
	HeartbeatInterval     int `json:"heartbeatInterval"` // seconds
}

// ConfigMetadata holds metadata about the configuration
type ConfigMetadata struct {
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
	UpdatedBy string    `json:"updatedBy"`
}

// DomainRules projects the live limits onto the domain rule set, keeping
// defaults for anything the file leaves at zero
func (d *DynamicConfig) DomainRules() *domainconfig.DomainConfig {
	rules := domainconfig.DefaultDomainConfig()
	if d == nil {
		return rules
	}
	if d.Limits.MaxNodes > 0 {
		rules.MaxNodes = d.Limits.MaxNodes
	}
	if d.Limits.MaxConnections > 0 {
		rules.MaxConnections = d.Limits.MaxConnections
	}
	if d.Limits.AllowDuplicateComponentTypes != nil {
		rules.AllowDuplicateComponentTypes = *d.Limits.AllowDuplicateComponentTypes
	}
	return rules
}

// ConfigWatcher watches the dynamic configuration file for changes
type ConfigWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	current  *DynamicConfig
	mu       sync.RWMutex
	onChange []func(*DynamicConfig)
	logger   *zap.Logger
	stopCh   chan struct{}
}

// NewConfigWatcher loads the initial dynamic configuration and starts
// watching its file
func NewConfigWatcher(configPath string, logger *zap.Logger) (*ConfigWatcher, error) {
	cfg, err := loadDynamicConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	// Watch the directory too: editors and configmap mounts swap the file
	// with a rename, which drops the file-level watch
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		logger.Warn("failed to watch config directory", zap.Error(err))
	}

	return &ConfigWatcher{
		path:    configPath,
		watcher: watcher,
		current: cfg,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching for configuration changes
func (w *ConfigWatcher) Start() {
	go w.watchLoop()
	w.logger.Info("configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching for configuration changes
func (w *ConfigWatcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

// Current returns the current dynamic configuration
func (w *ConfigWatcher) Current() *DynamicConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback invoked after each successful reload
func (w *ConfigWatcher) OnChange(fn func(*DynamicConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

func (w *ConfigWatcher) watchLoop() {
	var debounceTimer *time.Timer
	debounceDuration := 100 * time.Millisecond

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(debounceDuration, func() {
					w.reload()
				})
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", zap.Error(err))
		}
	}
}

func (w *ConfigWatcher) reload() {
	newConfig, err := loadDynamicConfig(w.path)
	if err != nil {
		w.logger.Error("failed to reload configuration", zap.Error(err))
		return
	}
	if err := validateDynamicConfig(newConfig); err != nil {
		w.logger.Error("invalid configuration, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = newConfig
	handlers := append(([]func(*DynamicConfig))(nil), w.onChange...)
	w.mu.Unlock()

	for _, handler := range handlers {
		go handler(newConfig)
	}

	w.logger.Info("configuration reloaded",
		zap.String("version", newConfig.Metadata.Version))
}

func loadDynamicConfig(path string) (*DynamicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg DynamicConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateDynamicConfig(cfg *DynamicConfig) error {
	if cfg.Limits.MaxNodes <= 0 {
		return fmt.Errorf("maxNodes must be positive")
	}
	if cfg.Limits.MaxConnections < 0 {
		return fmt.Errorf("maxConnections cannot be negative")
	}
	if cfg.WebSocket.MessageQueueSize < 0 {
		return fmt.Errorf("messageQueueSize cannot be negative")
	}
	return nil
}
