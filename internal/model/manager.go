package model

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/example/lingoflow/internal/config"
	"github.com/example/lingoflow/internal/errcode"
	"github.com/example/lingoflow/internal/provider"
)

// Factory builds a provider for one model id. The default factory reads
// the provider type from configuration; tests substitute stubs here.
type Factory func(cfg *config.Config, modelID string) provider.Provider

// DefaultFactory constructs the configured provider type. Remote providers
// ignore the model directory and use their configured endpoint; the local
// provider hosts models/<id>.
func DefaultFactory(logger *slog.Logger) Factory {
	return func(cfg *config.Config, modelID string) provider.Provider {
		p := cfg.Model.Provider
		switch p.Type {
		case "openai":
			return provider.NewRemote(provider.KindOpenAI, p.OpenAI, nil, logger)
		case "huggingface":
			return provider.NewRemote(provider.KindHuggingFace, p.HuggingFace, nil, logger)
		default:
			local := p.Local
			path := filepath.Join(cfg.ModelsDir(), modelID)
			if modelID == "" {
				if local.Path != "" {
					path = local.Path
				} else {
					path = filepath.Join(cfg.ModelsDir(), local.Name)
				}
			}
			return provider.NewLocal(local, path, logger)
		}
	}
}

// Manager owns the single process-wide active provider slot. One writer
// (the switcher) and many readers (request handlers) share it; readers
// never observe a torn value.
type Manager struct {
	cfg     *config.Config
	factory Factory
	logger  *slog.Logger

	// busy reports in-flight translations; a non-forced switch is
	// rejected while it is positive.
	busy func() int

	mu        sync.RWMutex
	active    provider.Provider
	activeID  string
	switching bool
}

// NewManager creates a Manager. busy may be nil, in which case switches
// are never rejected for load.
func NewManager(cfg *config.Config, factory Factory, busy func() int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if busy == nil {
		busy = func() int { return 0 }
	}
	return &Manager{cfg: cfg, factory: factory, busy: busy, logger: logger}
}

// Active returns the current provider and its model id; the provider is
// nil when nothing is loaded.
func (m *Manager) Active() (provider.Provider, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active, m.activeID
}

// ActiveID returns the process-wide active model id, or "".
func (m *Manager) ActiveID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeID
}

// State reports the active provider's lifecycle state.
func (m *Manager) State() provider.State {
	if p, _ := m.Active(); p != nil {
		return p.State()
	}
	return provider.StateNotLoaded
}

// IsLoaded reports whether a provider is active and loaded.
func (m *Manager) IsLoaded() bool { return m.State() == provider.StateLoaded }

// ExecutionMode reports where inference runs; CPU when nothing is loaded.
func (m *Manager) ExecutionMode() provider.Mode {
	if p, _ := m.Active(); p != nil {
		return p.ExecutionMode()
	}
	return provider.ModeCPU
}

// Progress reports the active provider's load progress in [0,100].
func (m *Manager) Progress() float64 {
	if p, _ := m.Active(); p != nil {
		return p.Progress()
	}
	return 0
}

// ErrorMessage reports the active provider's last error.
func (m *Manager) ErrorMessage() string {
	if p, _ := m.Active(); p != nil {
		return p.ErrorMessage()
	}
	return ""
}

// EnsureLoaded makes sure some provider is loaded, constructing the
// default one on first use. The first-use path is fail-closed: if a load
// is already in progress the caller gets MODEL_NOT_LOADED immediately
// instead of queueing behind a long load.
func (m *Manager) EnsureLoaded(ctx context.Context) error {
	m.mu.Lock()
	if m.active == nil {
		id := m.defaultModelID()
		m.active = m.factory(m.cfg, id)
		m.activeID = id
	}
	p := m.active
	m.mu.Unlock()

	if p.State() == provider.StateLoaded {
		return nil
	}
	if err := p.Load(ctx); err != nil {
		if errors.Is(err, provider.ErrLoadInProgress) {
			return errcode.New(errcode.ModelNotLoaded)
		}
		m.logger.Error("model load failed", "err", err)
		return errcode.New(errcode.ModelNotLoaded)
	}
	return nil
}

// defaultModelID picks the configured model name for the local provider;
// remote providers have no catalog identity.
func (m *Manager) defaultModelID() string {
	if m.cfg.Model.Provider.Type == "local" || m.cfg.Model.Provider.Type == "" {
		if name := m.cfg.Model.Provider.Local.Name; name != "" {
			return name
		}
	}
	return ""
}

// Switch atomically replaces the active provider with one for modelID.
// With force false the switch is rejected while requests are in flight.
// On load failure the active slot is left empty and MODEL_SWITCH_FAILED
// returned.
func (m *Manager) Switch(ctx context.Context, modelID string, force bool) error {
	if err := ValidateModelID(modelID); err != nil {
		return errcode.New(errcode.ModelInvalidID)
	}
	if _, ok := Find(m.cfg.ModelsDir(), modelID); !ok {
		return errcode.New(errcode.ModelNotFound)
	}

	m.mu.Lock()
	if m.switching {
		m.mu.Unlock()
		return errcode.New(errcode.ModelSwitchInProgress)
	}
	if !force && m.busy() > 0 {
		m.mu.Unlock()
		return errcode.New(errcode.ModelSwitchRejected)
	}
	m.switching = true
	old := m.active
	m.active = nil
	m.activeID = ""
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.switching = false
		m.mu.Unlock()
	}()

	if old != nil {
		old.Unload()
	}

	next := m.factory(m.cfg, modelID)
	if err := next.Load(ctx); err != nil {
		next.Unload()
		m.logger.Error("model switch failed", "model_id", modelID, "err", err)
		return errcode.New(errcode.ModelSwitchFailed)
	}

	m.mu.Lock()
	m.active = next
	m.activeID = modelID
	m.mu.Unlock()

	m.logger.Info("model switched", "model_id", modelID, "mode", next.ExecutionMode())
	return nil
}

// Unload releases the active provider, leaving the slot empty. Safe to
// call with nothing loaded.
func (m *Manager) Unload() {
	m.mu.Lock()
	old := m.active
	m.active = nil
	m.activeID = ""
	m.mu.Unlock()

	if old != nil {
		old.Unload()
	}
	m.logger.Info("model unloaded")
}
