// Package prefs is the typed preference registry backing the panel settings.
// Every option is declared up front with its default, its validator and its
// own change-listener list; unknown names and out-of-range values are
// rejected instead of silently stored.
package prefs

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
)

const storagePrefix = "preferences."

// legacyMutedKey predates the preference registry; it is migrated into
// soundsMuted on startup.
const legacyMutedKey = "muted"

// Option names.
const (
	AvatarHoverEffect = "avatarHoverEffect"
	AvatarListStyle   = "avatarListStyle"
	SoundsMuted       = "soundsMuted"
	ShowFilter        = "showFilter"
)

// Store is the backing key/value persistence.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Listener observes one option's raw value transitions.
type Listener func(name, oldValue, newValue string)

type option struct {
	def      string
	validate func(string) bool
}

// Preferences exposes typed access to the registered options.
type Preferences struct {
	store Store

	mu        sync.Mutex
	opts      map[string]option
	listeners map[string][]Listener
}

// New registers the known options over the given store.
func New(store Store) *Preferences {
	p := &Preferences{
		store:     store,
		opts:      make(map[string]option),
		listeners: make(map[string][]Listener),
	}
	p.registerEnum(AvatarHoverEffect, "small-to-large", []string{"slide-in", "small-to-large"})
	p.registerEnum(AvatarListStyle, "icons", []string{"icons", "details"})
	p.registerBool(SoundsMuted, false)
	p.registerBool(ShowFilter, true)
	return p
}

func (p *Preferences) registerEnum(name, def string, allowed []string) {
	p.opts[name] = option{def: def, validate: func(v string) bool { return slices.Contains(allowed, v) }}
}

func (p *Preferences) registerBool(name string, def bool) {
	p.opts[name] = option{
		def:      strconv.FormatBool(def),
		validate: func(v string) bool { return v == "true" || v == "false" },
	}
}

// Subscribe adds a change listener for one option. Unknown names error.
func (p *Preferences) Subscribe(name string, fn Listener) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.opts[name]; !ok {
		return fmt.Errorf("prefs: unknown preference %q", name)
	}
	p.listeners[name] = append(p.listeners[name], fn)
	return nil
}

// Get returns the raw value of an option, falling back to its default.
func (p *Preferences) Get(ctx context.Context, name string) (string, error) {
	p.mu.Lock()
	opt, ok := p.opts[name]
	p.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("prefs: unknown preference %q", name)
	}
	v, found, err := p.store.Get(ctx, storagePrefix+name)
	if err != nil {
		return "", err
	}
	if !found {
		return opt.def, nil
	}
	return v, nil
}

// Set validates and stores an option value, then fires that option's
// listeners. Setting the current value is a no-op.
func (p *Preferences) Set(ctx context.Context, name, value string) error {
	p.mu.Lock()
	opt, ok := p.opts[name]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("prefs: unknown preference %q", name)
	}
	if !opt.validate(value) {
		return fmt.Errorf("prefs: invalid value %q for %q", value, name)
	}
	old, err := p.Get(ctx, name)
	if err != nil {
		return err
	}
	if old == value {
		return nil
	}
	if err := p.store.Set(ctx, storagePrefix+name, value); err != nil {
		return err
	}
	p.mu.Lock()
	fns := append([]Listener(nil), p.listeners[name]...)
	p.mu.Unlock()
	for _, fn := range fns {
		fn(name, old, value)
	}
	return nil
}

// GetBool reads a boolean option.
func (p *Preferences) GetBool(ctx context.Context, name string) (bool, error) {
	v, err := p.Get(ctx, name)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// SetBool writes a boolean option.
func (p *Preferences) SetBool(ctx context.Context, name string, value bool) error {
	return p.Set(ctx, name, strconv.FormatBool(value))
}

// MigrateLegacy moves the pre-registry muted flag into soundsMuted and
// deletes the old key. Safe to run on every startup.
func (p *Preferences) MigrateLegacy(ctx context.Context) error {
	v, ok, err := p.store.Get(ctx, legacyMutedKey)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := p.SetBool(ctx, SoundsMuted, v == "true"); err != nil {
		return err
	}
	return p.store.Delete(ctx, legacyMutedKey)
}

// All returns every option's effective value, for the settings surface.
func (p *Preferences) All(ctx context.Context) (map[string]string, error) {
	p.mu.Lock()
	names := make([]string, 0, len(p.opts))
	for name := range p.opts {
		names = append(names, name)
	}
	p.mu.Unlock()
	out := make(map[string]string, len(names))
	for _, name := range names {
		v, err := p.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}
