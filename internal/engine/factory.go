package engine

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/audioscribe/internal/model"
)

// ErrEngineNotRegistered is returned by [Factory.New] when no constructor
// has been registered for the requested engine type.
var ErrEngineNotRegistered = errors.New("engine: engine type not registered")

// Constructor builds an unloaded [Backend] for the given spec. It must not
// perform any expensive work; loading happens later via [Backend.Load].
type Constructor func(spec model.Spec) (Backend, error)

// Factory maps engine types to backend constructors. It is safe for
// concurrent use, though in practice registrations all happen at startup.
type Factory struct {
	mu           sync.RWMutex
	constructors map[model.EngineType]Constructor
}

// NewFactory returns an empty, ready-to-use [Factory].
func NewFactory() *Factory {
	return &Factory{constructors: make(map[model.EngineType]Constructor)}
}

// Register wires a constructor for the given engine type. Subsequent calls
// with the same type overwrite the previous registration.
func (f *Factory) Register(t model.EngineType, c Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[t] = c
}

// New instantiates an unloaded backend for spec using the constructor
// registered under spec.EngineType. Returns [ErrEngineNotRegistered] if no
// constructor has been registered for that type.
func (f *Factory) New(spec model.Spec) (Backend, error) {
	f.mu.RLock()
	c, ok := f.constructors[spec.EngineType]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrEngineNotRegistered, spec.EngineType)
	}
	return c(spec)
}
