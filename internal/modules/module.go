// Package modules wraps recon tools as modules: one process per run, output
// normalized into a node/edge batch and an outcome status.
package modules

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"attackgraph/internal/executor"
	"attackgraph/pkg/models"
)

var (
	// ErrUnknownModule is returned by Registry.Get for unregistered names.
	ErrUnknownModule = errors.New("unknown module")
	// ErrUnsupportedAuth is recorded when a session's credential kind is not
	// accepted by the module.
	ErrUnsupportedAuth = errors.New("auth method not supported")
)

// Module is the closed contract every recon module implements. Run never
// returns an error; the outcome is encoded in ModuleResult.Status.
type Module interface {
	Name() string
	// Proto is the protocol the module speaks, used for pacing and caching.
	Proto() string
	SupportedAuth() []models.AuthMethod
	Run(ctx context.Context, session models.Session, target models.Target) models.ModuleResult
}

// Env carries what modules need to run tools.
type Env struct {
	Runner    executor.Runner
	Artifacts *executor.Artifacts
	// Timeouts override the per-module default, keyed by module name.
	Timeouts map[string]time.Duration
	Now      func() time.Time
	NewID    func() string
}

func (e Env) withDefaults() Env {
	if e.Runner == nil {
		e.Runner = executor.New(0)
	}
	if e.Artifacts == nil {
		e.Artifacts = executor.NewArtifacts("")
	}
	if e.Now == nil {
		e.Now = func() time.Time { return time.Now().UTC() }
	}
	if e.NewID == nil {
		e.NewID = uuid.NewString
	}
	return e
}

func (e Env) timeout(module string, def time.Duration) time.Duration {
	if d, ok := e.Timeouts[module]; ok && d > 0 {
		return d
	}
	return def
}

// Registry maps module names to modules.
type Registry map[string]Module

// NewRegistry builds the registry of every built-in module.
func NewRegistry(env Env) Registry {
	env = env.withDefaults()
	r := Registry{}
	for _, m := range []Module{
		newLDAPEnum(env),
		newSMBEnum(env),
		newADCSEnum(env),
		newSSHEnum(env),
		newFTPEnum(env),
		newMySQLEnum(env),
	} {
		r[m.Name()] = m
	}
	return r
}

// Get looks a module up by name.
func (r Registry) Get(name string) (Module, error) {
	m, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	return m, nil
}

// Select returns a registry restricted to names. An empty list keeps every
// module.
func (r Registry) Select(names []string) (Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	out := make(Registry, len(names))
	for _, name := range names {
		m, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out[name] = m
	}
	return out, nil
}

// Names returns the registered module names in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Supports reports whether m accepts the session's credential kind.
func Supports(m Module, method models.AuthMethod) bool {
	for _, a := range m.SupportedAuth() {
		if a == method {
			return true
		}
	}
	return false
}
