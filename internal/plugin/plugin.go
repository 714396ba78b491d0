// Package plugin implements the tool registry: a name-unique set of
// plugins gated by the permission lattice, dispatched by the provider on
// the model's behalf.
package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Cooksey99/nucleus/internal/nucleuserr"
	"github.com/Cooksey99/nucleus/internal/permission"
)

// Plugin is an externally implemented capability the model may invoke by
// emitting a structured tool call.
type Plugin interface {
	// Name is the unique identifier used in tool calls and registration.
	Name() string

	// Description is shown to the model to help it decide when to call
	// this plugin.
	Description() string

	// ParameterSchema is a JSON Schema object describing the plugin's
	// expected input.
	ParameterSchema() map[string]interface{}

	// RequiredPermission is the minimum permission the registry must be
	// granted for this plugin to be registrable.
	RequiredPermission() permission.Permission

	// Execute runs the plugin against args, which has already been
	// validated against ParameterSchema by the registry.
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry holds name -> plugin and a single granted permission applying to
// every registration. It is built at startup and is effectively read-only
// thereafter: register returns false once called for a given name, and
// concurrent Get/Execute calls need no locking beyond what an individual
// plugin's own Execute implementation requires.
type Registry struct {
	mu       sync.RWMutex
	granted  permission.Permission
	plugins  map[string]Plugin
}

// NewRegistry creates a Registry granted the given permission.
func NewRegistry(granted permission.Permission) *Registry {
	return &Registry{
		granted: granted,
		plugins: make(map[string]Plugin),
	}
}

// Register adds plugin to the registry, returning false if the registry's
// granted permission does not allow plugin's required permission, or if the
// name is already registered. A plugin that fails to register here is never
// retrievable via Get.
func (r *Registry) Register(p Plugin) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.granted.Allows(p.RequiredPermission()) {
		return false
	}
	if _, exists := r.plugins[p.Name()]; exists {
		return false
	}
	r.plugins[p.Name()] = p
	return true
}

// Get returns the plugin registered under name, or ok=false if none exists
// (including plugins that were denied registration).
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// All returns every registered plugin, in no particular order.
func (r *Registry) All() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	return out
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// Execute looks up name, validates args against its declared schema at a
// structural level (object vs required keys present), runs it, and returns
// its textual output or a typed error (plugin_unknown, plugin_invalid_input,
// plugin_execution).
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	p, ok := r.Get(name)
	if !ok {
		return "", nucleuserr.New(nucleuserr.KindPluginUnknown, fmt.Sprintf("no plugin registered with name %q", name))
	}

	if err := validateAgainstSchema(args, p.ParameterSchema()); err != nil {
		return "", nucleuserr.Wrap(nucleuserr.KindPluginInvalidInput, fmt.Sprintf("invalid input for plugin %q", name), err)
	}

	out, err := p.Execute(ctx, args)
	if err != nil {
		return "", nucleuserr.Wrap(nucleuserr.KindPluginExecution, fmt.Sprintf("plugin %q execution failed", name), err)
	}
	return out, nil
}

// validateAgainstSchema checks that args parses as a JSON object and
// contains every key schema.required declares. It deliberately does not
// implement full JSON Schema validation (types, formats, nested schemas) —
// the spec only requires that malformed or incomplete input be rejected
// before reaching a plugin's Execute.
func validateAgainstSchema(args json.RawMessage, schema map[string]interface{}) error {
	var obj map[string]interface{}
	if len(args) == 0 {
		obj = map[string]interface{}{}
	} else if err := json.Unmarshal(args, &obj); err != nil {
		return fmt.Errorf("arguments are not a JSON object: %w", err)
	}

	required, _ := schema["required"].([]interface{})
	for _, r := range required {
		key, ok := r.(string)
		if !ok {
			continue
		}
		if _, present := obj[key]; !present {
			return fmt.Errorf("missing required field %q", key)
		}
	}
	return nil
}

// Specs returns the {name, description, parameters} view of every
// registered plugin, the shape the provider converts to tool definitions.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]Spec, 0, len(r.plugins))
	for _, p := range r.plugins {
		specs = append(specs, Spec{
			Name:        p.Name(),
			Description: p.Description(),
			Parameters:  p.ParameterSchema(),
		})
	}
	return specs
}

// Spec is the tool-definition view of a Plugin, handed to a provider
// backend or an MCP tool registration.
type Spec struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}
