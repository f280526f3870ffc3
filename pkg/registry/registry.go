// Package registry merges built-in tool specifications with
// catalog-loaded ones into a single hot-reloadable mapping. The merged
// mapping is an immutable snapshot behind an atomic pointer: readers
// never lock and never observe a partially-rebuilt registry.
package registry

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/opspilot/toolgate/pkg/catalog"
)

// DefaultRequiredTools must be present after every reload. A missing
// required tool is an error-level diagnostic, not a startup failure:
// operators may intentionally run a reduced tool set.
var DefaultRequiredTools = []string{"asset_count", "asset_search", "windows_list_directory"}

// Hooks are injectable observability callbacks fired on load/reload.
// Nil hooks are skipped.
type Hooks struct {
	// OnLoad fires after every successful merge with the new tool count.
	OnLoad func(toolCount int)
	// OnReload fires once per reload attempt.
	OnReload func()
	// OnLoadWarning fires once per warning produced by a load cycle.
	OnLoadWarning func()
}

// ReloadReport summarizes one load/reload cycle.
type ReloadReport struct {
	Count           int      `json:"count"`
	Tools           []string `json:"tools"`
	MissingRequired []string `json:"missing_required"`
	Warnings        []string `json:"warnings,omitempty"`
	CatalogDirs     []string `json:"catalog_dirs"`
}

// Filter narrows a List call. Provided fields are a conjunction; absent
// fields impose no constraint.
type Filter struct {
	Platform string
	Category string
	Tags     []string
}

type snapshot struct {
	tools map[string]catalog.ToolSpec
	names []string
}

// Registry is the authoritative tool mapping. Construct it once at
// process start and inject it where needed; do not treat it as ambient
// global state.
type Registry struct {
	loader   *catalog.Loader
	dirs     []string
	builtins []catalog.ToolSpec
	required []string
	hooks    Hooks

	mu   sync.RWMutex // guards snap replacement; readers use Load
	snap *snapshot

	reloadMu sync.Mutex // serializes rebuilds
}

// Options configures a Registry.
type Options struct {
	CatalogDirs []string
	Builtins    []catalog.ToolSpec

	// RequiredTools overrides DefaultRequiredTools when non-nil.
	RequiredTools []string

	Hooks Hooks
}

// New creates the registry and performs the initial load.
func New(opts Options) (*Registry, ReloadReport) {
	required := opts.RequiredTools
	if required == nil {
		required = DefaultRequiredTools
	}

	r := &Registry{
		loader:   catalog.NewLoader(),
		dirs:     opts.CatalogDirs,
		builtins: opts.Builtins,
		required: required,
		hooks:    opts.Hooks,
		snap:     &snapshot{tools: map[string]catalog.ToolSpec{}},
	}

	report := r.Reload()
	return r, report
}

// Reload rescans the catalog directories, re-merges with the built-ins
// and atomically replaces the mapping. Safe to call concurrently with
// Get/List; concurrent Reload calls are serialized. Catalog problems
// become warnings, never errors.
func (r *Registry) Reload() ReloadReport {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	loaded, warnings := r.loader.Load(r.dirs)

	merged := make(map[string]catalog.ToolSpec, len(r.builtins)+len(loaded))
	for _, b := range r.builtins {
		spec := b
		spec.Normalize()
		if spec.Origin == "" {
			spec.Origin = "builtin"
		}
		merged[spec.Name] = spec
	}
	for name, spec := range loaded {
		if prev, ok := merged[name]; ok {
			warnings = append(warnings, "tool "+name+" from "+spec.Origin+" overrides built-in definition")
			log.Warn().
				Str("tool", name).
				Str("catalog", spec.Origin).
				Str("overridden", prev.Origin).
				Msg("Catalog tool overrides built-in")
		}
		merged[name] = spec
	}

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	var missing []string
	for _, name := range r.required {
		if _, ok := merged[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		log.Error().Strs("tools", missing).Msg("Required tools missing after reload")
	}

	r.mu.Lock()
	r.snap = &snapshot{tools: merged, names: names}
	r.mu.Unlock()

	if r.hooks.OnReload != nil {
		r.hooks.OnReload()
	}
	if r.hooks.OnLoad != nil {
		r.hooks.OnLoad(len(merged))
	}

	for _, w := range warnings {
		log.Warn().Msg(w)
		if r.hooks.OnLoadWarning != nil {
			r.hooks.OnLoadWarning()
		}
	}

	log.Info().
		Int("tools", len(merged)).
		Int("warnings", len(warnings)).
		Msg("Tool registry reloaded")

	return ReloadReport{
		Count:           len(merged),
		Tools:           names,
		MissingRequired: missing,
		Warnings:        warnings,
		CatalogDirs:     r.dirs,
	}
}

func (r *Registry) snapshot() *snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Get returns the spec for a tool name.
func (r *Registry) Get(name string) (catalog.ToolSpec, bool) {
	spec, ok := r.snapshot().tools[name]
	return spec, ok
}

// List returns specs matching the filter, ordered by name.
func (r *Registry) List(f Filter) []catalog.ToolSpec {
	snap := r.snapshot()

	out := make([]catalog.ToolSpec, 0, len(snap.names))
	for _, name := range snap.names {
		spec := snap.tools[name]
		if f.Platform != "" && string(spec.Platform) != f.Platform {
			continue
		}
		if f.Category != "" && spec.Category != f.Category {
			continue
		}
		if !hasAllTags(spec.Tags, f.Tags) {
			continue
		}
		out = append(out, spec)
	}
	return out
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	return len(r.snapshot().names)
}

// CatalogDirs returns the configured catalog directories in priority
// order.
func (r *Registry) CatalogDirs() []string {
	return r.dirs
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
