package providers

// Registry is the read-only view of provider configuration established at
// startup. A provider that is configured but disabled resolves exactly like
// an unknown one, so callers cannot probe which providers exist.
type Registry struct {
	providers map[string]Config
}

// NewRegistry copies the given configs, applying per-provider defaults.
func NewRegistry(cfgs map[string]Config) *Registry {
	m := make(map[string]Config, len(cfgs))
	for name, cfg := range cfgs {
		m[name] = withDefaults(name, cfg)
	}
	return &Registry{providers: m}
}

// Resolve returns the configuration for an enabled provider. Unknown and
// disabled providers are indistinguishable to the caller.
func (r *Registry) Resolve(name string) (Config, bool) {
	cfg, ok := r.providers[name]
	if !ok || !cfg.Enabled {
		return Config{}, false
	}
	return cfg, true
}

// Names returns the slugs of all enabled providers.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for name, cfg := range r.providers {
		if cfg.Enabled {
			out = append(out, name)
		}
	}
	return out
}
