package services

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"transkribator/internal/logging"
	"transkribator/internal/pipeline"
)

// Service kinds accepted on the left side of an override.
const (
	KindPrepare    = "prepare"
	KindDownload   = "download"
	KindTranscribe = "transcribe"
	KindFinalize   = "finalize"
	KindDeliver    = "deliver"
	KindCleanup    = "cleanup"
)

var kinds = []string{KindPrepare, KindDownload, KindTranscribe, KindFinalize, KindDeliver, KindCleanup}

// SetFactory builds a complete service set. It is invoked once per Build.
type SetFactory func() (pipeline.Services, error)

// Catalog maps names to service providers and sets.
type Catalog struct {
	mu        sync.RWMutex
	defaults  pipeline.Services
	providers map[string]pipeline.Services
	sets      map[string]SetFactory
	logger    *slog.Logger
}

// NewCatalog creates a catalog whose unqualified builds start from defaults.
func NewCatalog(defaults pipeline.Services, logger *slog.Logger) *Catalog {
	return &Catalog{
		defaults:  defaults,
		providers: make(map[string]pipeline.Services),
		sets:      make(map[string]SetFactory),
		logger:    logging.NewComponentLogger(logger, "services"),
	}
}

// RegisterProvider makes the non-nil services of partial selectable by name.
func (c *Catalog) RegisterProvider(name string, partial pipeline.Services) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[strings.ToLower(strings.TrimSpace(name))] = partial
}

// RegisterSet makes factory selectable through "set:NAME".
func (c *Catalog) RegisterSet(name string, factory SetFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets[strings.ToLower(strings.TrimSpace(name))] = factory
}

// Providers lists registered provider names.
func (c *Catalog) Providers() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.providers)
}

// Sets lists registered set names.
func (c *Catalog) Sets() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.sets)
}

// Build resolves spec into a complete service set.
func (c *Catalog) Build(spec string) (pipeline.Services, error) {
	setName, overrides, err := parseSpec(spec)
	if err != nil {
		return pipeline.Services{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	base := c.defaults
	if setName != "" {
		factory, ok := c.sets[setName]
		if !ok {
			return pipeline.Services{}, fmt.Errorf("%w: set %q (available: %s)", ErrUnknownService, setName, listOrNone(sortedKeys(c.sets)))
		}
		built, err := factory()
		if err != nil {
			return pipeline.Services{}, fmt.Errorf("build service set %q: %w", setName, err)
		}
		base = base.Override(built)
	}

	applied := make([]string, 0, len(overrides))
	for _, o := range overrides {
		provider, ok := c.providers[o.provider]
		if !ok {
			return pipeline.Services{}, fmt.Errorf("%w: provider %q for %s (available: %s)", ErrUnknownService, o.provider, o.kind, listOrNone(sortedKeys(c.providers)))
		}
		partial, ok := pick(provider, o.kind)
		if !ok {
			return pipeline.Services{}, fmt.Errorf("%w: provider %q has no %s service", ErrUnknownService, o.provider, o.kind)
		}
		base = base.Override(partial)
		applied = append(applied, o.kind+"="+o.provider)
	}

	if err := base.Validate(); err != nil {
		return pipeline.Services{}, err
	}
	c.logger.Debug("media services constructed",
		logging.String("set", setName),
		logging.Any("overrides", applied),
	)
	return base, nil
}

type override struct {
	kind     string
	provider string
}

func parseSpec(spec string) (string, []override, error) {
	var (
		setName   string
		overrides []override
	)
	for _, token := range strings.Split(spec, ",") {
		token = strings.ToLower(strings.TrimSpace(token))
		if token == "" {
			continue
		}
		if name, ok := strings.CutPrefix(token, "set:"); ok {
			name = strings.TrimSpace(name)
			if name == "" {
				return "", nil, fmt.Errorf("%w: empty set name", ErrInvalidOverride)
			}
			if setName != "" {
				return "", nil, fmt.Errorf("%w: more than one set (%s, %s)", ErrInvalidOverride, setName, name)
			}
			setName = name
			continue
		}
		kind, provider, ok := strings.Cut(token, "=")
		kind, provider = strings.TrimSpace(kind), strings.TrimSpace(provider)
		if !ok || kind == "" || provider == "" {
			return "", nil, fmt.Errorf("%w: %q (want kind=name or set:NAME)", ErrInvalidOverride, token)
		}
		if !validKind(kind) {
			return "", nil, fmt.Errorf("%w: service kind %q (available: %s)", ErrUnknownService, kind, strings.Join(kinds, ", "))
		}
		overrides = append(overrides, override{kind: kind, provider: provider})
	}
	return setName, overrides, nil
}

func pick(provider pipeline.Services, kind string) (pipeline.Services, bool) {
	var out pipeline.Services
	switch kind {
	case KindPrepare:
		out.Prepare = provider.Prepare
		return out, out.Prepare != nil
	case KindDownload:
		out.Download = provider.Download
		return out, out.Download != nil
	case KindTranscribe:
		out.Transcribe = provider.Transcribe
		return out, out.Transcribe != nil
	case KindFinalize:
		out.Finalize = provider.Finalize
		return out, out.Finalize != nil
	case KindDeliver:
		out.Deliver = provider.Deliver
		return out, out.Deliver != nil
	case KindCleanup:
		out.Cleanup = provider.Cleanup
		return out, out.Cleanup != nil
	}
	return out, false
}

func validKind(kind string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func listOrNone(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
