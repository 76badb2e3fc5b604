package observability

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

var (
	observers = map[string]Observer{
		"noop":  NoOpObserver{},
		"slog":  NewSlogObserver(slog.Default()),
		"trace": TraceObserver{},
	}
	mutex sync.RWMutex
)

// GetObserver returns a registered observer by name.
// Pre-registered observers: "noop" (NoOpObserver), "slog" (default logger),
// and "trace" (span events).
// The CLI registers "metrics" and replaces "slog" with its configured logger.
func GetObserver(name string) (Observer, error) {
	mutex.RLock()
	defer mutex.RUnlock()

	obs, exists := observers[name]
	if !exists {
		return nil, fmt.Errorf("unknown observer: %s", name)
	}
	return obs, nil
}

// RegisterObserver adds or replaces a named observer in the global registry.
func RegisterObserver(name string, observer Observer) {
	mutex.Lock()
	defer mutex.Unlock()

	observers[name] = observer
}

// ObserverNames lists the registered observer names in sorted order.
func ObserverNames() []string {
	mutex.RLock()
	defer mutex.RUnlock()

	names := make([]string, 0, len(observers))
	for name := range observers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve turns a comma-separated list of observer names ("slog,metrics")
// into a single Observer. One name returns that observer directly; several
// are combined with a MultiObserver.
func Resolve(spec string) (Observer, error) {
	var resolved []Observer
	for _, name := range strings.Split(spec, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		obs, err := GetObserver(name)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, obs)
	}

	switch len(resolved) {
	case 0:
		return NoOpObserver{}, nil
	case 1:
		return resolved[0], nil
	default:
		return NewMultiObserver(resolved...), nil
	}
}
