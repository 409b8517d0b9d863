package core

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

var (
	modules   = make(map[string]ModuleInfo)
	modulesMu sync.RWMutex
)

// RegisterModule registers a module by instantiating it to read its ModuleInfo.
// It panics if a module with the same ID is already registered or if the
// module info is invalid. Intended to be called from init() functions.
func RegisterModule(instance Module) {
	info := instance.ModuleInfo()
	if info.ID == "" {
		panic("module ID must not be empty")
	}
	if info.New == nil {
		panic(fmt.Sprintf("module %s: New function must not be nil", info.ID))
	}

	modulesMu.Lock()
	defer modulesMu.Unlock()

	id := string(info.ID)
	if _, exists := modules[id]; exists {
		panic(fmt.Sprintf("module already registered: %s", id))
	}
	modules[id] = info
}

// GetModule returns the ModuleInfo for the given ID, or false if not found.
func GetModule(id string) (ModuleInfo, bool) {
	modulesMu.RLock()
	defer modulesMu.RUnlock()
	info, ok := modules[id]
	return info, ok
}

// GetModules returns all registered modules sorted by ID.
func GetModules() []ModuleInfo {
	modulesMu.RLock()
	defer modulesMu.RUnlock()

	result := make([]ModuleInfo, 0, len(modules))
	for _, info := range modules {
		result = append(result, info)
	}
	slices.SortFunc(result, func(a, b ModuleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

// Order returns ids in load order: every module comes after the modules it
// requires and after the configured modules it lists in After. Independent
// modules keep alphabetical order. It fails on unknown IDs, on a required
// module missing from ids, and on dependency cycles.
func Order(ids []string) ([]string, error) {
	present := make(map[ModuleID]bool, len(ids))
	for _, id := range ids {
		present[ModuleID(id)] = true
	}

	var errs []error
	deps := make(map[ModuleID][]ModuleID, len(present))
	modulesMu.RLock()
	for _, id := range slices.Sorted(maps.Keys(present)) {
		info, ok := modules[string(id)]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown module %q", id))
			continue
		}
		for _, req := range info.Requires {
			if !present[req] {
				errs = append(errs, fmt.Errorf("module %s requires %s, which is not configured", id, req))
				continue
			}
			deps[id] = append(deps[id], req)
		}
		for _, after := range info.After {
			if present[after] {
				deps[id] = append(deps[id], after)
			}
		}
	}
	modulesMu.RUnlock()
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	pending := slices.Sorted(maps.Keys(present))
	loaded := make(map[ModuleID]bool, len(pending))
	ordered := make([]string, 0, len(pending))
	for len(pending) > 0 {
		next := slices.IndexFunc(pending, func(id ModuleID) bool {
			for _, dep := range deps[id] {
				if !loaded[dep] {
					return false
				}
			}
			return true
		})
		if next < 0 {
			return nil, fmt.Errorf("module dependency cycle among %v", pending)
		}
		loaded[pending[next]] = true
		ordered = append(ordered, string(pending[next]))
		pending = slices.Delete(pending, next, next+1)
	}
	return ordered, nil
}

// resetRegistry clears the registry. Only for testing.
func resetRegistry() {
	modulesMu.Lock()
	defer modulesMu.Unlock()
	modules = make(map[string]ModuleInfo)
}
