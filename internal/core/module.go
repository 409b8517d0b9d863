package core

import "strings"

// ModuleID is a dotted module identifier such as "channel.telegram".
// The part before the first dot is the namespace.
type ModuleID string

// Namespace returns the leading segment of the ID.
func (id ModuleID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), ".")
	return ns
}

// Name returns everything after the namespace, or the whole ID when it
// has no namespace.
func (id ModuleID) Name() string {
	_, name, ok := strings.Cut(string(id), ".")
	if !ok {
		return string(id)
	}
	return name
}

// ModuleInfo describes a registered module.
type ModuleInfo struct {
	ID  ModuleID
	New func() Module

	// Requires lists modules whose services this module resolves. They must
	// be configured too, and they load and start first.
	Requires []ModuleID

	// After lists modules that load first when they are configured, without
	// being required. telemetry.otel goes here so tracing outlives the
	// modules that emit spans.
	After []ModuleID
}

// Module is the interface every module implements. Optional behaviour is
// expressed through the lifecycle interfaces (Configurable, Provisioner,
// Validator, Starter, Stopper, Reloader, HealthChecker).
type Module interface {
	ModuleInfo() ModuleInfo
}
