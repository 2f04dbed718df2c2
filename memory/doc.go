// Package memory houses a volatile implementation of core.ContextRepository.
// The interface itself lives in the core package to centralize domain
// contracts; keeping only implementations here prevents higher layers from
// depending on concrete storage.
//
// The in-memory backend is best suited for tests and ephemeral demo servers.
// Durable deployments use the bbolt-backed store package instead.
package memory
