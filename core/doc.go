// Package core provides the foundational domain types and repository
// contracts of the chatstore persistence layer. It defines:
//
//   - Sessions (conversational containers owning their message history)
//   - Messages (immutable records composed of typed content parts)
//   - SharedContexts (inter-agent context handoffs with TTL expiry)
//   - Tasks (cooperative work items linked to one or more agents)
//   - The error taxonomy shared by every backend
//
// The package intentionally keeps implementation concerns (key layout,
// encoding, the embedded store engine) out of scope, exposing small
// repository interfaces so backends can be swapped without touching
// calling code.
package core
