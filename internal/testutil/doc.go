// Package testutil provides fluent builders for constructing domain records
// in tests without repeating field plumbing.
package testutil
