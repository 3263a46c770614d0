// Package internal groups the packages that are private to authflow.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - authapi: in-memory auth API served over HTTP, used by the demo command and tests
//   - flows: per-operation orchestration of gateway calls and session persistence
//   - rate: per-email attempt counters in memory or Redis
//
// # What this package must NOT do
//
//   - Export types that appear in the public authflow API.
//   - Be imported by any package outside the authflow module.
package internal
