// Package ir provides the canonical value and identity types shared by every
// dvgov component.
//
// This package contains type definitions and pure functions only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - amounts are arbitrary precision integers
//     (Amount), call arguments use Int/String/Bool/List/Object only
//   - Identities (proposal ids, operation ids, call ids) are content-addressed:
//     keccak256 over a domain prefix and canonical JSON
//   - Block numbers and the call sequence are logical clocks, never wall-clock
//   - All JSON tags use snake_case
package ir
