// Package authcore manages credential and session lifecycles for a
// multi-role care platform: password authentication with argon2id digests,
// short-lived signed access tokens paired with rotating opaque refresh
// credentials, a per-device session registry, a failed-login lockout state
// machine, and single-use tokens for password reset and email verification.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (Credential, TokenPair, SessionInfo, MetricsSnapshot).
// Credential persistence stays behind [CredentialStore], implemented by the
// caller; session persistence defaults to Redis and stays behind the
// session.Store contract. Raw secrets — passwords, refresh values,
// single-use tokens — cross the API exactly once and are persisted only as
// digests.
//
// # Concurrency contract
//
// Refresh rotation and single-use consumption are compare-and-swap
// operations: of N concurrent presentations of the same value exactly one
// succeeds. The lockout counter is advanced by an atomic store increment so
// racing failures cannot skip the threshold.
package authcore
