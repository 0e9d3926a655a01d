// Package facegate implements a two-factor authentication gate: a secret
// credential check followed by a biometric sample matched against a
// previously enrolled reference encoding.
//
// The entry point is the Engine, assembled through the Builder. The caller
// supplies an IdentityProvider (the system of record for identities and
// credential digests) and a Redis client; the engine owns the biometric
// template store, the bounded-attempt verification session, the append-only
// attempt ledger, and the lockout policy that composes them.
//
// # Architecture boundaries
//
// The engine never renders a user interface and never extracts biometric
// features. Frame acquisition is the caller's job: a FrameSource yields zero
// or more candidate encodings per pull, and the engine only measures
// distances against the enrolled reference.
//
// # What this package must not do
//
//   - Store or log a plaintext secret, anywhere. Only argon2id digests are
//     persisted and only opaque error codes reach audit events.
//   - Grant access to an identity without a live enrolled template. Missing
//     or revoked enrollment fails closed.
//   - Let an attempt-ledger write failure change a decided outcome. Ledger
//     writes are best-effort; decision-critical reads are fail-closed.
package facegate
