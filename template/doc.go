// Package template models the declarative provisioning document the
// compiler emits: ordered parameters, resources keyed by logical id,
// ordered outputs, plus the handful of engine intrinsics (Ref, GetAtt,
// Sub, Base64) resource properties embed. Serialization follows the
// engine's JSON schema and preserves declaration order so identical
// compilations produce identical bytes.
package template
