// Package synthesis lowers individual canvas nodes into resource
// definitions. One Synthesizer per node kind converts the node's
// declared attributes into the primary resource, its document outputs
// and the bindings later wiring steps reference; every provider setting
// the canvas does not expose is hardcoded to a secure, cost-conscious
// default.
//
// A Registry selects the synthesizer by kind; Defaults covers all four
// kinds. Compute synthesis additionally consumes the environment
// bindings and access grant the compiler's binder derived, emitting the
// role and instance profile alongside the instance when the grant is
// non-empty.
package synthesis
