// Package generation persists the artifacts of canvas compilation.
//
// Every deployment leaves behind one Record: the rendered provisioning
// document exactly as it was submitted, the stack it became, and audit
// timestamps. Records live as CF_{id}.json files under a single
// directory so a generation can be inspected, diffed against a
// recompile, or resubmitted by hand. Writes go through a temp file and
// rename, and updates carry an optimistic version check so concurrent
// writers cannot silently overwrite each other.
package generation
