// Package hub fans deployment progress out to live subscribers.
//
// Each tracked stack gets exactly one poll loop regardless of how many
// subscribers watch it. The loop polls the provisioning engine through
// a tracker, converts every fresh event into a resource_update
// envelope, and broadcasts it to all subscribers of that stack. When
// the stack reaches a terminal status the loop sends one
// stack_complete envelope carrying outputs and elapsed time, lingers
// briefly so attached subscribers observe it, and stops. A subscriber
// whose Send fails is evicted without disturbing the rest; when the
// last subscriber leaves, the loop is cancelled and the stack's
// replay state is discarded.
package hub
