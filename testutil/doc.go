// Package testutil provides canvas builders shared by tests.
//
// The builders return nodes whose attributes satisfy each kind's
// synthesis requirements, so a test canvas compiles unless the test
// breaks it on purpose. Canvas assembles a typed canvas for direct
// compiler calls; WireJSON renders the editor's submission shape for
// driving the HTTP surface.
//
// The scripted provisioning backend lives in provisioner.Fake rather
// than here, next to the Engine interface it replays, so white-box
// tests inside provisioner itself can use it too.
package testutil
