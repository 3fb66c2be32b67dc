// Package deployer orchestrates one-shot canvas deployments.
//
// Deploy compiles the canvas, provisions an SSH key pair for each
// compute node and wires it into the compiled document, discovers the
// account's default-VPC placement, ensures a two-zone DB subnet group
// when a relational database is present, persists the rendered
// document, and submits the stack under the deployment's
// foundry-stack name. Status exposes the point-in-time stack state
// the HTTP surface serves.
package deployer
