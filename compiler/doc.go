// Package compiler orchestrates canvas lowering: it resolves the edge
// list into per-compute dependency sets, derives least-privilege access
// grants and boot-time environment bindings, and assembles every node's
// synthesized resources into one provisioning document.
//
// Compilation is synchronous, deterministic and all-or-nothing. The
// same canvas and deployment identifier always produce byte-identical
// documents, and any node failure aborts the whole run with the node
// named in the error; a partial document is never handed downstream.
package compiler
