// Package naming synthesizes deterministic, collision-resistant
// identifiers for provisioned resources. One parameterized sanitizer
// serves every resource kind; per-kind Policy values carry the provider
// length limit, case folding and fallback token.
//
// Physical names compose {deploymentID}-{shortNodeID}-{label}. The node
// id slice keeps names stable across repeated compilations and distinct
// between nodes of one deployment; over-length names lose label
// characters only, never the deployment or node segments.
package naming
