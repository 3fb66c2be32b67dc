// Package foundry is the backend for a visual infrastructure canvas.
// Users draw compute, storage and database nodes in a browser editor,
// connect them with "needs access" edges, and this service turns the
// drawing into a running CloudFormation stack and streams provisioning
// progress back to the editor.
//
// # Architecture
//
// The service is a single binary with two halves: a compilation
// pipeline that lowers a canvas into a deployable document, and a
// tracking pipeline that follows the stack while CloudFormation
// brings it up.
//
//	┌─────────────────────────────────────┐
//	│           Gateway (HTTP/WS)         │  /canvas routes, CORS,
//	│   deploy, status, estimate, track   │  error mapping
//	└─────────────────────────────────────┘
//	           ↓ deploy                  ↓ track
//	┌──────────────────────┐   ┌──────────────────────┐
//	│       Deployer       │   │         Hub          │
//	│ compile, key pairs,  │   │  one poll loop per   │
//	│ network discovery,   │   │  stack, fan-out to   │
//	│ persist, submit      │   │  WS subscribers      │
//	└──────────────────────┘   └──────────────────────┘
//	           ↓                          ↓
//	┌──────────────────────┐   ┌──────────────────────┐
//	│       Compiler       │   │       Tracker        │
//	│ naming → synthesis → │   │  dedup, fold events  │
//	│ wiring → assembly    │   │  into progress       │
//	└──────────────────────┘   └──────────────────────┘
//	           ↓                          ↓
//	┌─────────────────────────────────────┐
//	│      Provisioner (CloudFormation)   │  create stack,
//	│                                     │  describe events/status
//	└─────────────────────────────────────┘
//
// # Compilation
//
// A canvas arrives as JSON: nodes with a kind (EC2, S3, RDS, DynamoDB)
// and free-form data, plus directed edges meaning "source needs access
// to target". Compilation runs in fixed stages:
//
//   - naming: collision-resistant logical ids and physical names,
//     derived from node ids and the deployment id
//   - synthesis: per-kind resource synthesis with defaults and
//     required-attribute validation
//   - wiring: edge resolution into least-privilege IAM policies and
//     connection environment variables on the consuming compute node
//   - assembly: parameters, instance profiles and the final document;
//     any failure aborts the whole compilation
//
// The result is a CloudFormation-style document that the deployer
// submits and the generation store persists for audit.
//
// # Tracking
//
// The hub owns one tracker per stack regardless of how many editor
// tabs watch it. The tracker polls stack events, deduplicates them,
// folds them into per-resource status and an overall progress summary,
// and detects terminal states. The hub wraps updates in typed JSON
// envelopes (resource_update, initial_state, stack_complete, error)
// and fans them out to WebSocket subscribers; a late joiner first
// receives a snapshot of everything already known.
//
// # Packages
//
// Pipeline:
//   - canvas: wire format parsing and validation
//   - naming: deterministic logical and physical names
//   - synthesis: per-kind resource synthesis
//   - compiler: stage orchestration and access wiring
//   - template: document and resource model
//
// Deployment:
//   - deployer: deploy pipeline over the provisioning engine
//   - provisioner: CloudFormation engine and an in-memory fake
//   - generation: file-backed record store for compiled documents
//   - costs: pricing-catalog cost estimates for compiled documents
//
// Tracking:
//   - tracker: event dedup, folding and progress
//   - hub: per-stack poll loops and subscriber fan-out
//
// Service:
//   - gateway/http: REST and WebSocket surface
//   - config: layered configuration with FOUNDRY_* overrides
//   - metric: Prometheus registry and metrics server
//   - health: component health model and monitor
//   - errors: classified errors (transient, fatal, invalid)
//   - pkg/retry: backoff for transient provisioning failures
//
// # Binary
//
// Build and run:
//
//	go build -o bin/foundry ./cmd/foundry
//	./bin/foundry --config configs/foundry.json
//
// The gateway listens on port 8000 by default and the Prometheus
// endpoint on 9090. AWS credentials come from the standard SDK chain.
package foundry
