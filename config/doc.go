// Package config loads the service configuration from layered JSON
// files with FOUNDRY_* environment overrides.
//
// Loading starts from built-in defaults, deep-merges each file layer
// over them (only keys present in a layer override), then applies
// environment variables:
//
//	loader := config.NewLoader()
//	loader.AddLayer("config.json")
//	loader.AddLayer("config.local.json")
//	loader.EnableValidation(true)
//	cfg, err := loader.Load()
//
// Sections mirror the subsystems the binary wires: server (gateway
// listener and CORS), aws (region, profile), deploy (stack name
// prefix, tracker poll interval and hold-open delay, key pair
// creation), store (generation directory), metrics (Prometheus
// endpoint) and logging (slog level and format). Durations in JSON
// accept Go duration strings ("3s", "1m30s").
//
// File access is guarded against path traversal, oversized files and
// pathological nesting; environment values are length-checked before
// use. SafeConfig wraps a validated Config for concurrent readers,
// handing out deep copies under a read lock.
package config
