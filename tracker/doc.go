// Package tracker folds a deployment's raw provisioning events into
// live per-resource state and an aggregate stack summary. One Tracker
// per in-flight deployment: each poll cycle fetches the full event
// history, drops events already seen, replays the rest in
// chronological order and keeps the latest status per resource.
package tracker
