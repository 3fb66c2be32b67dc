// Package costs projects what a compiled document would cost to run.
//
// Instance rates come from the live pricing catalog, filtered to the
// on-demand Linux shared-tenancy offer for the target region, and are
// cached with a TTL. Storage-shaped resources are priced at documented
// flat defaults since their real cost depends on usage the canvas
// cannot know. Estimates are advisory; a lookup failure classifies as
// transient so callers degrade gracefully.
package costs
