// Package http serves the canvas deployment surface over REST and
// WebSocket.
//
// All routes sit under the /canvas prefix: POST /canvas/deploy
// submits a canvas through the deploy pipeline, GET
// /canvas/deploy/status/{stackName} reports stack state, POST
// /canvas/deploy/estimate prices a canvas before anyone commits to
// it, GET /canvas/health answers probes, and GET
// /canvas/deploy/track/{stackName} upgrades to a WebSocket that
// streams tracking envelopes from the hub. Errors answer as JSON
// {error, code} with messages scrubbed of URLs, ARNs and paths;
// the classification decides the status code (invalid 400, missing
// 404, transient 503, everything else 500).
package http
