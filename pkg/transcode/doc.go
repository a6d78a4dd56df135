// Package transcode drives one upstream call end to end: it obtains a
// bearer token, issues the HTTP request to the deployment the router
// resolved, retries exactly once on an upstream 401/403 after invalidating
// the cached token, and converts the response — buffered or streamed — into
// canonical dialect values.
//
// For streaming calls the transcoder consumes the upstream event stream as
// it arrives, feeds each event through the matching dialect decoder,
// forwards every non-empty result to the caller's StreamWriter immediately
// and accumulates token usage across the upstream's own usage reporting
// points. The terminal sentinel of the client dialect is written exactly
// once, whether or not the upstream sent its own.
package transcode
