// Package credentials issues and caches short-lived bearer tokens for
// backend accounts via the OAuth2 client-credentials flow.
//
// One Cache serves one routing table. Each account holds its own token
// entry behind its own mutex, so concurrent requests against an expired
// entry trigger exactly one exchange and all callers receive the same
// token. Invalidate forces the next GetToken to re-fetch; it exists for the
// transcoder's single auth retry and nothing else.
package credentials
