// Package hub is an HTTP client for Gaia-style storage hubs.
//
// A hub stores files in per-address buckets. Clients first fetch hub_info,
// whose challenge they sign into a bearer token (a "v1:" ES256K JWT, or the
// legacy base64 signature object for old hubs). The resulting Config is
// cached by the session and used for:
//
//   - POST {server}/store/{address}/{path} with If-Match / If-None-Match
//     etag guards,
//   - DELETE {server}/delete/{address}/{path},
//   - POST {server}/list-files/{address} (paged),
//   - GET {url_prefix}{address}/{path} to read files back.
//
// Non-2xx answers surface as *RemoteWriteError or *RemoteReadError wrapping
// a *HubError, which matches the Err* sentinels with errors.Is.
package hub
