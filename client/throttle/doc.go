// Package throttle provides a rate-limited http.RoundTripper built on
// the x/time token bucket. The client uses it to cap the rate of
// outbound controller queries, which matters for bulk operations such
// as mass topology imports that would otherwise flood the server.
package throttle
