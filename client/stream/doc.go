// Package stream reassembles JSON values from a fragmented byte
// stream, such as a long-lived notification feed where a single value
// may be split across several network reads, or several values may
// arrive packed into one.
package stream
