package progress

// Canceler aborts an in-flight query. The client's query handle
// satisfies this, letting a consumer cancel from the Start callback.
type Canceler interface {
	Cancel()
}

// Meter receives query lifecycle events keyed by query id. All three
// methods are purely observational; implementations must tolerate End
// being delivered more than once for the same id.
type Meter interface {
	// Start is called once per query, after all other observers are
	// wired, so no Progress event can precede it.
	Start(queryID, text string, query Canceler)

	// Progress reports transferred byte counts. total is -1 when the
	// transfer size is unknown.
	Progress(queryID string, transferred, total int64)

	// End is called when the query completes, is canceled or fails.
	End(queryID string)
}
