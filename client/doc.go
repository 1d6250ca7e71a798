// Package client implements the asynchronous NetLab controller client.
//
// A [Client] talks to a controller's versioned REST API under the /v2
// prefix. The first query on a disconnected client triggers a version
// handshake (GET /version) that validates client/server compatibility
// before the query itself is sent.
//
// # Building a Client
//
// Use [Build] with the controller [Settings] and functional options:
//
//	c, err := client.Build(client.Settings{
//		Protocol: "http",
//		Host:     "controller.lab",
//		Port:     3080,
//	}, client.WithLogger(logger))
//
// # Queries
//
// [Client.Query] dispatches a request and returns immediately with a
// handle for the in-flight query; the outcome is delivered later to
// the supplied [Callback]:
//
//	r, err := c.Query(http.MethodGet, "/projects", func(res client.Result) {
//		if res.Error {
//			log.Println(res.Message())
//			return
//		}
//		// use res.Body
//	})
//
// Long-lived notification feeds register a [StreamCallback] via
// [WithStream]; each complete JSON value on the feed is delivered as
// it arrives, even when values are fragmented across network reads.
package client
