// Package client provides a Go SDK for the admin HTTP/WebSocket surface
// (internal/admin): typed methods over pool and task introspection and
// control, plus a WebSocket client for the live trace-event stream.
//
// # Basic Usage
//
//	c, err := client.New("http://localhost:8081")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	pools, err := c.ListPools(ctx)
//
//	err = c.SubmitJob(ctx, "runner-1", client.SubmitJobRequest{
//	    Type:    "echo",
//	    Payload: map[string]interface{}{"hello": "world"},
//	})
//
// # WebSocket Events
//
//	err := c.ConnectWebSocket(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.CloseWebSocket()
//
//	for event := range c.Events() {
//	    fmt.Printf("Event: %s\n", event.Kind)
//	}
//
// # Configuration
//
// The client supports functional options for configuration:
//
//	c, err := client.New("http://localhost:8081",
//	    client.WithAPIKey("your-api-key"),
//	    client.WithTimeout(30 * time.Second),
//	)
package client
