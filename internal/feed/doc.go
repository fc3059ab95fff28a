// Package feed serves the decoded robot stream as a WebSocket event feed.
//
// Any number of clients (dashboards, scripts, a second terminal) can follow
// the robot without owning the serial port. Every event the dispatcher
// produces is broadcast as one JSON text message:
//
//	{"type":"position","time":"...","data":{"x":3,"y":4,"z":1,"tuple":[3,4,1,null,null]}}
//	{"type":"transfer","time":"...","data":{"file_name":"farm.json","kind":"JSON",...}}
//	{"type":"transfer_failed","time":"...","data":{"error":"MissingChunks: missing chunks: 2","kind":"MissingChunks"}}
//	{"type":"progress","time":"...","data":{"received":3,"expected":8,...}}
//	{"type":"log","time":"...","data":{"text":"Moisture reading: 41%","alert":true}}
//	{"type":"json_block","time":"...","data":{"text":"{...}","valid":true}}
//
// Clients may send commands, which are forwarded to the robot:
//
//	{"type":"command","command":"20,1"}
//
// and get a command_result event back on their own connection.
//
// # Usage Example
//
//	hub := feed.NewHub(port) // port implements Sender
//	srv := feed.New(&feed.Config{Host: "", Port: 8765}, hub)
//
//	dispatcher := stream.NewDispatcher(stream.Multi(hub, store), opts)
//
//	go srv.Start(ctx) // blocks until ctx is cancelled
//
// # Slow Clients
//
// Each client has a bounded send queue. A client that falls behind is
// disconnected rather than allowed to stall the serial read loop.
//
// # Thread Safety
//
// Hub methods may be called from any goroutine. Each connection runs a read
// goroutine and a write goroutine.
package feed
