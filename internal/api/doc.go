// Package api exposes FieldPoint Core over HTTP and WebSocket.
//
// The REST surface carries the point commands (get, set, revert, last),
// the point and status inventories, and override management. The WebSocket
// endpoint streams outbound publications to subscribed clients, mirroring
// what goes to the MQTT broker.
//
// The server follows the usual lifecycle:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
