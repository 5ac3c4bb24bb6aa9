// Package relay implements the broadcast core: a registry of live connections
// and a relay that fans every inbound message out to all of them.
//
// The relay holds no global state. Each Relay owns its Registry, so several
// independent relays can live in one process. The transport is abstracted behind
// Transport; the WebSocket adapter provides the production implementation.
package relay
