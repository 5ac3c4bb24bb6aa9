// Package loadtest drives a relay server with concurrent WebSocket clients.
//
// Each virtual user repeatedly connects, sends one message, logs whatever the
// server relays back, and disconnects after a fixed session duration. The
// handshake status is checked on every iteration and tallied in the Report.
package loadtest
