// Package stomp keeps a resilient STOMP-over-WebSocket session to the
// control-plane broker.
//
// The Manager owns the connection state machine
//
//	idle -> connecting -> connected -> reconnecting -> connecting ...
//	any running state -> offline (Stop); offline -> connecting (Start)
//
// and reconnects with a table-driven backoff. Every inbound MESSAGE or ERROR
// frame is recorded in the wire log and republished to message subscribers
// whether or not it decoded.
package stomp
