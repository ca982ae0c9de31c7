// Package swarmpulse is a realtime ingestion pipeline for control-plane
// traffic published over STOMP on WebSocket.
//
// # Architecture
//
// Frames flow through the pipeline in one direction:
//
//	broker ──► stomp.Manager ──► wirelog.Store ──► envelope.Decoder
//	                 │                                   │
//	                 └──── Message ──► coordinator ──► statestore.Store
//	                                        │
//	                                        └──► relay (optional NATS)
//
//   - schema: fetches and compiles the envelope JSON Schema, with ETag
//     revalidation and a single in-flight load.
//   - envelope: parses a payload, validates it against the schema and checks
//     routing-key consistency.
//   - wirelog: bounded log of every inbound frame with its decode outcome,
//     exportable as JSON Lines.
//   - statestore: per-scope state snapshots built from status full and delta
//     messages.
//   - stomp: the broker connection with heart-beats, reconnect backoff and
//     subscription replay.
//   - coordinator: composite health, throttled control-plane refresh and
//     reconciliation after reconnects or missing snapshots.
//
// The cmd/swarmpulse binary wires these together and exposes them over HTTP
// (gateway/http) and Prometheus (metric).
package swarmpulse
