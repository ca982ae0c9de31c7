// Package relay republishes decoded control-plane envelopes to NATS.
//
// Each envelope is published as its wire JSON on
//
//	<prefix>.<kind>.<type>.<swarmId>.<role>.<instance>
//
// so other consumers can follow the control plane without a second broker
// connection. Frames that failed to decode are not relayed.
package relay
