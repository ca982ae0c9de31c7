// Package retry provides backoff primitives for transient failures.
//
// Do runs a one-shot operation with bounded exponential backoff. It is used at
// startup, for example to keep asking the schema registry until it answers:
//
//	err := retry.Do(ctx, retry.Quick(), func() error {
//	    return registry.Load(ctx).Err
//	})
//
// Schedule is a fixed delay ladder for long-lived loops that never give up,
// such as the STOMP reconnect loop. The attempt counter is clamped to the last
// table entry and every delay carries bounded random jitter so that many
// dashboards do not reconnect in lockstep:
//
//	s := retry.DefaultSchedule() // 1s, 2s, 4s, 8s, 16s, 30s (+0..500ms)
//	timer := time.AfterFunc(s.Delay(attempt), reconnect)
package retry
