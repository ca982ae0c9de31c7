// Package coordinator ties the ingestion pipeline together.
//
// The Coordinator observes the schema registry and the broker connection,
// folds decoded status envelopes into the state store, and keeps a composite
// Health view. It requests a control-plane refresh when state may have been
// missed: on a reconnect while the schema is ready, and when a status delta
// arrives for a scope with no snapshot. Refreshes are throttled so a burst of
// triggers produces one request.
//
// Basic usage:
//
//	coord := coordinator.New(registry, manager, states,
//	    coordinator.WithRefresher(coordinator.NewHTTPRefresher(refreshURL)),
//	    coordinator.WithSettings(settingsStore),
//	)
//	if err := coord.Start(ctx); err != nil {
//	    return err
//	}
//	defer coord.Stop()
package coordinator
