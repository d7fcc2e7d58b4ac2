// Package notifications delivers suggestion markers via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Records entering a state that needs human attention (candidate
// selection, metadata review, exhausted pipelines) produce a marker through
// the state machine's transition hook.
//
// Extend this package if you need alternative transports; all pipeline code
// depends only on the simple Service interface.
package notifications
