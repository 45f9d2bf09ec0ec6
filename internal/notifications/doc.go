// Package notifications delivers pipeline events via ntfy push messages.
//
// The default implementation publishes to the topic configured in config.toml
// and gracefully degrades to a no-op when no topic is set. Completion and
// error notifications can be toggled independently so a user can keep failure
// alerts while silencing routine job chatter.
//
// All pipeline code depends only on the Service interface, which keeps tests
// free of HTTP glue.
package notifications
