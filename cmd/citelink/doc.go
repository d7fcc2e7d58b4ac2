// Package main hosts the citelink CLI entrypoint and command graph.
//
// The Cobra-based command tree covers URL tracking, pipeline runs, batch
// sessions, user approval actions, configuration scaffolding, and the
// control API server. It centralizes configuration resolution and service
// wiring so subcommands can focus on user experience.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
