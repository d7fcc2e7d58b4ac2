// Package server exposes the control API: URL record views, user actions,
// and batch session lifecycle over HTTP. It is a thin routing layer; all
// domain rules live in the records, state, actions, and batch packages.
package server
