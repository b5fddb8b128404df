// Package daemon wires the relay together: it decodes stream frames,
// dispatches them as desktop notifications, routes selected actions and
// reloads action routes when the config file changes.
package daemon
