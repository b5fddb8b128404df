// Package session keeps a single D-Bus session bus alive for the desktop.
// The bus address and daemon PID are recorded in a small KEY=VALUE file so
// later runs reuse the same bus while its daemon is still running.
package session
