// Package logging wires log/slog for the inkwell daemon and CLI.
//
// New builds a logger from Options (level, format, output paths). The
// optional StreamHub is a bounded in-memory ring of recent log events that
// the CLI can poll without tailing files; when a hub is supplied, every
// record is mirrored into it alongside the primary handler.
package logging
