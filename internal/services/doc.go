// Package services defines the shared error taxonomy used across the
// ingestion pipeline. Errors are tagged with sentinel markers so callers can
// classify a failure (transient I/O, extractor failure, bad configuration)
// without inspecting message text.
package services
