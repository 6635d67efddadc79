// Package stability decides when an item in the watch directory has
// finished arriving. Files are stable once their size stops changing for a
// quiet window; folders once their file count stops changing. A single
// goroutine owns all observation state, fed by watcher events and periodic
// reconciliation scans, so no locking is needed around the state machines.
package stability
