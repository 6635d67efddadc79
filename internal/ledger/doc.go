// Package ledger persists the idempotency record of every ingestion attempt
// in SQLite, keyed by content hash.
//
// The content hash, not the path, is the identity of an input: downstream
// note creation moves files out of the watch folder, and a moved or renamed
// file must still be recognized as already handled. Files hash their bytes;
// directories hash their canonical path, since their contents change while
// they are being filled.
//
// Status transitions are processing -> {success, failed_retry, failed}. A
// record may be re-marked processing at any time unless it already reached
// success. Treat this package as the single source of truth for "has this
// content been handled"; no component touches the database directly.
package ledger
