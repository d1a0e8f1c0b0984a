// Package database provides SQLite-based storage for sricheck scan history.
//
// HistoryDB stores one row per scanned page, holding the complete page report
// as JSON plus a per-severity risk summary. The history and compare commands
// read it back to list previous scans and to diff two of them.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because the
// database is a single file in the XDG data directory and the driver is
// CGO-free, which keeps cross-compilation simple.
package database
