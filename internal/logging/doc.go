// Package logging provides structured JSON logging for plantsearch with a
// size-rotated log file under ~/.plantsearch/logs/.
//
// Refresh runs attach a run_id to every record so one run can be followed
// through the log. Stderr mirroring is opt-in through --debug because the
// refresh TUI owns the terminal.
package logging
