// Package preflight checks that an index refresh can run before it starts.
//
// The package validates:
//   - The plant database opens read-only and has the expected tables
//   - The index directory is writable
//   - Disk space next to the index (minimum 50MB)
//   - File descriptor limits (minimum 1024)
//   - No other refresh holds the index lock
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, cfg)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
