// Package report serializes extraction results to disk: one CSV per
// consent-store table in the layout the original tooling established,
// or a single JSON document carrying records and warnings together.
//
// Output files are created exclusively and never overwritten; clobbering
// another case's output is not an acceptable failure mode for a
// forensic tool.
package report
