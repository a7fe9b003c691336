// Package consent decodes the Windows CapabilityAccessManager.db
// forensic artifact: the consent store's record of when applications
// used sensitive capabilities such as the camera, microphone, and
// location.
//
// The package reads the database and its optional write-ahead log
// through pkg/sqlite (no SQLite engine involved, so evidence is never
// written to), joins the usage-history tables against the string
// lookup tables in two passes, normalizes FILETIME timestamps, and
// returns typed records annotated with provenance: whether each row's
// bytes came from the committed base image or from a merged WAL frame.
package consent
