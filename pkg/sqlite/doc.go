// Package sqlite implements the read-only, driverless portion of the
// SQLite file format needed to extract forensic artifacts: database
// header parsing, WAL frame validation, commit-aware page merging,
// table B-tree traversal, and record decoding.
//
// It deliberately is not a database engine. There is no write path, no
// SQL, no index support, and no pager cache; the package reads a base
// database image and an optional write-ahead log and exposes the rows
// a live SQLite reader would see, including rows that only exist in
// not-yet-checkpointed WAL frames.
//
// File format reference: https://sqlite.org/fileformat2.html
package sqlite
