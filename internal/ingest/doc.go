// Package ingest loads delimited text files into database tables.
//
// Two paths exist. Import infers BIGINT, DOUBLE or TEXT per column from a
// sample of rows and skips rows whose column count does not match the
// header. LoadText creates all-TEXT tables for pipeline file nodes.
// Both detect the delimiter per file and insert in fixed-size batches
// with escaped, inlined literals.
package ingest
