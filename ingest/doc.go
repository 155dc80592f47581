// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package ingest is the file-ingestion driver: it opens each input file,
// issues one batched read per file through the reactor, resumes the per-file
// task when its completion is drained, and migrates the CPU-bound parse onto
// the worker pool so reads and parses overlap across files. Results always
// come back in input order, whatever order completions arrive in.
package ingest
