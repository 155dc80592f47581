// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package api defines the shared contracts of hioload-ingest: the result and
// parser types, the minimal file surface a read request operates on, the
// executor contract for parse dispatch, and the per-file error kinds.
package api
