// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor owns one submission/completion queue pair and converts
// read completions into continuation resumptions. On Linux the queue pair is
// an io_uring; elsewhere (or when io_uring setup is refused) a portable
// backend services requests with ReaderAt reads against the same queue
// semantics.
package reactor
