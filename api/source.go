// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package api

import "io"

// Source is the minimal file surface a read request operates on. The
// kernel-ring backend reads through Fd; the portable backend and the
// synchronous baseline read through ReaderAt.
type Source interface {
	io.ReaderAt

	// Fd returns the OS descriptor. It must stay valid while any read
	// against this source is in flight.
	Fd() uintptr
}
