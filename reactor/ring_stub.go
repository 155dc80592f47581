//go:build !linux
// +build !linux

// File: reactor/ring_stub.go
// Author: momentics <momentics@gmail.com>
//
// Non-Linux builds have no kernel queue pair; New falls back to the
// portable ring.

package reactor

import "fmt"

func newKernelRing(depth int) (ring, error) {
	return nil, fmt.Errorf("kernel ring not supported on this platform")
}
