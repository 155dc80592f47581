//go:build linux
// +build linux

// File: reactor/ring_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// io_uring(7) queue pair. The ring is set up with io_uring_setup(2), both
// rings and the SQE array are mapped into the process, and submission is a
// single io_uring_enter(2) per batch. Raw ABI structs are declared locally;
// golang.org/x/sys/unix supplies the syscall numbers, mmap and errno
// plumbing.

package reactor

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-ingest/api"
)

// ABI constants from <linux/io_uring.h>.
const (
	offSQRing int64 = 0
	offCQRing int64 = 0x8000000
	offSQEs   int64 = 0x10000000

	opRead uint8 = 22 // IORING_OP_READ

	enterGetEvents uintptr = 1 << 0 // IORING_ENTER_GETEVENTS
	featSingleMmap uint32  = 1 << 0 // IORING_FEAT_SINGLE_MMAP
)

type sqringOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	flags       uint32
	dropped     uint32
	array       uint32
	resv1       uint32
	userAddr    uint64
}

type cqringOffsets struct {
	head        uint32
	tail        uint32
	ringMask    uint32
	ringEntries uint32
	overflow    uint32
	cqes        uint32
	flags       uint32
	resv1       uint32
	userAddr    uint64
}

type uringParams struct {
	sqEntries    uint32
	cqEntries    uint32
	flags        uint32
	sqThreadCPU  uint32
	sqThreadIdle uint32
	features     uint32
	wqFD         uint32
	resv         [3]uint32
	sqOff        sqringOffsets
	cqOff        cqringOffsets
}

// sqe is struct io_uring_sqe for the opcodes used here (64 bytes).
type sqe struct {
	opcode   uint8
	flags    uint8
	ioprio   uint16
	fd       int32
	off      uint64
	addr     uint64
	len      uint32
	rwFlags  uint32
	userData uint64
	extra    [3]uint64
}

// cqe is struct io_uring_cqe (16 bytes).
type cqe struct {
	userData uint64
	res      int32
	flags    uint32
}

// uring is the io_uring-backed queue pair.
type uring struct {
	fd int

	sqMem  []byte
	cqMem  []byte
	sqeMem []byte

	sqHead  *uint32 // kernel-written consumer index
	sqTail  *uint32 // published producer index
	sqMask  uint32
	sqCount uint32
	sqArray []uint32
	sqes    []sqe

	sqeNext   uint32 // local producer index, published on flush
	unflushed uint32

	cqHead *uint32 // our consumer index
	cqTail *uint32 // kernel-written producer index
	cqMask uint32
	cqes   []cqe
}

// newURing sets up an io_uring sized for at least depth outstanding reads.
func newURing(depth int) (*uring, error) {
	var p uringParams
	fd, _, errno := unix.Syscall(unix.SYS_IO_URING_SETUP, uintptr(depth), uintptr(unsafe.Pointer(&p)), 0)
	if errno != 0 {
		return nil, fmt.Errorf("io_uring_setup: %w", errno)
	}
	r := &uring{fd: int(fd)}
	if err := r.mmap(&p); err != nil {
		unix.Close(r.fd)
		return nil, err
	}
	return r, nil
}

// mmap maps the SQ ring, CQ ring and SQE array, honoring the single-mmap
// feature of newer kernels where both rings share one mapping.
func (r *uring) mmap(p *uringParams) error {
	sqSize := int(p.sqOff.array) + int(p.sqEntries)*4
	cqSize := int(p.cqOff.cqes) + int(p.cqEntries)*int(unsafe.Sizeof(cqe{}))
	single := p.features&featSingleMmap != 0
	if single && cqSize > sqSize {
		sqSize = cqSize
	}

	mem, err := unix.Mmap(r.fd, offSQRing, sqSize,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		return fmt.Errorf("mmap sq ring: %w", err)
	}
	r.sqMem = mem
	if single {
		r.cqMem = mem
	} else {
		cq, err := unix.Mmap(r.fd, offCQRing, cqSize,
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
		if err != nil {
			r.unmap()
			return fmt.Errorf("mmap cq ring: %w", err)
		}
		r.cqMem = cq
	}

	sqes, err := unix.Mmap(r.fd, offSQEs, int(p.sqEntries)*int(unsafe.Sizeof(sqe{})),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		r.unmap()
		return fmt.Errorf("mmap sqes: %w", err)
	}
	r.sqeMem = sqes

	r.sqHead = (*uint32)(unsafe.Pointer(&r.sqMem[p.sqOff.head]))
	r.sqTail = (*uint32)(unsafe.Pointer(&r.sqMem[p.sqOff.tail]))
	r.sqMask = *(*uint32)(unsafe.Pointer(&r.sqMem[p.sqOff.ringMask]))
	r.sqCount = p.sqEntries
	r.sqArray = unsafe.Slice((*uint32)(unsafe.Pointer(&r.sqMem[p.sqOff.array])), p.sqEntries)
	r.sqes = unsafe.Slice((*sqe)(unsafe.Pointer(&r.sqeMem[0])), p.sqEntries)

	r.cqHead = (*uint32)(unsafe.Pointer(&r.cqMem[p.cqOff.head]))
	r.cqTail = (*uint32)(unsafe.Pointer(&r.cqMem[p.cqOff.tail]))
	r.cqMask = *(*uint32)(unsafe.Pointer(&r.cqMem[p.cqOff.ringMask]))
	r.cqes = unsafe.Slice((*cqe)(unsafe.Pointer(&r.cqMem[p.cqOff.cqes])), p.cqEntries)
	return nil
}

// push stages one IORING_OP_READ without publishing it.
func (r *uring) push(src api.Source, buf []byte, off int64, userData uint64) error {
	if r.sqeNext-atomic.LoadUint32(r.sqHead) >= r.sqCount {
		return api.ErrQueueFull
	}
	idx := r.sqeNext & r.sqMask
	var addr uint64
	if len(buf) > 0 {
		addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	r.sqes[idx] = sqe{
		opcode:   opRead,
		fd:       int32(src.Fd()),
		off:      uint64(off),
		addr:     addr,
		len:      uint32(len(buf)),
		userData: userData,
	}
	r.sqArray[idx] = idx
	r.sqeNext++
	r.unflushed++
	return nil
}

// flush publishes the staged tail and submits the batch in one enter call.
func (r *uring) flush() (int, error) {
	n := r.unflushed
	if n == 0 {
		return 0, nil
	}
	atomic.StoreUint32(r.sqTail, r.sqeNext)
	r.unflushed = 0
	submitted, err := r.enter(n, 0, 0)
	if err != nil {
		return submitted, err
	}
	if uint32(submitted) != n {
		return submitted, fmt.Errorf("io_uring_enter: submitted %d of %d", submitted, n)
	}
	return submitted, nil
}

// wait blocks until at least min completions are visible.
func (r *uring) wait(min int) error {
	_, err := r.enter(0, uint32(min), enterGetEvents)
	return err
}

// peek drains every visible CQE into out without blocking and advances the
// completion queue by the number drained.
func (r *uring) peek(out []completion) int {
	head := atomic.LoadUint32(r.cqHead)
	tail := atomic.LoadUint32(r.cqTail)
	n := 0
	for head != tail && n < len(out) {
		c := r.cqes[head&r.cqMask]
		out[n] = completion{userData: c.userData, res: c.res}
		head++
		n++
	}
	if n > 0 {
		atomic.StoreUint32(r.cqHead, head)
	}
	return n
}

func (r *uring) enter(toSubmit, minComplete uint32, flags uintptr) (int, error) {
	for {
		n, _, errno := unix.Syscall6(unix.SYS_IO_URING_ENTER,
			uintptr(r.fd), uintptr(toSubmit), uintptr(minComplete), flags, 0, 0)
		if errno == unix.EINTR {
			continue
		}
		if errno != 0 {
			return int(n), fmt.Errorf("io_uring_enter: %w", errno)
		}
		return int(n), nil
	}
}

func (r *uring) unmap() {
	if r.sqeMem != nil {
		unix.Munmap(r.sqeMem)
		r.sqeMem = nil
	}
	if r.cqMem != nil && &r.cqMem[0] != &r.sqMem[0] {
		unix.Munmap(r.cqMem)
	}
	r.cqMem = nil
	if r.sqMem != nil {
		unix.Munmap(r.sqMem)
		r.sqMem = nil
	}
}

func (r *uring) close() error {
	r.unmap()
	return unix.Close(r.fd)
}

// newKernelRing is the platform hook used by New.
func newKernelRing(depth int) (ring, error) {
	return newURing(depth)
}
