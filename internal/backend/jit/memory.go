package jit

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const pageSize = 4096

// execPage is anonymous memory that starts out read-write (so machine
// code can be copied in), then is flipped to read-execute once every
// function body and relocation has been written (§4.15's "Finalized"
// phase) — the W^X two-step every hand-rolled native JIT needs since most
// kernels refuse a page that is simultaneously writable and executable.
type execPage struct {
	mem []byte
}

func allocExecPage(size int) (*execPage, error) {
	if size == 0 {
		size = pageSize
	}
	aligned := pageAlign(size)
	mem, err := unix.Mmap(-1, 0, aligned, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("jit: mmap %d bytes failed: %w", aligned, err)
	}
	return &execPage{mem: mem}, nil
}

func (p *execPage) makeExecutable() error {
	if err := unix.Mprotect(p.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(p.mem)
		return fmt.Errorf("jit: mprotect RX failed: %w", err)
	}
	return nil
}

func (p *execPage) base() unsafe.Pointer {
	return unsafe.Pointer(&p.mem[0])
}

func (p *execPage) free() error {
	if p.mem == nil {
		return nil
	}
	err := unix.Munmap(p.mem)
	p.mem = nil
	return err
}

func pageAlign(n int) int {
	return (n + pageSize - 1) &^ (pageSize - 1)
}
