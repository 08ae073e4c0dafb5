// Package mempool implements a fixed-block allocator over a single buffer.
//
// Free blocks form an intrusive singly linked list: the first four bytes of
// every free block hold the byte offset of the next free block. Writes into a
// block after it was freed therefore show up in CheckIntegrity.
package mempool

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"kestrel/kernel/kerr"
)

// Align is the block alignment in bytes. It is also the minimum block size,
// since a free block stores its link in the first word.
const Align = 4

const endOfList = ^uint32(0)

// Stats is a snapshot of pool usage.
type Stats struct {
	BlockSize  int
	BlockCount int
	Available  int
	InUse      int
	Peak       int

	Allocs uint32
	Frees  uint32
	Failed uint32

	// Usage is InUse as a percentage of BlockCount.
	Usage int
	// Fragmentation is Available as a percentage of BlockCount.
	Fragmentation int
}

// Pool is a fixed-block allocator. It is not safe for concurrent use; the
// kernel serializes access with its critical section.
type Pool struct {
	buf       []byte
	blockSize int
	count     int

	head   uint32
	nfree  int
	onFree []bool

	peak   int
	allocs uint32
	frees  uint32
	failed uint32
}

// New partitions buf into count blocks of blockSize bytes. blockSize is rounded
// up to Align. A nil buf allocates backing storage.
func New(blockSize, count int, buf []byte) (*Pool, error) {
	if blockSize <= 0 || count <= 0 {
		return nil, kerr.InvalidParam
	}
	blockSize = (blockSize + Align - 1) &^ (Align - 1)
	need := blockSize * count
	if buf == nil {
		buf = make([]byte, need)
	}
	if len(buf) < need {
		return nil, fmt.Errorf("mempool: buffer %d bytes, need %d: %w", len(buf), need, kerr.InvalidParam)
	}
	p := &Pool{
		buf:       buf[:need:need],
		blockSize: blockSize,
		count:     count,
		onFree:    make([]bool, count),
	}
	p.rebuild()
	return p, nil
}

func (p *Pool) rebuild() {
	p.head = endOfList
	for i := p.count - 1; i >= 0; i-- {
		off := uint32(i * p.blockSize)
		p.setNext(off, p.head)
		p.head = off
		p.onFree[i] = true
	}
	p.nfree = p.count
}

func (p *Pool) next(off uint32) uint32 {
	return binary.LittleEndian.Uint32(p.buf[off : off+4])
}

func (p *Pool) setNext(off, next uint32) {
	binary.LittleEndian.PutUint32(p.buf[off:off+4], next)
}

func (p *Pool) valid(off uint32) bool {
	return int(off) < len(p.buf) && int(off)%p.blockSize == 0
}

// BlockSize returns the aligned block size.
func (p *Pool) BlockSize() int { return p.blockSize }

// Count returns the number of blocks.
func (p *Pool) Count() int { return p.count }

// Available returns the number of free blocks.
func (p *Pool) Available() int { return p.nfree }

// InUse returns the number of outstanding blocks.
func (p *Pool) InUse() int { return p.count - p.nfree }

// TryAlloc pops a block from the free list. It returns nil when the pool is
// exhausted or the list head is corrupted.
func (p *Pool) TryAlloc() []byte {
	if p.nfree == 0 || p.head == endOfList || !p.valid(p.head) {
		p.failed++
		return nil
	}
	off := p.head
	p.head = p.next(off)
	p.nfree--
	p.onFree[int(off)/p.blockSize] = false
	p.allocs++
	if used := p.count - p.nfree; used > p.peak {
		p.peak = used
	}
	end := int(off) + p.blockSize
	b := p.buf[off:end:end]
	clear(b)
	return b
}

// Offset returns the byte offset of b within the pool. ok is false when b
// does not point into the pool.
func (p *Pool) Offset(b []byte) (off int, ok bool) {
	if len(b) == 0 && cap(b) == 0 {
		return 0, false
	}
	base := uintptr(unsafe.Pointer(unsafe.SliceData(p.buf)))
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	if addr < base || addr >= base+uintptr(len(p.buf)) {
		return 0, false
	}
	return int(addr - base), true
}

// Contains reports whether b starts inside the pool.
func (p *Pool) Contains(b []byte) bool {
	_, ok := p.Offset(b)
	return ok
}

// Free returns b to the pool. b must be a block previously returned by
// TryAlloc (its length is ignored).
func (p *Pool) Free(b []byte) error {
	off, ok := p.Offset(b)
	if !ok || off%p.blockSize != 0 {
		return kerr.InvalidParam
	}
	idx := off / p.blockSize
	if p.onFree[idx] {
		return kerr.Exists
	}
	p.setNext(uint32(off), p.head)
	p.head = uint32(off)
	p.onFree[idx] = true
	p.nfree++
	p.frees++
	return nil
}

// Reset returns every block to the free list and clears statistics.
func (p *Pool) Reset() {
	p.rebuild()
	p.peak = 0
	p.allocs = 0
	p.frees = 0
	p.failed = 0
}

// CheckIntegrity walks the free list and verifies bounds, alignment, absence
// of duplicates and agreement with the free count.
func (p *Pool) CheckIntegrity() error {
	seen := make([]bool, p.count)
	n := 0
	for off := p.head; off != endOfList; off = p.next(off) {
		if !p.valid(off) {
			return fmt.Errorf("mempool: free list entry %#x out of range: %w", off, kerr.Corrupted)
		}
		idx := int(off) / p.blockSize
		if seen[idx] || !p.onFree[idx] {
			return fmt.Errorf("mempool: free list entry %#x duplicated: %w", off, kerr.Corrupted)
		}
		seen[idx] = true
		n++
	}
	if n != p.nfree {
		return fmt.Errorf("mempool: free list has %d blocks, want %d: %w", n, p.nfree, kerr.Corrupted)
	}
	return nil
}

// Stats returns a usage snapshot.
func (p *Pool) Stats() Stats {
	used := p.count - p.nfree
	return Stats{
		BlockSize:     p.blockSize,
		BlockCount:    p.count,
		Available:     p.nfree,
		InUse:         used,
		Peak:          p.peak,
		Allocs:        p.allocs,
		Frees:         p.frees,
		Failed:        p.failed,
		Usage:         used * 100 / p.count,
		Fragmentation: p.nfree * 100 / p.count,
	}
}
