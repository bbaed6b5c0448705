// Package chs implements Cylinder/Head/Sector addressing for floppy disk
// images: physical track coordinates, sector IDs, sector-ID queries, and the
// geometry math used to convert between CHS coordinates and a linear LBA.
package chs

import "fmt"

// MaxSectorSize is the largest sector size representable by an `n` code:
// size = min(MaxSectorSize, 128 << n).
const MaxSectorSize = 8192

// SizeFromN returns the byte size encoded by sector-size code n.
func SizeFromN(n uint8) int {
	size := 128 << n
	if size > MaxSectorSize {
		return MaxSectorSize
	}
	return size
}

// NFromSize returns the smallest n such that SizeFromN(n) >= size. It is the
// inverse of SizeFromN for the sizes that relation actually produces.
func NFromSize(size int) uint8 {
	var n uint8
	for SizeFromN(n) < size && SizeFromN(n) < MaxSectorSize {
		n++
	}
	return n
}

// DiskCh is a physical track coordinate: cylinder and head.
type DiskCh struct {
	C uint16
	H uint8
}

// NewDiskCh builds a DiskCh.
func NewDiskCh(c uint16, h uint8) DiskCh {
	return DiskCh{C: c, H: h}
}

func (ch DiskCh) String() string {
	return fmt.Sprintf("[c:%d h:%d]", ch.C, ch.H)
}

// DiskChs is a sector location: cylinder, head, and 1-based (or schema-
// defined base) sector number.
type DiskChs struct {
	C uint16
	H uint8
	S uint8
}

// NewDiskChs builds a DiskChs.
func NewDiskChs(c uint16, h uint8, s uint8) DiskChs {
	return DiskChs{C: c, H: h, S: s}
}

func (chs DiskChs) Ch() DiskCh {
	return DiskCh{C: chs.C, H: chs.H}
}

func (chs DiskChs) String() string {
	return fmt.Sprintf("[c:%d h:%d s:%d]", chs.C, chs.H, chs.S)
}

// DiskChsn is a sector ID: cylinder, head, sector and size code n.
type DiskChsn struct {
	Chs DiskChs
	N   uint8
}

// NewDiskChsn builds a DiskChsn from its four components.
func NewDiskChsn(c uint16, h uint8, s uint8, n uint8) DiskChsn {
	return DiskChsn{Chs: DiskChs{C: c, H: h, S: s}, N: n}
}

func (chsn DiskChsn) C() uint16 { return chsn.Chs.C }
func (chsn DiskChsn) H() uint8  { return chsn.Chs.H }
func (chsn DiskChsn) S() uint8  { return chsn.Chs.S }

// Size returns the sector size in bytes implied by N.
func (chsn DiskChsn) Size() int {
	return SizeFromN(chsn.N)
}

func (chsn DiskChsn) String() string {
	return fmt.Sprintf("[c:%d h:%d s:%d n:%d]", chsn.Chs.C, chsn.Chs.H, chsn.Chs.S, chsn.N)
}

// DiskChsnQuery matches against a sector header. S is always required; C, H
// and N are wildcards when nil.
type DiskChsnQuery struct {
	C *uint16
	H *uint8
	S uint8
	N *uint8
}

// NewDiskChsnQuery builds a query matching only on sector ID s.
func NewDiskChsnQuery(s uint8) DiskChsnQuery {
	return DiskChsnQuery{S: s}
}

// QueryFromChsn builds a fully-pinned query from a concrete sector ID.
func QueryFromChsn(chsn DiskChsn) DiskChsnQuery {
	c, h, n := chsn.Chs.C, chsn.Chs.H, chsn.N
	return DiskChsnQuery{C: &c, H: &h, S: chsn.Chs.S, N: &n}
}

// WithC returns a copy of the query pinned to cylinder c.
func (q DiskChsnQuery) WithC(c uint16) DiskChsnQuery {
	q.C = &c
	return q
}

// WithH returns a copy of the query pinned to head h.
func (q DiskChsnQuery) WithH(h uint8) DiskChsnQuery {
	q.H = &h
	return q
}

// WithN returns a copy of the query pinned to size code n.
func (q DiskChsnQuery) WithN(n uint8) DiskChsnQuery {
	q.N = &n
	return q
}

// Matches reports whether the concrete sector ID id satisfies the query.
func (q DiskChsnQuery) Matches(id DiskChsn) bool {
	if q.S != id.Chs.S {
		return false
	}
	if q.C != nil && *q.C != id.Chs.C {
		return false
	}
	if q.H != nil && *q.H != id.Chs.H {
		return false
	}
	if q.N != nil && *q.N != id.N {
		return false
	}
	return true
}

func (q DiskChsnQuery) String() string {
	c := "*"
	if q.C != nil {
		c = fmt.Sprintf("%d", *q.C)
	}
	h := "*"
	if q.H != nil {
		h = fmt.Sprintf("%d", *q.H)
	}
	n := "*"
	if q.N != nil {
		n = fmt.Sprintf("%d", *q.N)
	}
	return fmt.Sprintf("[c:%s h:%s s:%d n:%s]", c, h, q.S, n)
}

// SectorLayout is reference geometry used for LBA<->CHS conversion and for
// iterating every sector on a disk in order.
type SectorLayout struct {
	// C is the number of cylinders.
	C uint16
	// H is the number of heads.
	H uint8
	// S is the number of sectors per track.
	S uint8
	// SOff is the first sector number on a track (1 for System34, 0 for
	// Amiga).
	SOff uint8
	// Size is the sector size in bytes.
	Size int
}

// NewSectorLayout builds a SectorLayout.
func NewSectorLayout(c uint16, h uint8, s uint8, sOff uint8, size int) SectorLayout {
	return SectorLayout{C: c, H: h, S: s, SOff: sOff, Size: size}
}

// TotalSectors returns the total number of sectors across the whole disk.
func (g SectorLayout) TotalSectors() int {
	return int(g.C) * int(g.H) * int(g.S)
}

// ToLba converts a CHS location to a 0-based logical block address given
// this layout. The caller is responsible for ensuring chs lies within the
// layout; out-of-range input produces an out-of-range (but not panicking)
// result.
func (g SectorLayout) ToLba(c DiskChs) int {
	return (int(c.C)*int(g.H)+int(c.H))*int(g.S) + (int(c.S) - int(g.SOff))
}

// FromLba converts a 0-based logical block address back to a CHS location.
// It returns an error if lba lies outside the layout's total sector count.
func (g SectorLayout) FromLba(lba int) (DiskChs, error) {
	if lba < 0 || lba >= g.TotalSectors() {
		return DiskChs{}, fmt.Errorf("chs: lba %d out of range for layout [c:%d h:%d s:%d]", lba, g.C, g.H, g.S)
	}
	spc := int(g.H) * int(g.S)
	c := lba / spc
	rem := lba % spc
	h := rem / int(g.S)
	s := rem%int(g.S) + int(g.SOff)
	return DiskChs{C: uint16(c), H: uint8(h), S: uint8(s)}, nil
}

// NextSector returns the sector immediately following cur in CHS scan order
// (sector, then head, then cylinder), wrapping at track and cylinder
// boundaries. It returns (_, false) once cur is the last sector in the
// layout.
func (g SectorLayout) NextSector(cur DiskChs) (DiskChs, bool) {
	lba := g.ToLba(cur)
	if lba+1 >= g.TotalSectors() {
		return DiskChs{}, false
	}
	next, err := g.FromLba(lba + 1)
	if err != nil {
		return DiskChs{}, false
	}
	return next, true
}

// DiskChsnFromLba builds a full sector ID (including size code n) for lba
// under the given layout.
func (g SectorLayout) DiskChsnFromLba(lba int) (DiskChsn, error) {
	c, err := g.FromLba(lba)
	if err != nil {
		return DiskChsn{}, err
	}
	return DiskChsn{Chs: c, N: NFromSize(g.Size)}, nil
}
