// Package codepage holds the threaded-code pages the compiler emits into.
//
// A page is a fixed array of machine words. Each emitted operation is one
// word (an operation code zero-extended to 64 bits) followed by its
// operand words: slot offsets, immediates, or absolute PCs. Pages are
// word-addressed through a virtual PC so that emitted programs are
// comparable across sessions.
package codepage

// PageCellCount is the number of 64-bit cells per page.
const PageCellCount = 1024

// PC is a word-addressed virtual program counter: page base plus offset.
// Zero is never a valid PC because page sequence numbers start at one.
type PC uint64

// Page is one fixed-size code page.
type Page struct {
	seq   uint32
	used  int
	cells [PageCellCount]uint64
}

// NewPage returns an empty page with the given sequence number. The
// sequence number determines the page's base PC.
func NewPage(seq uint32) *Page {
	return &Page{seq: seq}
}

// Base returns the PC of the page's first cell.
func (p *Page) Base() PC { return PC(p.seq) * PageCellCount }

// PC returns the address of the next cell to be emitted.
func (p *Page) PC() PC { return p.Base() + PC(p.used) }

// NumFreeWords returns how many cells remain.
func (p *Page) NumFreeWords() int { return PageCellCount - p.used }

// EmitWord appends one word.
func (p *Page) EmitWord(w uint64) {
	p.cells[p.used] = w
	p.used++
}

// EmitWord32 appends a 32-bit immediate, zero-extended.
func (p *Page) EmitWord32(w uint32) { p.EmitWord(uint64(w)) }

// EmitWord64 appends a 64-bit immediate.
func (p *Page) EmitWord64(w uint64) { p.EmitWord(w) }

// Ref is a patchable reference to one reserved cell.
type Ref struct {
	page   *Page
	offset int
}

// Reserve appends a zero cell and returns a reference for later patching.
func (p *Page) Reserve() Ref {
	r := Ref{page: p, offset: p.used}
	p.EmitWord(0)
	return r
}

// Set overwrites the reserved cell with an absolute PC.
func (r Ref) Set(pc PC) { r.page.cells[r.offset] = uint64(pc) }

// IsValid reports whether the reference points at a reserved cell.
func (r Ref) IsValid() bool { return r.page != nil }

// Words returns the emitted cells.
func (p *Page) Words() []uint64 { return p.cells[:p.used] }

// WordAt returns the cell at the given page-relative offset.
func (p *Page) WordAt(offset int) uint64 { return p.cells[offset] }
