package wasm

import "github.com/szsam/wasm3/internal/engine/codepage"

// Runtime owns what outlives a single compilation session: the code pages
// holding every compiled function, the open-page free list, and the
// interned single-result block types.
type Runtime struct {
	// PageLimit caps the number of pages the runtime will allocate.
	// Zero means unlimited.
	PageLimit int

	numPages  int
	pagesOpen []*codepage.Page
	pagesFull []*codepage.Page

	modules []*Module

	blockTypes [5]*FunctionType
}

func NewRuntime() *Runtime {
	r := &Runtime{}
	r.blockTypes[ValueTypeNone] = &FunctionType{}
	for _, vt := range []ValueType{ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64} {
		r.blockTypes[vt] = &FunctionType{Results: []ValueType{vt}}
	}
	return r
}

// BlockType returns the interned function type for a single-result (or
// empty) block type immediate.
func (r *Runtime) BlockType(vt ValueType) *FunctionType {
	return r.blockTypes[vt]
}

// AddModule registers a module with the runtime, assigning its index.
func (r *Runtime) AddModule(m *Module) {
	m.Runtime = r
	m.Index = uint32(len(r.modules))
	r.modules = append(r.modules, m)
}

// AcquireCodePage hands out a page with at least minFree free words:
// a recycled open page when one fits, otherwise a fresh one. Returns nil
// when the page limit is exhausted.
func (r *Runtime) AcquireCodePage(minFree int) *codepage.Page {
	for i, p := range r.pagesOpen {
		if p.NumFreeWords() >= minFree {
			r.pagesOpen = append(r.pagesOpen[:i], r.pagesOpen[i+1:]...)
			return p
		}
	}
	if r.PageLimit > 0 && r.numPages >= r.PageLimit {
		return nil
	}
	r.numPages++
	return codepage.NewPage(uint32(r.numPages))
}

// ReleaseCodePage returns a page to the runtime. Its emitted words stay
// valid forever; the remaining free words become available to later
// compilations.
func (r *Runtime) ReleaseCodePage(p *codepage.Page) {
	if p == nil {
		return
	}
	if p.NumFreeWords() > 0 {
		r.pagesOpen = append(r.pagesOpen, p)
	} else {
		r.pagesFull = append(r.pagesFull, p)
	}
}

// NumCodePages returns how many pages the runtime has allocated.
func (r *Runtime) NumCodePages() int { return r.numPages }

// Pages returns every allocated page, open and full, for inspection.
func (r *Runtime) Pages() []*codepage.Page {
	pages := make([]*codepage.Page, 0, len(r.pagesOpen)+len(r.pagesFull))
	pages = append(pages, r.pagesFull...)
	pages = append(pages, r.pagesOpen...)
	return pages
}
