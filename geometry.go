package wbflash

// Geometry describes the array layout of a flash part. The translation
// methods do no bounds checking: out of range addresses wrap.
type Geometry struct {
	PageSize      uint32
	PagesPerBlock uint32
	Blocks        uint32
	// PageBits is the width of the device's page address field. Page indexes
	// are masked to it; 0 leaves them unmasked.
	PageBits uint
}

// BlockSize is the smallest erasable unit in bytes.
func (g Geometry) BlockSize() uint32 { return g.PageSize * g.PagesPerBlock }

// Capacity is the size of the array in bytes.
func (g Geometry) Capacity() uint64 {
	return uint64(g.BlockSize()) * uint64(g.Blocks)
}

// Column is the byte offset of addr within its page.
func (g Geometry) Column(addr uint32) uint32 { return addr % g.PageSize }

// Page is the page index containing addr.
func (g Geometry) Page(addr uint32) uint32 {
	p := addr / g.PageSize
	if g.PageBits > 0 && g.PageBits < 32 {
		p &= 1<<g.PageBits - 1
	}
	return p
}

// Block is the block index containing page.
func (g Geometry) Block(page uint32) uint32 { return page / g.PagesPerBlock }

// BlockToPage is the first page of block.
func (g Geometry) BlockToPage(block uint32) uint32 { return block * g.PagesPerBlock }

// BlockToLinear is the linear address of the first byte of block.
func (g Geometry) BlockToLinear(block uint32) uint32 {
	return g.BlockToPage(block) * g.PageSize
}
