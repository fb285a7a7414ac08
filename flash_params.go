package wbflash

import "time"

// Part holds the geometry and worst-case timings of a known flash chip.
type Part struct {
	Name     string
	Geometry Geometry

	TReset     time.Duration
	TRES1      time.Duration // release from deep power-down
	TDP        time.Duration // entry into deep power-down
	TRead      time.Duration // page data read into the NAND buffer
	TPP        time.Duration
	TStatus    time.Duration // status register write
	TErase4KB  time.Duration
	TErase32KB time.Duration
	TErase64KB time.Duration
	TEraseBlk  time.Duration // NAND 128KB block erase
	TEraseChip time.Duration
}

var (
	IDWinbondW25N01GV   = [3]byte{0xEF, 0xAA, 0x21}
	IDWinbondW25Q128JVQ = [3]byte{0xEF, 0x40, 0x18}
	IDWinbondW25Q128JVM = [3]byte{0xEF, 0x70, 0x18}
)

var (
	// [W25N01GV|Memory Array Organization] 1024 blocks of 64 pages of 2048
	// bytes; the page address field is 16 bits wide.
	GeometryW25N01GV = Geometry{PageSize: 2048, PagesPerBlock: 64, Blocks: 1024, PageBits: 16}
	// [W25Q128|Memory Organization] 256 byte pages in 64KB blocks.
	GeometryW25Q128 = Geometry{PageSize: 256, PagesPerBlock: 256, Blocks: 256}
)

var w25q128Timing = Part{
	Geometry: GeometryW25Q128,

	// [W25Q128|9.6 AC Electrical Characteristics]
	// tRST: reset time
	TReset: 30 * time.Microsecond,
	// tRES1: /CS High to Standby Mode without ID Read
	TRES1: 3 * time.Microsecond,
	// tDP: /CS High to Power-down Mode
	TDP: 3 * time.Microsecond,
	// tPP: Page Program Time
	TPP: 3 * time.Millisecond,
	// tW: Write Status Register Time
	TStatus: 15 * time.Millisecond,
	// tSE: Sector Erase Time (4KB)
	TErase4KB: 400 * time.Millisecond,
	// tBE1: Block Erase Time (32KB)
	TErase32KB: 1600 * time.Millisecond,
	// tBE2: Block Erase Time (64KB)
	TErase64KB: 2000 * time.Millisecond,
	// tCE: Chip Erase Time
	TEraseChip: 200 * time.Second,
}

var knownParts = map[[3]byte]Part{
	IDWinbondW25N01GV: {
		Name:     "Winbond W25N01GV 1Gb",
		Geometry: GeometryW25N01GV,

		// [W25N01GV|9.7 AC Electrical Characteristics]
		// tRST: reset time (max, during erase)
		TReset: 500 * time.Microsecond,
		// tRD: Read Page Data Time (ECC enabled)
		TRead: 60 * time.Microsecond,
		// tPP: Page Program Time
		TPP: 700 * time.Microsecond,
		// tBE: Block Erase Time
		TEraseBlk: 10 * time.Millisecond,
	},
	IDWinbondW25Q128JVQ: withName(w25q128Timing, "Winbond W25Q128JV-IQ 128Mb"),
	IDWinbondW25Q128JVM: withName(w25q128Timing, "Winbond W25Q128JV-IM 128Mb"),
}

func withName(p Part, name string) Part {
	p.Name = name
	return p
}

// LookupPart returns the parameters for a JEDEC ID.
func LookupPart(id [3]byte) (Part, bool) {
	p, ok := knownParts[id]
	return p, ok
}

// MustPart returns the parameters for a JEDEC ID known at compile time.
func MustPart(id [3]byte) Part {
	p, ok := knownParts[id]
	if !ok {
		panic("wbflash: unknown part")
	}
	return p
}
