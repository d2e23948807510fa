package item

import (
	"encoding/binary"
	"strconv"

	"github.com/skipor/itemcached/internal/slab"
)

// itemMagic guards against use-after-free and double-link bugs in debug
// builds, the way ITEM_MAGIC does in the original C source.
const itemMagic = 0xFEEDFACE

// VType classifies an item's value, reclassified after every payload write
// (spec §4.2 "Value-type classification"). Not part of the hash identity.
type VType uint8

const (
	VTypeStr VType = iota
	VTypeInt
)

func (t VType) String() string {
	if t == VTypeInt {
		return "INT"
	}
	return "STR"
}

// casSize is the width of the embedded CAS token, when has_cas is set.
const casSize = 8

// Item is a variable-length record stored inside a slab chunk. Per the
// design notes, the header lives in this Go struct rather than packed into
// chunk bytes (the struct is the "value-owned by the slab arena" handle);
// the chunk bytes hold only key, optional CAS token, and value, laid out
// exactly as spec §3 describes so annex/prepend alignment tricks still work
// on the byte slice directly.
type Item struct {
	store *Store

	magic uint32

	classID uint8
	ref     *slab.Ref
	chunk   []byte

	refcount int32
	isLinked bool
	inFreeQ  bool

	isRAligned bool
	hasCAS     bool
	klen       uint8
	vlen       uint32
	exptime    uint32
	vtype      VType
}

// ntotal is the byte count alloc must fit into a slab class: key, optional
// embedded CAS, and value. The original's header bytes are accounted for by
// the Go struct itself rather than chunk space, per the design notes.
func ntotal(klen int, vlen int, hasCAS bool) int {
	n := klen + vlen
	if hasCAS {
		n += casSize
	}
	return n
}

// Key returns the item's key bytes. The slice aliases the chunk; callers
// must not retain it past the item's release.
func (it *Item) Key() []byte { return it.chunk[:it.klen] }

func (it *Item) dataOffset() int {
	off := int(it.klen)
	if it.hasCAS {
		off += casSize
	}
	return off
}

// Value returns the item's value bytes. If is_raligned, the value sits
// flush with the chunk's end; otherwise it sits immediately after the key
// (and CAS token, if any) — spec §3.
func (it *Item) Value() []byte {
	if it.isRAligned {
		return it.chunk[len(it.chunk)-int(it.vlen):]
	}
	off := it.dataOffset()
	return it.chunk[off : off+int(it.vlen)]
}

func (it *Item) casBytes() []byte {
	return it.chunk[it.klen : it.klen+casSize]
}

// CAS returns the token stamped at link time (0 if CAS is disabled or the
// item is not yet linked).
func (it *Item) CAS() uint64 {
	if !it.hasCAS {
		return 0
	}
	return binary.BigEndian.Uint64(it.casBytes())
}

func (it *Item) setCAS(v uint64) {
	if !it.hasCAS {
		return
	}
	binary.BigEndian.PutUint64(it.casBytes(), v)
}

// Exptime returns the absolute expiry in relative-time seconds; 0 means
// never.
func (it *Item) Exptime() uint32 { return it.exptime }

// VType returns the current value-type classification.
func (it *Item) VType() VType { return it.vtype }

func (it *Item) expired(now uint32) bool {
	return it.exptime != 0 && it.exptime <= now
}

// checkType reparses the value as an unsigned 64-bit decimal, the same
// rule bstring_atou64 applies in the original source: every byte must be an
// ASCII digit, and the full value must fit in uint64.
func (it *Item) checkType() {
	if isUint64Decimal(it.Value()) {
		it.vtype = VTypeInt
	} else {
		it.vtype = VTypeStr
	}
}

func isUint64Decimal(v []byte) bool {
	if len(v) == 0 {
		return false
	}
	_, err := strconv.ParseUint(string(v), 10, 64)
	return err == nil
}
