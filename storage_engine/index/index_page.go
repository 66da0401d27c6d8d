package index

import (
	"fmt"

	"pesadb/storage_engine/page"
	"pesadb/types"
)

/*
IndexPage is the slotted-page layout for B+Tree nodes. After the
generic page header:

	Offset  Size  Field
	───────────────────────────────────────
	13      1     IndexType   LEAF=0 INTERNAL=1 ROOT=2
	14      2     KeyCount    number of slots in use
	16      4     Parent      parent page ID, 0 = none
	20      4     NextLeaf    right sibling, leaves only
	24      4     PrevLeaf    left sibling, leaves only
	───────────────────────────────────────
	28            IndexHeaderSize

The slot array (2-byte entry offsets) grows forward from the index
header; variable-length [key][row locator:u32] entries grow backward
from the page end. free_start/free_end track the two cursors.

Leaf entries map a key to its row locator. Internal nodes store one
entry per child: entry i = (key_i, child_i) where child_i holds keys
below key_i, and the final entry carries a NULL sentinel key with the
rightmost child. A node with k separator keys therefore has k+1 slots.
*/

type IndexPageType uint8

const (
	IndexTypeLeaf IndexPageType = iota
	IndexTypeInternal
	IndexTypeRoot
)

const (
	indexTypeOffset  = page.HeaderSize
	keyCountOffset   = indexTypeOffset + 1
	parentOffset     = keyCountOffset + 2
	nextLeafOffset   = parentOffset + 4
	prevLeafOffset   = nextLeafOffset + 4
	IndexHeaderSize  = prevLeafOffset + 4
	slotSize         = 2
	rowLocatorSize   = 4
)

type IndexPage struct {
	*page.Page
}

func NewIndexPage(p *page.Page) *IndexPage {
	return &IndexPage{Page: p}
}

// InitIndexHeader stamps a fresh index node header and resets the
// slotted-page cursors.
func (ip *IndexPage) InitIndexHeader(indexType IndexPageType, parent uint32) {
	ip.Data[page.TypeOffset] = byte(page.TypeIndex)
	ip.Data[indexTypeOffset] = byte(indexType)
	_ = ip.WriteShort(keyCountOffset, 0)
	_ = ip.WriteInt(parentOffset, parent)
	_ = ip.WriteInt(nextLeafOffset, 0)
	_ = ip.WriteInt(prevLeafOffset, 0)
	ip.SetFreeStart(IndexHeaderSize)
	ip.SetFreeEnd(page.PageSize)
	ip.IsDirty = true
}

func (ip *IndexPage) IndexType() IndexPageType {
	return IndexPageType(ip.Data[indexTypeOffset])
}

func (ip *IndexPage) SetIndexType(t IndexPageType) {
	ip.Data[indexTypeOffset] = byte(t)
	ip.IsDirty = true
}

// IsLeaf reports whether this node holds row locators. A fresh root is
// a leaf until its first split.
func (ip *IndexPage) IsLeaf() bool { return ip.IndexType() != IndexTypeInternal }

func (ip *IndexPage) KeyCount() int {
	v, _ := ip.ReadShort(keyCountOffset)
	return int(v)
}

func (ip *IndexPage) setKeyCount(count int) {
	_ = ip.WriteShort(keyCountOffset, uint16(count))
}

func (ip *IndexPage) Parent() uint32 {
	v, _ := ip.ReadInt(parentOffset)
	return v
}

func (ip *IndexPage) SetParent(parent uint32) {
	_ = ip.WriteInt(parentOffset, parent)
}

func (ip *IndexPage) NextLeaf() uint32 {
	v, _ := ip.ReadInt(nextLeafOffset)
	return v
}

func (ip *IndexPage) SetNextLeaf(next uint32) {
	_ = ip.WriteInt(nextLeafOffset, next)
}

func (ip *IndexPage) PrevLeaf() uint32 {
	v, _ := ip.ReadInt(prevLeafOffset)
	return v
}

func (ip *IndexPage) SetPrevLeaf(prev uint32) {
	_ = ip.WriteInt(prevLeafOffset, prev)
}

func (ip *IndexPage) slotOffset(index int) int {
	return IndexHeaderSize + index*slotSize
}

// InsertKeyValue inserts a [key][row locator] entry at the given slot
// index, shifting later slots right to keep sorted order. Returns
// false when the page lacks room for the entry plus its slot.
func (ip *IndexPage) InsertKeyValue(key types.Value, value uint32, index int) bool {
	keyData := key.Serialize()
	entrySize := len(keyData) + rowLocatorSize

	if ip.FreeSpace() < entrySize+slotSize {
		return false
	}

	// entry data grows down from free_end
	dataOffset := int(ip.FreeEnd()) - entrySize
	if err := ip.WriteBytes(dataOffset, keyData); err != nil {
		return false
	}
	if err := ip.WriteInt(dataOffset+len(keyData), value); err != nil {
		return false
	}
	ip.SetFreeEnd(uint16(dataOffset))

	// shift slots [index..count) right by one slot
	count := ip.KeyCount()
	if index < count {
		shiftStart := ip.slotOffset(index)
		slots, err := ip.ReadBytes(shiftStart, (count-index)*slotSize)
		if err != nil {
			return false
		}
		if err := ip.WriteBytes(shiftStart+slotSize, slots); err != nil {
			return false
		}
	}
	_ = ip.WriteShort(ip.slotOffset(index), uint16(dataOffset))
	ip.SetFreeStart(ip.FreeStart() + slotSize)
	ip.setKeyCount(count + 1)
	return true
}

// GetKeyValue reads the entry behind slot index.
func (ip *IndexPage) GetKeyValue(index int) (types.Value, uint32, error) {
	if index < 0 || index >= ip.KeyCount() {
		return types.Value{}, 0, fmt.Errorf("slot index %d out of range (count %d)", index, ip.KeyCount())
	}
	dataOffset, err := ip.ReadShort(ip.slotOffset(index))
	if err != nil {
		return types.Value{}, 0, err
	}
	return ip.readEntry(int(dataOffset))
}

func (ip *IndexPage) readEntry(offset int) (types.Value, uint32, error) {
	key, consumed, err := types.DeserializeValue(ip.Data[offset:])
	if err != nil {
		return types.Value{}, 0, fmt.Errorf("corrupt index entry at offset %d: %w", offset, err)
	}
	locator, err := ip.ReadInt(offset + consumed)
	if err != nil {
		return types.Value{}, 0, err
	}
	return key, locator, nil
}

// DeleteKey removes the slot at index, compacting the slot array. The
// entry's data span is leaked; splits rebuild pages from scratch and
// reclaim the space then.
func (ip *IndexPage) DeleteKey(index int) {
	count := ip.KeyCount()
	if index < 0 || index >= count {
		return
	}
	if index < count-1 {
		shiftSrc := ip.slotOffset(index + 1)
		slots, err := ip.ReadBytes(shiftSrc, (count-index-1)*slotSize)
		if err != nil {
			return
		}
		_ = ip.WriteBytes(shiftSrc-slotSize, slots)
	}
	ip.SetFreeStart(ip.FreeStart() - slotSize)
	ip.setKeyCount(count - 1)
}

// UpdateValue rewrites the row locator behind slot index, keeping the
// key in place.
func (ip *IndexPage) UpdateValue(index int, newValue uint32) error {
	if index < 0 || index >= ip.KeyCount() {
		return fmt.Errorf("slot index %d out of range (count %d)", index, ip.KeyCount())
	}
	dataOffset, err := ip.ReadShort(ip.slotOffset(index))
	if err != nil {
		return err
	}
	key, consumed, err := types.DeserializeValue(ip.Data[dataOffset:])
	if err != nil {
		return fmt.Errorf("corrupt index entry for key %v: %w", key, err)
	}
	return ip.WriteInt(int(dataOffset)+consumed, newValue)
}
