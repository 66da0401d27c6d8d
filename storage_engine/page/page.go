package page

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
)

/*
Page is the fixed-size unit of I/O. Every on-disk page carries the same
13-byte header regardless of its role:

	Offset  Size  Field
	──────────────────────────────────────────────
	0       1     PageType    uint8
	1       4     Checksum    uint32 — sum of all bytes after this field
	5       4     LSN         uint32 — bumped on every WAL-protected write
	9       2     FreeStart   uint16 — first free byte
	11      2     FreeEnd     uint16 — one past the last free byte
	──────────────────────────────────────────────
	13            HeaderSize

All multi-byte fields are big-endian. FreeStart grows forward as space
is bump-allocated; FreeEnd shrinks backward for layouts (index pages)
that grow payloads down from the page end. Invariant:
HeaderSize <= FreeStart <= FreeEnd <= PageSize.
*/

const (
	PageSize = 4096

	TypeOffset      = 0
	ChecksumOffset  = 1
	LSNOffset       = 5
	FreeStartOffset = 9
	FreeEndOffset   = 11
	HeaderSize      = 13
)

type PageType uint8

const (
	TypeFree PageType = iota
	TypeHeader
	TypeCatalog
	TypeTable
	TypeIndex
)

func (t PageType) String() string {
	switch t {
	case TypeFree:
		return "FREE"
	case TypeHeader:
		return "HEADER"
	case TypeCatalog:
		return "CATALOG"
	case TypeTable:
		return "TABLE"
	case TypeIndex:
		return "INDEX"
	}
	return fmt.Sprintf("PageType(%d)", uint8(t))
}

type Page struct {
	ID       uint32
	Data     []byte
	IsDirty  bool
	PinCount int32

	mu sync.RWMutex
}

// New creates a fresh page with an initialized header.
func New(id uint32, pageType PageType) *Page {
	p := &Page{
		ID:   id,
		Data: make([]byte, PageSize),
	}
	p.initHeader(pageType)
	return p
}

// FromBytes reconstructs a page from a raw on-disk image. Short images
// are zero-padded to PageSize; oversized ones are truncated.
func FromBytes(id uint32, data []byte) *Page {
	buf := make([]byte, PageSize)
	copy(buf, data)
	return &Page{ID: id, Data: buf}
}

func (p *Page) initHeader(pageType PageType) {
	p.Data[TypeOffset] = byte(pageType)
	binary.BigEndian.PutUint32(p.Data[ChecksumOffset:], 0)
	binary.BigEndian.PutUint32(p.Data[LSNOffset:], 0)
	binary.BigEndian.PutUint16(p.Data[FreeStartOffset:], HeaderSize)
	binary.BigEndian.PutUint16(p.Data[FreeEndOffset:], PageSize)
	p.IsDirty = true
}

// Reset wipes the page body and re-stamps the header as pageType.
// Used when a free-list page is recycled.
func (p *Page) Reset(pageType PageType) {
	for i := range p.Data {
		p.Data[i] = 0
	}
	p.initHeader(pageType)
}

func (p *Page) Lock()    { p.mu.Lock() }
func (p *Page) Unlock()  { p.mu.Unlock() }
func (p *Page) RLock()   { p.mu.RLock() }
func (p *Page) RUnlock() { p.mu.RUnlock() }

func (p *Page) Type() PageType { return PageType(p.Data[TypeOffset]) }

func (p *Page) SetType(t PageType) {
	p.Data[TypeOffset] = byte(t)
	p.IsDirty = true
}

func (p *Page) LSN() uint32 { return binary.BigEndian.Uint32(p.Data[LSNOffset:]) }

func (p *Page) SetLSN(lsn uint32) {
	binary.BigEndian.PutUint32(p.Data[LSNOffset:], lsn)
	p.IsDirty = true
}

// ─────────────────────────────────────────────────────────────────────
// Checksum
// ─────────────────────────────────────────────────────────────────────

// CalculateChecksum sums every byte after the checksum field.
func (p *Page) CalculateChecksum() uint32 {
	var sum uint32
	for _, b := range p.Data[ChecksumOffset+4:] {
		sum += uint32(b)
	}
	return sum
}

func (p *Page) UpdateChecksum() {
	binary.BigEndian.PutUint32(p.Data[ChecksumOffset:], p.CalculateChecksum())
}

// ValidateChecksum reports whether the stored checksum matches the page
// contents. A mismatch signals on-disk corruption; callers log it and
// continue with best-effort data.
func (p *Page) ValidateChecksum() bool {
	stored := binary.BigEndian.Uint32(p.Data[ChecksumOffset:])
	return stored == p.CalculateChecksum()
}

// ─────────────────────────────────────────────────────────────────────
// Typed accessors — every access is bounds-checked against PageSize
// ─────────────────────────────────────────────────────────────────────

func (p *Page) checkBounds(offset, length int) error {
	if offset < 0 || length < 0 || offset+length > PageSize {
		return fmt.Errorf("access [%d:%d) out of page bounds (page %d)", offset, offset+length, p.ID)
	}
	return nil
}

func (p *Page) WriteByte(offset int, value byte) error {
	if err := p.checkBounds(offset, 1); err != nil {
		return err
	}
	p.Data[offset] = value
	p.IsDirty = true
	return nil
}

func (p *Page) ReadByte(offset int) (byte, error) {
	if err := p.checkBounds(offset, 1); err != nil {
		return 0, err
	}
	return p.Data[offset], nil
}

func (p *Page) WriteShort(offset int, value uint16) error {
	if err := p.checkBounds(offset, 2); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(p.Data[offset:], value)
	p.IsDirty = true
	return nil
}

func (p *Page) ReadShort(offset int) (uint16, error) {
	if err := p.checkBounds(offset, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(p.Data[offset:]), nil
}

func (p *Page) WriteInt(offset int, value uint32) error {
	if err := p.checkBounds(offset, 4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(p.Data[offset:], value)
	p.IsDirty = true
	return nil
}

func (p *Page) ReadInt(offset int) (uint32, error) {
	if err := p.checkBounds(offset, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(p.Data[offset:]), nil
}

func (p *Page) WriteDouble(offset int, value float64) error {
	if err := p.checkBounds(offset, 8); err != nil {
		return err
	}
	binary.BigEndian.PutUint64(p.Data[offset:], math.Float64bits(value))
	p.IsDirty = true
	return nil
}

func (p *Page) ReadDouble(offset int) (float64, error) {
	if err := p.checkBounds(offset, 8); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.BigEndian.Uint64(p.Data[offset:])), nil
}

// WriteString stores a length-prefixed string inside a fixed-width
// field: 1 length byte plus up to maxLength-1 payload bytes.
func (p *Page) WriteString(offset int, value string, maxLength int) error {
	if err := p.checkBounds(offset, maxLength); err != nil {
		return err
	}
	if len(value) > maxLength-1 || len(value) > 255 {
		return fmt.Errorf("string %q exceeds field width %d", value, maxLength-1)
	}
	p.Data[offset] = byte(len(value))
	copy(p.Data[offset+1:], value)
	p.IsDirty = true
	return nil
}

func (p *Page) ReadString(offset int) (string, error) {
	length, err := p.ReadByte(offset)
	if err != nil {
		return "", err
	}
	if err := p.checkBounds(offset+1, int(length)); err != nil {
		return "", fmt.Errorf("string extends beyond page bounds: %w", err)
	}
	return string(p.Data[offset+1 : offset+1+int(length)]), nil
}

func (p *Page) WriteBytes(offset int, data []byte) error {
	if err := p.checkBounds(offset, len(data)); err != nil {
		return err
	}
	copy(p.Data[offset:], data)
	p.IsDirty = true
	return nil
}

func (p *Page) ReadBytes(offset, length int) ([]byte, error) {
	if err := p.checkBounds(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, p.Data[offset:offset+length])
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────
// Free space management
// ─────────────────────────────────────────────────────────────────────

func (p *Page) FreeStart() uint16 { return binary.BigEndian.Uint16(p.Data[FreeStartOffset:]) }
func (p *Page) FreeEnd() uint16   { return binary.BigEndian.Uint16(p.Data[FreeEndOffset:]) }

func (p *Page) SetFreeStart(v uint16) {
	binary.BigEndian.PutUint16(p.Data[FreeStartOffset:], v)
	p.IsDirty = true
}

func (p *Page) SetFreeEnd(v uint16) {
	binary.BigEndian.PutUint16(p.Data[FreeEndOffset:], v)
	p.IsDirty = true
}

func (p *Page) FreeSpace() int {
	return int(p.FreeEnd()) - int(p.FreeStart())
}

// AllocateSpace bump-allocates size bytes from the front of the free
// region, returning the offset. ok is false when the page is too full.
func (p *Page) AllocateSpace(size int) (offset int, ok bool) {
	if p.FreeSpace() < size {
		return 0, false
	}
	offset = int(p.FreeStart())
	p.SetFreeStart(uint16(offset + size))
	return offset, true
}

func (p *Page) UsedSpace() int {
	return int(p.FreeStart()) - HeaderSize
}

func (p *Page) String() string {
	return fmt.Sprintf("Page(id=%d, type=%s, dirty=%v, pin=%d, free=%dB)",
		p.ID, p.Type(), p.IsDirty, p.PinCount, p.FreeSpace())
}
