package filemanager

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"time"
)

/*
WAL record layout, big-endian:

	Offset  Size  Field
	──────────────────────────────
	0       4     PageID      uint32
	4       8     Timestamp   uint64 — unix milliseconds
	12      2     OldLen      uint16
	14      2     NewLen      uint16
	16      *     OldData
	16+old  *     NewData

Transaction boundaries are bare ASCII markers (TX_START / TX_COMMIT /
TX_ROLLBACK) appended between records.
*/

const walRecordHeaderSize = 16

var (
	markerTxStart    = []byte("TX_START")
	markerTxCommit   = []byte("TX_COMMIT")
	markerTxRollback = []byte("TX_ROLLBACK")
)

// WALRecord is one page mutation: the pre-image and the post-image.
type WALRecord struct {
	PageID    uint32
	Timestamp uint64
	OldData   []byte
	NewData   []byte
}

func encodeWALRecord(pageID uint32, oldData, newData []byte) []byte {
	buf := make([]byte, walRecordHeaderSize+len(oldData)+len(newData))
	binary.BigEndian.PutUint32(buf[0:], pageID)
	binary.BigEndian.PutUint64(buf[4:], uint64(time.Now().UnixMilli()))
	binary.BigEndian.PutUint16(buf[12:], uint16(len(oldData)))
	binary.BigEndian.PutUint16(buf[14:], uint16(len(newData)))
	copy(buf[walRecordHeaderSize:], oldData)
	copy(buf[walRecordHeaderSize+len(oldData):], newData)
	return buf
}

// appendWAL appends raw bytes to the log and fsyncs. Durability of the
// pre-image is the whole point: the page itself is only overwritten
// after this returns.
func (fm *FileManager) appendWAL(data []byte) error {
	wal, err := os.OpenFile(fm.walPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	defer wal.Close()

	if _, err := wal.Write(data); err != nil {
		return fmt.Errorf("append wal: %w", err)
	}
	return wal.Sync()
}

// BeginTransaction marks a transaction boundary in the WAL.
func (fm *FileManager) BeginTransaction() error {
	return fm.appendWAL(markerTxStart)
}

// CommitTransaction marks a successful transaction end in the WAL.
func (fm *FileManager) CommitTransaction() error {
	return fm.appendWAL(markerTxCommit)
}

// RollbackTransaction marks an aborted transaction in the WAL.
func (fm *FileManager) RollbackTransaction() error {
	return fm.appendWAL(markerTxRollback)
}

// ReadWALRecords scans the log and returns every complete page record,
// skipping transaction markers. A truncated tail (partial record from a
// crash mid-append) ends the scan without error.
func (fm *FileManager) ReadWALRecords() ([]WALRecord, error) {
	data, err := os.ReadFile(fm.walPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read wal: %w", err)
	}

	var records []WALRecord
	pos := 0
	for pos < len(data) {
		if marker := matchMarker(data[pos:]); marker > 0 {
			pos += marker
			continue
		}
		if pos+walRecordHeaderSize > len(data) {
			break
		}
		oldLen := int(binary.BigEndian.Uint16(data[pos+12:]))
		newLen := int(binary.BigEndian.Uint16(data[pos+14:]))
		end := pos + walRecordHeaderSize + oldLen + newLen
		if end > len(data) {
			break
		}
		records = append(records, WALRecord{
			PageID:    binary.BigEndian.Uint32(data[pos:]),
			Timestamp: binary.BigEndian.Uint64(data[pos+4:]),
			OldData:   data[pos+walRecordHeaderSize : pos+walRecordHeaderSize+oldLen],
			NewData:   data[pos+walRecordHeaderSize+oldLen : end],
		})
		pos = end
	}
	return records, nil
}

func matchMarker(data []byte) int {
	// TX_ROLLBACK before TX_START: both start with "TX_" and length
	// decides which one matched.
	for _, m := range [][]byte{markerTxRollback, markerTxCommit, markerTxStart} {
		if bytes.HasPrefix(data, m) {
			return len(m)
		}
	}
	return 0
}

// Checkpoint truncates the WAL. All page writes already went to the
// database file synchronously, so the log carries no state the file
// lacks; truncation just bounds its growth. Replay of a torn write is
// handled by Recover, which callers invoke explicitly.
func (fm *FileManager) Checkpoint() error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	if err := os.Truncate(fm.walPath, 0); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("truncate wal: %w", err)
	}
	fm.logger.Info("checkpoint complete, wal cleared")
	return nil
}

// Recover replays the post-images of every complete WAL record, in log
// order, then truncates the log. Records are idempotent full-page
// images so last-writer-wins gives the same result as the original
// write sequence. Intended to be called explicitly at startup after an
// unclean shutdown.
func (fm *FileManager) Recover() error {
	records, err := fm.ReadWALRecords()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fm.logger.Info("recovery complete, no wal records to replay")
		return nil
	}

	fm.mu.Lock()
	f, err := os.OpenFile(fm.dbPath, os.O_RDWR, 0644)
	if err != nil {
		fm.mu.Unlock()
		return fmt.Errorf("open database for recovery: %w", err)
	}

	replayed := 0
	for _, rec := range records {
		if len(rec.NewData) == 0 {
			continue
		}
		if _, err := f.WriteAt(rec.NewData, int64(rec.PageID)*PageSize); err != nil {
			f.Close()
			fm.mu.Unlock()
			return fmt.Errorf("replay page %d: %w", rec.PageID, err)
		}
		replayed++
	}
	if err := f.Sync(); err != nil {
		f.Close()
		fm.mu.Unlock()
		return fmt.Errorf("sync after replay: %w", err)
	}
	f.Close()
	fm.mu.Unlock()

	fm.logger.Info("recovery complete", "replayed", replayed)
	return fm.Checkpoint()
}

// WALSize reports the current log size in bytes.
func (fm *FileManager) WALSize() int64 {
	stat, err := os.Stat(fm.walPath)
	if err != nil {
		return 0
	}
	return stat.Size()
}
