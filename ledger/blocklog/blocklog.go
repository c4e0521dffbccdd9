// Package blocklog implements the append-only block log: a file of
// length-prefixed frames (u32 len || encoded block), spec.md §4.2.
// Grounded on the open/close/iterate lifecycle of klaytn's
// storage/database/leveldb_database.go, but the frame format itself is
// the spec's literal length-prefixed layout rather than an embedded KV
// engine (the KV engine is reserved for the index, ledger/index).
package blocklog

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klaytn/graelnode/chain"
	"github.com/klaytn/graelnode/internal/log"
)

var logger = log.NewModuleLogger(log.ModuleBlockLog)

// Log is the append-only block file. One Log exclusively owns its file
// handle; concurrent callers must serialize through the owning
// Blockchain's lock (spec.md §5).
type Log struct {
	mu       sync.Mutex
	f        *os.File
	unit     string
	tailOff  int64 // offset the next Append will write at
}

// Open opens (creating if absent) the block log at path. If the tail
// frame is torn (its declared length runs past EOF), autoTrim controls
// whether it is truncated away (auto_trim=true) or the open fails
// (auto_trim=false), per spec.md §4.2.
func Open(path string, unit string, autoTrim bool) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("blocklog: open: %w", err)
	}
	l := &Log{f: f, unit: unit}
	if err := l.recoverTail(autoTrim); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// recoverTail scans to find the valid tail offset, truncating a torn
// final frame if autoTrim is set.
func (l *Log) recoverTail(autoTrim bool) error {
	size, err := l.f.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}

	var off int64
	for off < size {
		var lenBuf [4]byte
		if _, err := l.f.ReadAt(lenBuf[:], off); err != nil {
			break
		}
		frameLen := int64(binary.BigEndian.Uint32(lenBuf[:]))
		if off+4+frameLen > size {
			// torn tail frame
			if !autoTrim {
				return fmt.Errorf("blocklog: torn tail frame at offset %d and auto_trim is disabled", off)
			}
			logger.Warn("truncating torn tail frame", "offset", off, "fileSize", size)
			if err := l.f.Truncate(off); err != nil {
				return err
			}
			size = off
			break
		}
		off += 4 + frameLen
	}
	l.tailOff = off
	return nil
}

// Append writes one frame (u32 len || encoded block) in a single Write
// call, flushes it, and updates the tail pointer on success. Appends are
// serialized by the log's own mutex; the owning Blockchain additionally
// performs them under its write lock.
func (l *Log) Append(blk *chain.Block) (offset int64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	buf := chain.NewBuffer(4096)
	chain.EncodeWithTx(buf, blk)
	payload := buf.Bytes()

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(payload)))
	copy(frame[4:], payload)

	off := l.tailOff
	if _, err := l.f.WriteAt(frame, off); err != nil {
		return 0, fmt.Errorf("blocklog: append: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return 0, fmt.Errorf("blocklog: fsync: %w", err)
	}
	l.tailOff = off + int64(len(frame))
	return off, nil
}

// ReadAt decodes the frame whose length prefix starts at offset.
func (l *Log) ReadAt(offset int64) (*chain.Block, error) {
	blk, _, err := l.readFrameAt(offset)
	return blk, err
}

func (l *Log) readFrameAt(offset int64) (*chain.Block, int64, error) {
	var lenBuf [4]byte
	if _, err := l.f.ReadAt(lenBuf[:], offset); err != nil {
		return nil, 0, fmt.Errorf("blocklog: read length at %d: %w", offset, err)
	}
	frameLen := binary.BigEndian.Uint32(lenBuf[:])
	payload := make([]byte, frameLen)
	if _, err := l.f.ReadAt(payload, offset+4); err != nil {
		return nil, 0, fmt.Errorf("blocklog: read payload at %d: %w", offset, err)
	}
	blk, err := chain.DecodeWithTx(chain.NewCursor(payload), l.unit)
	if err != nil {
		return nil, 0, fmt.Errorf("blocklog: decode at %d: %w", offset, err)
	}
	return blk, 4 + int64(frameLen), nil
}

// Frame pairs a decoded block with the file offset its frame starts at.
type Frame struct {
	Offset int64
	Block  *chain.Block
}

// Scan iterates every frame from the start of the log, in order, calling
// fn for each. Scan stops and returns fn's error if it returns non-nil.
// Used by reindex.
func (l *Log) Scan(fn func(Frame) error) error {
	var off int64
	for off < l.tailOff {
		blk, frameLen, err := l.readFrameAt(off)
		if err != nil {
			return err
		}
		if err := fn(Frame{Offset: off, Block: blk}); err != nil {
			return err
		}
		off += frameLen
	}
	return nil
}

// Tail returns the current append offset (== file size).
func (l *Log) Tail() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tailOff
}

// Close closes the underlying file handle.
func (l *Log) Close() error {
	return l.f.Close()
}
