// Package trace implements the fixed-size binary request-trace file
// format: a small header followed by DEFLATE-9-compressed chunks of
// 256Ki fixed-width records.
package trace

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// recordSize is the on-disk width of one Record: lineAddr(8) + reqCycle(8)
// + latency(4) + childId(2) + accType(2).
const recordSize = 24

// chunkRecords is the number of records grouped into a single compressed
// block.
const chunkRecords = 256 * 1024

// Record is one traced memory access.
type Record struct {
	LineAddr uint64
	ReqCycle uint64
	Latency  uint32
	ChildID  uint16
	AccType  uint16
}

func (r Record) encode(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], r.LineAddr)
	binary.LittleEndian.PutUint64(buf[8:16], r.ReqCycle)
	binary.LittleEndian.PutUint32(buf[16:20], r.Latency)
	binary.LittleEndian.PutUint16(buf[20:22], r.ChildID)
	binary.LittleEndian.PutUint16(buf[22:24], r.AccType)
}

func decodeRecord(buf []byte) Record {
	return Record{
		LineAddr: binary.LittleEndian.Uint64(buf[0:8]),
		ReqCycle: binary.LittleEndian.Uint64(buf[8:16]),
		Latency:  binary.LittleEndian.Uint32(buf[16:20]),
		ChildID:  binary.LittleEndian.Uint16(buf[20:22]),
		AccType:  binary.LittleEndian.Uint16(buf[22:24]),
	}
}

// header is the small unencrypted file prologue.
type header struct {
	NumChildren uint32
	Finished    uint8
}

const headerSize = 5

func (h header) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.NumChildren)
	buf[4] = h.Finished
}

func decodeHeader(buf []byte) header {
	return header{NumChildren: binary.LittleEndian.Uint32(buf[0:4]), Finished: buf[4]}
}

// Writer appends trace records to an underlying file, compressing each
// completed 256Ki-record chunk with DEFLATE-9.
type Writer struct {
	w        io.WriteSeeker
	numChildren uint32
	pending  []Record
	closed   bool
}

// NewWriter writes the header immediately (Finished=0) and returns a
// Writer ready to accept records.
func NewWriter(w io.WriteSeeker, numChildren uint32) (*Writer, error) {
	h := header{NumChildren: numChildren, Finished: 0}
	buf := make([]byte, headerSize)
	h.encode(buf)
	if _, err := w.Write(buf); err != nil {
		return nil, fmt.Errorf("trace: writing header: %w", err)
	}
	return &Writer{w: w, numChildren: numChildren}, nil
}

// Append adds one record, flushing a compressed chunk once chunkRecords
// have accumulated.
func (tw *Writer) Append(r Record) error {
	tw.pending = append(tw.pending, r)
	if len(tw.pending) >= chunkRecords {
		return tw.flushChunk()
	}
	return nil
}

func (tw *Writer) flushChunk() error {
	if len(tw.pending) == 0 {
		return nil
	}
	raw := make([]byte, len(tw.pending)*recordSize)
	for i, r := range tw.pending {
		r.encode(raw[i*recordSize : (i+1)*recordSize])
	}

	fw, err := flate.NewWriter(tw.w, flate.BestCompression)
	if err != nil {
		return fmt.Errorf("trace: creating deflate writer: %w", err)
	}
	var lenBuf [8]byte
	binary.LittleEndian.PutUint32(lenBuf[0:4], uint32(len(tw.pending)))
	if _, err := tw.w.Write(lenBuf[0:4]); err != nil {
		return fmt.Errorf("trace: writing chunk length: %w", err)
	}
	if _, err := fw.Write(raw); err != nil {
		return fmt.Errorf("trace: compressing chunk: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("trace: closing deflate writer: %w", err)
	}
	tw.pending = tw.pending[:0]
	return nil
}

// Close flushes any remaining records and flips the header's Finished
// byte to 1 (spec §6).
func (tw *Writer) Close() error {
	if tw.closed {
		return nil
	}
	tw.closed = true
	if err := tw.flushChunk(); err != nil {
		return err
	}
	if _, err := tw.w.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("trace: seeking to header: %w", err)
	}
	h := header{NumChildren: tw.numChildren, Finished: 1}
	buf := make([]byte, headerSize)
	h.encode(buf)
	_, err := tw.w.Write(buf)
	return err
}

// Reader streams records back out of a trace file in order.
type Reader struct {
	r      *bufio.Reader
	Header header
	cur    []Record
	curIdx int
}

// NewReader reads the header and prepares to stream records.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	hbuf := make([]byte, headerSize)
	if _, err := io.ReadFull(br, hbuf); err != nil {
		return nil, fmt.Errorf("trace: reading header: %w", err)
	}
	return &Reader{r: br, Header: decodeHeader(hbuf)}, nil
}

// Next returns the next record, or io.EOF once the file is exhausted.
func (tr *Reader) Next() (Record, error) {
	for tr.curIdx >= len(tr.cur) {
		if err := tr.nextChunk(); err != nil {
			return Record{}, err
		}
	}
	rec := tr.cur[tr.curIdx]
	tr.curIdx++
	return rec, nil
}

func (tr *Reader) nextChunk() error {
	var lenBuf [4]byte
	if _, err := io.ReadFull(tr.r, lenBuf[:]); err != nil {
		return err // propagates io.EOF at end of file
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])

	fr := flate.NewReader(tr.r)
	defer fr.Close()
	raw := make([]byte, int(n)*recordSize)
	if _, err := io.ReadFull(fr, raw); err != nil {
		return fmt.Errorf("trace: decompressing chunk: %w", err)
	}
	tr.cur = make([]Record, n)
	for i := range tr.cur {
		tr.cur[i] = decodeRecord(raw[i*recordSize : (i+1)*recordSize])
	}
	tr.curIdx = 0
	return nil
}
