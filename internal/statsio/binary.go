package statsio

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteBinary serializes the tree as the tabular binary record spec §6
// calls for: a count, then count * (u16 nameLen, name bytes, u64 value).
func WriteBinary(w io.Writer, t *Tree) error {
	rows := t.flattened()
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(rows)))
	if _, err := w.Write(countBuf[:]); err != nil {
		return fmt.Errorf("statsio: writing row count: %w", err)
	}
	for _, r := range rows {
		if err := writeRow(w, r); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(w io.Writer, r kv) error {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(r.name)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, r.name); err != nil {
		return err
	}
	var valBuf [8]byte
	binary.LittleEndian.PutUint64(valBuf[:], r.value)
	_, err := w.Write(valBuf[:])
	return err
}

// ReadBinary parses a binary tabular dump back into flat (name, value)
// pairs, primarily for round-trip testing of WriteBinary.
func ReadBinary(r io.Reader) (map[string]uint64, error) {
	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, fmt.Errorf("statsio: reading row count: %w", err)
	}
	count := binary.LittleEndian.Uint32(countBuf[:])
	out := make(map[string]uint64, count)
	for i := uint32(0); i < count; i++ {
		var lenBuf [2]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return nil, err
		}
		nameLen := binary.LittleEndian.Uint16(lenBuf[:])
		nameBuf := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBuf); err != nil {
			return nil, err
		}
		var valBuf [8]byte
		if _, err := io.ReadFull(r, valBuf[:]); err != nil {
			return nil, err
		}
		out[string(nameBuf)] = binary.LittleEndian.Uint64(valBuf[:])
	}
	return out, nil
}
