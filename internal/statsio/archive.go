package statsio

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
)

// WriteArchive writes a brotli-compressed copy of the tree's indented
// text dump, for long-term storage of completed runs (spec §6, ADDED).
func WriteArchive(w io.Writer, t *Tree) error {
	bw := brotli.NewWriterLevel(w, brotli.BestCompression)
	if _, err := io.WriteString(bw, t.DumpText()); err != nil {
		return err
	}
	return bw.Close()
}

// ReadArchive decompresses a brotli archive back to its text form.
func ReadArchive(r io.Reader) (string, error) {
	br := brotli.NewReader(r)
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, br); err != nil {
		return "", err
	}
	return buf.String(), nil
}
