package trace

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// seekBuf adapts a bytes.Buffer to io.WriteSeeker for tests; it buffers
// everything in memory and only supports seeking back to the start to
// rewrite the header, matching Writer's actual usage pattern.
type seekBuf struct {
	data []byte
	pos  int
}

func (s *seekBuf) Write(p []byte) (int, error) {
	if s.pos == len(s.data) {
		s.data = append(s.data, p...)
		s.pos += len(p)
		return len(p), nil
	}
	n := copy(s.data[s.pos:], p)
	s.pos += n
	if n < len(p) {
		s.data = append(s.data, p[n:]...)
		s.pos += len(p) - n
	}
	return len(p), nil
}

func (s *seekBuf) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekStart {
		panic("unsupported")
	}
	s.pos = int(offset)
	return offset, nil
}

func TestWriteReadRoundTrip(t *testing.T) {
	sb := &seekBuf{}
	w, err := NewWriter(sb, 4)
	require.NoError(t, err)

	want := []Record{
		{LineAddr: 0x1000, ReqCycle: 10, Latency: 5, ChildID: 0, AccType: 1},
		{LineAddr: 0x2000, ReqCycle: 20, Latency: 7, ChildID: 1, AccType: 2},
	}
	for _, r := range want {
		require.NoError(t, w.Append(r))
	}
	require.NoError(t, w.Close())

	rd, err := NewReader(bytes.NewReader(sb.data))
	require.NoError(t, err)
	require.EqualValues(t, 4, rd.Header.NumChildren)
	require.EqualValues(t, 1, rd.Header.Finished)

	var got []Record
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, rec)
	}
	require.Equal(t, want, got)
}

func TestUnfinishedHeaderUntilClose(t *testing.T) {
	sb := &seekBuf{}
	w, err := NewWriter(sb, 1)
	require.NoError(t, err)
	require.NoError(t, w.Append(Record{LineAddr: 1}))

	rd, err := NewReader(bytes.NewReader(sb.data))
	require.NoError(t, err)
	require.EqualValues(t, 0, rd.Header.Finished)
}

func TestChunkBoundaryFlush(t *testing.T) {
	sb := &seekBuf{}
	w, err := NewWriter(sb, 1)
	require.NoError(t, err)
	for i := 0; i < chunkRecords+10; i++ {
		require.NoError(t, w.Append(Record{LineAddr: uint64(i)}))
	}
	require.NoError(t, w.Close())

	rd, err := NewReader(bytes.NewReader(sb.data))
	require.NoError(t, err)
	count := 0
	for {
		_, err := rd.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		count++
	}
	require.Equal(t, chunkRecords+10, count)
}
