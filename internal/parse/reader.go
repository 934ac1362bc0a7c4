package parse

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"sync/atomic"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM drops a leading UTF-8 byte order mark, which Excel adds to CSV
// exports on Windows.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// readText reads all of r as text with the BOM removed and invalid UTF-8
// replaced by '?'.
func readText(r io.Reader) (string, error) {
	data, err := io.ReadAll(skipBOM(r))
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), "?"), nil
}

// CountingReader tracks bytes read so uploads can report progress.
// It is safe to call Read and BytesRead from different goroutines.
type CountingReader struct {
	r     io.Reader
	n     atomic.Int64
	Total int64 // zero when unknown
	// OnRead, when set, is called after every read with the running total.
	OnRead func(read, total int64)
}

// NewCountingReader wraps r. total may be zero.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{r: r, Total: total}
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		read := c.n.Add(int64(n))
		if c.OnRead != nil {
			c.OnRead(read, c.Total)
		}
	}
	return n, err
}

// BytesRead returns the bytes consumed so far.
func (c *CountingReader) BytesRead() int64 { return c.n.Load() }

// Percent returns progress 0-100, or 0 if the total is unknown.
func (c *CountingReader) Percent() int {
	if c.Total <= 0 {
		return 0
	}
	p := int(c.n.Load() * 100 / c.Total)
	if p > 100 {
		p = 100
	}
	return p
}
