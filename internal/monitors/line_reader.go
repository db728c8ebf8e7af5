package monitors

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// MaxLineBytes limits a single access log line. Longer lines are skipped
// without ending the stream.
const MaxLineBytes = 1024 * 1024

// LineReader splits a stream into lines. Unlike bufio.Scanner it survives a
// line longer than its limit: the rest of that line is discarded up to the
// next newline and reading continues.
type LineReader struct {
	reader *bufio.Reader
	max    int
	buf    []byte
}

// NewLineReader creates a reader keeping at most max bytes per line.
func NewLineReader(r io.Reader, max int) *LineReader {
	if max <= 0 {
		max = MaxLineBytes
	}
	return &LineReader{
		reader: bufio.NewReaderSize(r, 64*1024),
		max:    max,
	}
}

// Next returns the next line without its "\n" or "\r\n" terminator.
// skipped is true when the line exceeded the limit and was dropped; the
// returned text is then empty. err is io.EOF once the input is exhausted;
// a final line without a newline is still returned first.
func (lr *LineReader) Next() (line string, skipped bool, err error) {
	lr.buf = lr.buf[:0]

	for {
		chunk, readErr := lr.reader.ReadSlice('\n')
		if !skipped {
			if len(lr.buf)+len(bytesWithoutNewline(chunk)) > lr.max {
				skipped = true
				lr.buf = lr.buf[:0]
			} else {
				lr.buf = append(lr.buf, chunk...)
			}
		}

		if errors.Is(readErr, bufio.ErrBufferFull) {
			continue
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) && (len(lr.buf) > 0 || skipped) {
				return lr.text(), skipped, nil
			}
			return "", false, readErr
		}
		return lr.text(), skipped, nil
	}
}

func (lr *LineReader) text() string {
	return strings.TrimRight(string(lr.buf), "\r\n")
}

func bytesWithoutNewline(chunk []byte) []byte {
	if n := len(chunk); n > 0 && chunk[n-1] == '\n' {
		return chunk[:n-1]
	}
	return chunk
}
