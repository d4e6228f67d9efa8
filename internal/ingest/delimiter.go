package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
)

// SniffBytes is how much of a file LoadText inspects to pick a delimiter.
const SniffBytes = 1000

// DetectDelimiter returns tab when sample holds more tabs than commas,
// and comma otherwise.
func DetectDelimiter(sample []byte) rune {
	if bytes.Count(sample, []byte{'\t'}) > bytes.Count(sample, []byte{','}) {
		return '\t'
	}
	return ','
}

// SniffFile detects the delimiter from the first n bytes of path.
func SniffFile(path string, n int) (rune, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return DetectDelimiter(buf[:read]), nil
}

// SniffFirstLine detects the delimiter from the first line of path.
func SniffFirstLine(path string) (rune, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	line, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return DetectDelimiter(line), nil
}
