package logs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Cursor is a byte position in the log file just past a newline. Reads stop
// at the last complete line, so a record that is still being appended is
// returned whole by a later read.
type Cursor int64

const chunkSize = 64 << 10

// Last returns up to n trailing complete lines of the log file and the
// cursor after them. A missing file yields no lines and a zero cursor.
func Last(path string, n int) ([]string, Cursor, error) {
	f, size, err := openLog(path)
	if err != nil || f == nil {
		return nil, 0, err
	}
	defer f.Close()

	want := max(n, 0)
	var buf []byte
	pos := size
	for pos > 0 && bytes.Count(buf, []byte{'\n'}) <= want {
		step := min(int64(chunkSize), pos)
		pos -= step
		chunk := make([]byte, step)
		if _, err := f.ReadAt(chunk, pos); err != nil && !errors.Is(err, io.EOF) {
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		buf = append(chunk, buf...)
	}

	end := bytes.LastIndexByte(buf, '\n')
	if end < 0 {
		return nil, Cursor(pos), nil
	}
	lines := splitComplete(buf[:end+1])
	if pos > 0 {
		// The first line started before the chunk that was read.
		lines = lines[1:]
	}
	if n <= 0 {
		lines = nil
	} else if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, Cursor(pos + int64(end) + 1), nil
}

// Since returns the complete lines written after c. A cursor beyond the end
// of the file means the log was truncated, and reading restarts at the top.
func Since(path string, c Cursor) ([]string, Cursor, error) {
	f, size, err := openLog(path)
	if err != nil || f == nil {
		return nil, 0, err
	}
	defer f.Close()

	if c < 0 || int64(c) > size {
		c = 0
	}
	data := make([]byte, size-int64(c))
	if _, err := f.ReadAt(data, int64(c)); err != nil && !errors.Is(err, io.EOF) {
		return nil, c, fmt.Errorf("read log file: %w", err)
	}
	end := bytes.LastIndexByte(data, '\n')
	if end < 0 {
		return nil, c, nil
	}
	return splitComplete(data[:end+1]), c + Cursor(end+1), nil
}

// Follow polls the log file every interval and hands each batch of new lines
// to emit. It returns nil once ctx is done.
func Follow(ctx context.Context, path string, from Cursor, interval time.Duration, emit func([]string)) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cursor := from
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		lines, next, err := Since(path, cursor)
		if err != nil {
			return err
		}
		cursor = next
		if len(lines) > 0 {
			emit(lines)
		}
	}
}

// openLog returns a nil file when path does not exist yet.
func openLog(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	return f, info.Size(), nil
}

// splitComplete splits newline-terminated data into lines without their
// terminators.
func splitComplete(data []byte) []string {
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
