// Package persistence implements an append-only JSON-lines log. Each record
// is written as one line and synced before Append returns.
package persistence

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// maxLineSize bounds a single record during replay.
const maxLineSize = 1 << 20

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("log is closed")

// Log is an append-only file of JSON records.
type Log struct {
	mu      sync.Mutex
	file    *os.File
	dropped int64
}

// Open opens or creates the log at path for appending. A partial record left
// at the end by an interrupted Append is truncated away first, so the next
// record starts on its own line.
func Open(path string) (*Log, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	dropped, err := trimTornTail(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("repair log tail: %w", err)
	}
	return &Log{file: file, dropped: dropped}, nil
}

// Dropped reports how many bytes of a torn final record Open discarded.
func (l *Log) Dropped() int64 { return l.dropped }

// trimTornTail truncates file after its last newline and returns the number
// of bytes removed.
func trimTornTail(file *os.File) (int64, error) {
	info, err := file.Stat()
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if size == 0 {
		return 0, nil
	}

	buf := make([]byte, 4096)
	end := size
	for end > 0 {
		start := max(end-int64(len(buf)), 0)
		chunk := buf[:end-start]
		if _, err := file.ReadAt(chunk, start); err != nil {
			return 0, err
		}
		if end == size && chunk[len(chunk)-1] == '\n' {
			return 0, nil
		}
		if i := bytes.LastIndexByte(chunk, '\n'); i >= 0 {
			keep := start + int64(i) + 1
			return size - keep, truncate(file, keep)
		}
		end = start
	}
	return size, truncate(file, 0)
}

func truncate(file *os.File, size int64) error {
	if err := file.Truncate(size); err != nil {
		return err
	}
	return file.Sync()
}

// Append marshals record, writes it as one line and syncs the file.
func (l *Log) Append(record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return ErrClosed
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return l.file.Sync()
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Replay calls apply for every line of the log at path, oldest first. A
// missing file replays nothing. Blank lines are skipped.
func Replay(path string, apply func(line []byte) error) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := apply(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}
