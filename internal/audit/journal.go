package audit

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// GenesisHash is the prev_hash for the first entry in a new journal.
const GenesisHash = "sha256:0000000000000000000000000000000000000000000000000000000000000000"

// maxLineBytes bounds a single journal line.
const maxLineBytes = 4 << 20

// journal is an append-only JSONL file with SHA-256 hash chaining.
// Each line's prev_hash is the hash of the previous complete line.
// One process writes a journal at a time; within the process appends are
// serialized by mu.
type journal struct {
	path     string
	file     *os.File
	prevHash string
	size     int64
	mu       sync.Mutex
}

// openJournal opens (or creates) path for appending and recovers the chain
// tail from the last complete line. A torn final line left by a crash is
// terminated so the next append starts on a fresh line.
func openJournal(path string) (*journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}

	prevHash := GenesisHash
	var last []byte
	err := scanLines(path, func(_ int64, line []byte) error {
		last = append(last[:0], line...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit: scan existing journal: %w", err)
	}
	if len(last) > 0 {
		prevHash = HashLine(last)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: open file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("audit: stat file: %w", err)
	}
	size := info.Size()

	if size > 0 {
		tail := make([]byte, 1)
		if _, err := file.ReadAt(tail, size-1); err != nil {
			file.Close()
			return nil, fmt.Errorf("audit: read tail: %w", err)
		}
		if tail[0] != '\n' {
			if _, err := file.Write([]byte{'\n'}); err != nil {
				file.Close()
				return nil, fmt.Errorf("audit: terminate torn line: %w", err)
			}
			size++
		}
	}

	return &journal{path: path, file: file, prevHash: prevHash, size: size}, nil
}

// append writes one line produced by encode, which receives the current
// chain tail. It syncs to disk and returns the line's byte offset.
func (j *journal) append(encode func(prevHash string) ([]byte, error)) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	line, err := encode(j.prevHash)
	if err != nil {
		return 0, fmt.Errorf("audit: marshal entry: %w", err)
	}
	if bytes.IndexByte(line, '\n') >= 0 {
		return 0, fmt.Errorf("audit: entry contains a raw newline")
	}

	offset := j.size
	if _, err := j.file.Write(append(line, '\n')); err != nil {
		return 0, fmt.Errorf("audit: write entry: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return 0, fmt.Errorf("audit: sync: %w", err)
	}

	j.size += int64(len(line)) + 1
	j.prevHash = HashLine(line)
	return offset, nil
}

func (j *journal) close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// HashLine returns "sha256:<hex>" of the given bytes.
func HashLine(line []byte) string {
	h := sha256.Sum256(line)
	return "sha256:" + hex.EncodeToString(h[:])
}

// scanLines calls fn for each complete, newline-terminated line of path
// with its byte offset. A trailing line with no newline is still being
// written (or was torn) and is not reported. A missing file has no lines.
// The line slice is only valid during the call.
func scanLines(path string, fn func(offset int64, line []byte) error) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	sc.Split(completeLines)

	var offset int64
	for sc.Scan() {
		line := sc.Bytes()
		start := offset
		offset += int64(len(line)) + 1
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if err := fn(start, line); err != nil {
			return err
		}
	}
	return sc.Err()
}

func completeLines(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), nil, nil
	}
	return 0, nil, nil
}

// readLineAt returns the complete line starting at offset.
func readLineAt(path string, offset int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(io.NewSectionReader(f, offset, maxLineBytes+1))
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("no complete line at offset %d: %w", offset, err)
	}
	return line[:len(line)-1], nil
}
