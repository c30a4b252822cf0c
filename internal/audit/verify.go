package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var errBroken = errors.New("chain broken")

// VerifyResult holds the outcome of a hash chain verification.
type VerifyResult struct {
	Valid     bool   `json:"valid"`
	Lines     int    `json:"lines"`
	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// Verify reads a journal (records or review events) and validates the hash
// chain. Returns Valid=true if the chain is intact, or details about the
// first broken link. Unlike reads, Verify treats a malformed line as a
// break. A missing file is an error.
func Verify(path string) VerifyResult {
	if _, err := os.Stat(path); err != nil {
		return VerifyResult{Error: fmt.Sprintf("open: %v", err)}
	}

	var (
		lineNum int
		prev    []byte
		result  *VerifyResult
	)
	err := scanLines(path, func(_ int64, line []byte) error {
		lineNum++

		var entry struct {
			PrevHash *string `json:"prev_hash"`
		}
		if err := json.Unmarshal(line, &entry); err != nil || entry.PrevHash == nil {
			result = &VerifyResult{Error: "parse error: line is not a chained entry", ErrorLine: lineNum}
			return errBroken
		}

		expected := GenesisHash
		if prev != nil {
			expected = HashLine(prev)
		}
		if *entry.PrevHash != expected {
			msg := fmt.Sprintf("hash mismatch: expected %s, got %s", expected, *entry.PrevHash)
			if prev == nil {
				msg = fmt.Sprintf("first entry prev_hash is %q, expected genesis hash", *entry.PrevHash)
			}
			result = &VerifyResult{Error: msg, ErrorLine: lineNum}
			return errBroken
		}

		prev = append(prev[:0], line...)
		return nil
	})
	if result != nil {
		return *result
	}
	if err != nil {
		return VerifyResult{Error: fmt.Sprintf("scan: %v", err)}
	}
	return VerifyResult{Valid: true, Lines: lineNum}
}
