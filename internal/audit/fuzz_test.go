package audit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/redline/internal/model"
)

func FuzzVerify(f *testing.F) {
	// Seed with a valid 3-entry chain
	validLog := filepath.Join(f.TempDir(), "valid.jsonl")
	al, err := Open(validLog)
	if err != nil {
		f.Fatal(err)
	}
	for _, id := range []string{"t-1", "t-2", "t-3"} {
		if err := al.Append(testRecord(id, model.RiskLow)); err != nil {
			f.Fatal(err)
		}
	}
	al.Close()
	validData, _ := os.ReadFile(validLog)
	f.Add(validData)

	f.Add([]byte{})
	f.Add([]byte(`{"not":"a valid entry"}` + "\n"))
	f.Add([]byte(`not json`))

	f.Fuzz(func(t *testing.T, data []byte) {
		tmpFile := filepath.Join(t.TempDir(), "fuzz.jsonl")
		os.WriteFile(tmpFile, data, 0644)

		// Must not panic
		Verify(tmpFile)
	})
}

func FuzzReadSkipsGarbage(f *testing.F) {
	f.Add([]byte("not json\n"))
	f.Add([]byte(`{"trace_id":"t-1"}` + "\n" + `{"trace_id":`))
	f.Add([]byte("\n\n\n"))

	f.Fuzz(func(t *testing.T, data []byte) {
		path := filepath.Join(t.TempDir(), "fuzz.jsonl")
		if err := os.WriteFile(path, data, 0600); err != nil {
			t.Fatal(err)
		}
		l, err := Open(path)
		if err != nil {
			return
		}
		defer l.Close()

		if err := l.Append(testRecord("t-fuzz", model.RiskHigh)); err != nil {
			t.Fatal(err)
		}
		got, err := l.Get("t-fuzz")
		if err != nil {
			t.Fatalf("appended record not readable: %v", err)
		}
		if got.Response.RiskLevel != model.RiskHigh {
			t.Fatalf("got risk %q", got.Response.RiskLevel)
		}
	})
}
