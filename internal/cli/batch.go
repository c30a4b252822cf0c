package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/redline/internal/model"
	"github.com/ppiankov/redline/internal/service"
)

var (
	batchOut      string
	batchAudience string
)

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringVarP(&batchOut, "out", "o", "", "Write results to a file instead of stdout")
	batchCmd.Flags().StringVarP(&batchAudience, "audience", "a", "client", "Audience for lines that name none")
}

var batchCmd = &cobra.Command{
	Use:   "batch <requests.jsonl>",
	Short: "Rewrite a JSONL file of requests",
	Long: "Reads one request per line ({\"email\":...,\"audience\":...} or a bare JSON\n" +
		"string) and writes one result per line in the same order. Lines that fail\n" +
		"produce an error entry and do not stop the run. A risk summary is printed\n" +
		"on stderr. Use - to read stdin.",
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

// batchLine is one output line; exactly one of Result and Error is set.
type batchLine struct {
	Line   int                  `json:"line"`
	Result *model.RewriteResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
	Kind   string               `json:"kind,omitempty"`
}

// batchSummary counts outcomes of a batch run.
type batchSummary struct {
	Total  int
	Failed int
	ByRisk map[model.RiskLevel]int
}

func runBatch(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open requests: %w", err)
		}
		defer f.Close()
		in = f
	}

	out := cmd.OutOrStdout()
	if batchOut != "" {
		f, err := os.Create(batchOut)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	b, err := openBackend()
	if err != nil {
		return err
	}
	defer b.Close()

	sum, err := processBatch(cmd.Context(), b, in, out, batchAudience)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "processed %d, failed %d | low %d, medium %d, high %d\n",
		sum.Total, sum.Failed, sum.ByRisk[model.RiskLow], sum.ByRisk[model.RiskMedium], sum.ByRisk[model.RiskHigh])
	return nil
}

func processBatch(ctx context.Context, b backend, in io.Reader, out io.Writer, audience string) (batchSummary, error) {
	sum := batchSummary{ByRisk: make(map[model.RiskLevel]int)}
	enc := json.NewEncoder(out)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	n := 0
	for scanner.Scan() {
		n++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		sum.Total++

		line := batchLine{Line: n}
		req, err := parseBatchRequest(raw, audience)
		if err == nil {
			var res model.RewriteResult
			res, err = b.Rewrite(ctx, req)
			if err == nil {
				line.Result = &res
				sum.ByRisk[res.RiskLevel]++
			}
		}
		if err != nil {
			sum.Failed++
			line.Error = err.Error()
			line.Kind = service.Kind(err)
		}
		if err := enc.Encode(line); err != nil {
			return sum, fmt.Errorf("write result: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return sum, fmt.Errorf("read requests: %w", err)
	}
	return sum, nil
}

func parseBatchRequest(raw, audience string) (model.RewriteRequest, error) {
	var req model.RewriteRequest
	if strings.HasPrefix(raw, "\"") {
		if err := json.Unmarshal([]byte(raw), &req.Email); err != nil {
			return req, &model.ValidationError{Field: "line", Reason: "not valid JSON"}
		}
	} else if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return req, &model.ValidationError{Field: "line", Reason: "not valid JSON"}
	}
	if req.Audience == "" {
		req.Audience = audience
	}
	return req, nil
}
