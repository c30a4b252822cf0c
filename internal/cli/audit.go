package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/redline/internal/audit"
	"github.com/ppiankov/redline/internal/service"
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit journal operations",
	Long:  "Commands for verifying the hash-chained audit journals.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [path...]",
	Short: "Verify hash chain integrity of audit journals",
	Long: "Walks each JSONL journal and validates that every entry's prev_hash\n" +
		"matches the SHA-256 of the previous line. Without arguments, verifies the\n" +
		"record and event journals of --domain under --audit-dir.\n" +
		"Exits 0 if all are valid, 1 otherwise.",
	RunE: runAuditVerify,
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		records, events, _ := service.Paths(cfg.AuditDir, flagDomain)
		paths = []string{records, events}
	}

	failed := false
	for _, path := range paths {
		result := audit.Verify(path)
		if result.Valid {
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s: %d entries verified\n", path, result.Lines)
			continue
		}
		failed = true
		fmt.Fprintf(cmd.ErrOrStderr(), "FAILED: %s at line %d: %s\n", path, result.ErrorLine, result.Error)
	}
	if failed {
		os.Exit(1)
	}
	return nil
}
