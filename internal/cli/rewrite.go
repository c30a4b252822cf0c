package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/redline/internal/model"
)

var (
	rewriteAudience string
	rewriteLanguage string
	rewriteFile     string
	rewriteJSON     bool
)

func init() {
	rootCmd.AddCommand(rewriteCmd)
	rewriteCmd.Flags().StringVarP(&rewriteAudience, "audience", "a", "client", "Intended audience")
	rewriteCmd.Flags().StringVar(&rewriteLanguage, "language", "en", "Language code")
	rewriteCmd.Flags().StringVarP(&rewriteFile, "file", "f", "", "Read the message from a file (- for stdin)")
	rewriteCmd.Flags().BoolVar(&rewriteJSON, "json", false, "Print the full result as JSON")
}

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [text]",
	Short: "Rewrite one message and record it",
	Long: "Classifies the message, rewrites it for the audience and appends an\n" +
		"audit record. The trace id printed on stderr is the handle for review.",
	Args: cobra.MaximumNArgs(1),
	RunE: runRewrite,
}

func runRewrite(cmd *cobra.Command, args []string) error {
	text, err := messageText(cmd, args)
	if err != nil {
		return err
	}

	b, err := openBackend()
	if err != nil {
		return err
	}
	defer b.Close()

	res, err := b.Rewrite(cmd.Context(), model.RewriteRequest{
		Email:    text,
		Audience: rewriteAudience,
		Language: rewriteLanguage,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if rewriteJSON {
		data, _ := json.MarshalIndent(res, "", "  ")
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprintln(out, res.RewrittenEmail)
	fmt.Fprintf(cmd.ErrOrStderr(), "\ntrace_id=%s risk=%s flagged=%s\n%s\n",
		res.TraceID, res.RiskLevel, strings.Join(res.FlaggedPhrases, ","), res.Rationale)
	return nil
}

func messageText(cmd *cobra.Command, args []string) (string, error) {
	switch {
	case rewriteFile == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	case rewriteFile != "":
		data, err := os.ReadFile(rewriteFile)
		if err != nil {
			return "", fmt.Errorf("read message: %w", err)
		}
		return string(data), nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("provide the message as an argument or with --file")
	}
}
