package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/redline/internal/review"
)

var (
	reviewReviewer string
	reviewComment  string
	reviewText     string
)

func init() {
	rootCmd.AddCommand(reviewCmd)
	for _, action := range []string{"approve", "reject", "edit"} {
		reviewCmd.AddCommand(newReviewActionCmd(action))
	}
	reviewCmd.PersistentFlags().StringVarP(&reviewReviewer, "reviewer", "r", "", "Reviewer name (required)")
	reviewCmd.PersistentFlags().StringVarP(&reviewComment, "comment", "m", "", "Review comment")
	_ = reviewCmd.MarkPersistentFlagRequired("reviewer")
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Approve, reject or edit a recorded rewrite",
}

func newReviewActionCmd(action string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   action + " <trace_id>",
		Short: fmt.Sprintf("Mark a trace as %s", action),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReview(cmd, action, args[0])
		},
	}
	if action == "edit" {
		cmd.Short = "Replace the rewritten text of a trace"
		cmd.Flags().StringVar(&reviewText, "text", "", "Replacement text (required)")
		_ = cmd.MarkFlagRequired("text")
	}
	return cmd
}

func runReview(cmd *cobra.Command, action, traceID string) error {
	b, err := openBackend()
	if err != nil {
		return err
	}
	defer b.Close()

	a := review.Action{
		TraceID:  traceID,
		Action:   action,
		Reviewer: reviewReviewer,
		Comment:  reviewComment,
	}
	if action == "edit" {
		a.EditedEmail = reviewText
	}

	out, err := b.Review(cmd.Context(), a)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", out.TraceID, out.ReviewStatus)
	return nil
}
