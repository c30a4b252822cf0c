package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/redline/internal/policy"
)

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd, policyShowCmd)
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect domain policies",
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available policy domains",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := policy.NewStore(cfg.PolicyDir)
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DOMAIN\tPHRASES\tAUDIENCES\tHASH")
		for _, d := range store.Domains() {
			p, err := store.Load(d)
			if err != nil {
				fmt.Fprintf(w, "%s\t-\t-\tinvalid: %v\n", d, err)
				continue
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", d, len(p.Phrases()), strings.Join(p.Audiences, ","), shortHash(p.Hash))
		}
		return w.Flush()
	},
}

var policyShowCmd = &cobra.Command{
	Use:   "show [domain]",
	Short: "Show one domain policy (default --domain)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain := flagDomain
		if len(args) == 1 {
			domain = args[0]
		}
		p, err := policy.NewStore(cfg.PolicyDir).Load(domain)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Domain:      %s\n", p.Domain)
		if p.Description != "" {
			fmt.Fprintf(out, "Description: %s\n", p.Description)
		}
		fmt.Fprintf(out, "Hash:        %s\n", p.Hash)
		fmt.Fprintf(out, "Max length:  %d\n", p.MaxLength)
		fmt.Fprintf(out, "Audiences:   %s\n", strings.Join(p.Audiences, ", "))
		fmt.Fprintf(out, "Disclaimer for: %s\n", strings.Join(p.Disclaimer.RequiredAudiences, ", "))
		fmt.Fprintf(out, "  %s\n", p.Disclaimer.Text)
		fmt.Fprintln(out, "High risk phrases:")
		for _, ph := range p.RiskPhrases.High {
			fmt.Fprintf(out, "  - %s\n", ph)
		}
		fmt.Fprintln(out, "Medium risk phrases:")
		for _, ph := range p.RiskPhrases.Medium {
			fmt.Fprintf(out, "  - %s\n", ph)
		}
		if len(p.Softening) > 0 {
			fmt.Fprintln(out, "Softening:")
			for _, r := range p.Softening {
				fmt.Fprintf(out, "  %q -> %q\n", r.Pattern, r.Replacement)
			}
		}
		return nil
	},
}

func shortHash(h string) string {
	h = strings.TrimPrefix(h, "sha256:")
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
