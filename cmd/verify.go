package cmd

import (
	"github.com/spf13/cobra"

	"github.com/backlinkoo/blog-engine/internal/verify"
)

func newVerifyCmd() *cobra.Command {
	var req verify.Request
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Checks that a page links to a target URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := req.Validate(); err != nil {
				return err
			}
			res, err := appInstance.Verifier().Verify(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&req.SourceURL, "source", "", "page expected to carry the backlink")
	cmd.Flags().StringVar(&req.TargetURL, "target", "", "URL the backlink should point to")
	cmd.Flags().StringVar(&req.AnchorText, "anchor", "", "expected anchor text")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}
