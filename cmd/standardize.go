package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

func newStandardizeCmd() *cobra.Command {
	var (
		postID   string
		domainID string
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "standardize",
		Short: "Rewrites stored post content through the formatter",
		Long: `Standardizes a single post (--post) or every published post of a domain
(--domain) and prints the outcome as JSON. Requires database.dsn.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if !appInstance.HasDatabase() {
				return errors.New("standardize requires database.dsn")
			}

			if postID != "" {
				out, err := appInstance.Standardizer().StandardizePost(cmd.Context(), postID, force)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			}
			report, err := appInstance.Standardizer().StandardizeAll(cmd.Context(), domainID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&postID, "post", "", "post ID to standardize")
	cmd.Flags().StringVar(&domainID, "domain", "", "domain ID whose posts to standardize")
	cmd.Flags().BoolVar(&force, "force", false, "rewrite even when the post already scores well")
	cmd.MarkFlagsOneRequired("post", "domain")
	cmd.MarkFlagsMutuallyExclusive("post", "domain")
	return cmd
}
