package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/backlinkoo/blog-engine/internal/formatter"
	"github.com/backlinkoo/blog-engine/internal/standardize"
)

func newFormatCmd() *cobra.Command {
	var (
		title    string
		markdown bool
		score    bool
	)
	cmd := &cobra.Command{
		Use:   "format [file]",
		Short: "Formats post content and prints the cleaned HTML",
		Long: `Runs the content pipeline over a file, or stdin when no file is given.
--markdown prints markdown instead of HTML. --score also writes the quality
report of the formatted HTML to stderr as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}

			var raw []byte
			if len(args) == 1 {
				raw, err = os.ReadFile(args[0])
			} else {
				raw, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			res := appInstance.Formatter().Process(string(raw), title)
			if res.Fallback {
				appInstance.Logger().Warn("formatter fell back to the original content")
			}
			if score {
				if err := printJSON(cmd.ErrOrStderr(), standardize.Score(res.HTML)); err != nil {
					return err
				}
			}

			text := res.HTML
			if markdown {
				if text, err = formatter.ToMarkdown(res.HTML); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "post title, used to drop a duplicated heading")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "print markdown instead of HTML")
	cmd.Flags().BoolVar(&score, "score", false, "write the quality score of the formatted HTML to stderr")
	return cmd
}
