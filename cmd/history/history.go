package history

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/nutrisnap/nutrisnap/internal/api"
	"github.com/nutrisnap/nutrisnap/internal/app"
	"github.com/nutrisnap/nutrisnap/internal/buildinfo"
	"github.com/nutrisnap/nutrisnap/internal/conf"
	"github.com/nutrisnap/nutrisnap/internal/pipeline"
)

// Command creates the command that prints recent analyses.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var q pipeline.HistoryQuery

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print recent analyses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings, build, q, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVarP(&q.Limit, "limit", "n", 0, "Number of entries, newest first (0 uses the configured default)")
	cmd.Flags().StringVar(&q.UserID, "user", "", "Only show analyses of this user")

	return cmd
}

// Run writes the history page selected by q to w as JSON
func Run(ctx context.Context, settings *conf.Settings, build *buildinfo.Context, q pipeline.HistoryQuery, w io.Writer) error {
	a, err := app.New(ctx, settings, build)
	if err != nil {
		return err
	}
	defer a.Close()

	items, err := a.Pipeline.History(ctx, q)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(api.NewHistoryItems(items))
}
