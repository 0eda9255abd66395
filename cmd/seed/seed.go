package seed

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nutrisnap/nutrisnap/internal/buildinfo"
	"github.com/nutrisnap/nutrisnap/internal/conf"
	"github.com/nutrisnap/nutrisnap/internal/datastore"
	"github.com/nutrisnap/nutrisnap/internal/logger"
)

// Command creates the command that loads nutrition profiles and label mappings.
func Command(settings *conf.Settings, _ *buildinfo.Context) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load nutrition profiles and label mappings",
		Long: "Upsert nutrition profiles and label mappings into the database. " +
			"Without --file the data bundled with the binary is used.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings, file, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML seed file")

	return cmd
}

// Run seeds the configured database from file, or from the bundled data when
// file is empty, and reports the row counts to w.
func Run(ctx context.Context, settings *conf.Settings, file string, w io.Writer) error {
	var (
		data *datastore.SeedData
		err  error
	)
	if file != "" {
		data, err = datastore.LoadSeedFile(file)
	} else {
		data, err = datastore.DefaultSeedData()
	}
	if err != nil {
		return err
	}

	store, err := datastore.New(settings)
	if err != nil {
		return err
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Global().Module("seed").Warn("failed to close database", logger.Error(err))
		}
	}()

	stats, err := store.Seed(ctx, data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "seeded %d nutrition profiles and %d label mappings\n", stats.Profiles, stats.Labels)
	return err
}
