package serve

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nutrisnap/nutrisnap/internal/api"
	"github.com/nutrisnap/nutrisnap/internal/app"
	"github.com/nutrisnap/nutrisnap/internal/buildinfo"
	"github.com/nutrisnap/nutrisnap/internal/conf"
	"github.com/nutrisnap/nutrisnap/internal/errors"
	"github.com/nutrisnap/nutrisnap/internal/logger"
)

// ErrServerDisabled is returned when the web server is switched off in settings
var ErrServerDisabled = errors.NewStd("web server is disabled in settings")

// Command creates the command that runs the HTTP service.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Start the analyze, history and nutrition HTTP API and serve until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return Run(ctx, settings, build)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		panic(err)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Host, "host", viper.GetString("webserver.host"), "Interface to listen on")
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port to listen on")
	cmd.Flags().BoolVar(&settings.MQTT.Enabled, "mqtt", viper.GetBool("mqtt.enabled"), "Publish analysis events to the MQTT broker")
	cmd.Flags().StringVar(&settings.MQTT.Broker, "broker", viper.GetString("mqtt.broker"), "MQTT broker url")
	cmd.Flags().StringVar(&settings.Storage.Type, "storage", viper.GetString("storage.type"), "Where uploaded images are kept (none, local or s3)")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, settings *conf.Settings, build *buildinfo.Context) error {
	if !settings.WebServer.Enabled {
		return ErrServerDisabled
	}
	log := logger.Global().Module("serve")

	a, err := app.New(ctx, settings, build)
	if err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("error while closing service components", logger.Error(err))
		}
	}()

	// Warm the model so the first request does not pay for loading it.
	if settings.Model.Path != "" {
		if state, err := a.Classifier.Load(ctx); err != nil {
			log.Warn("model not available at startup, using fallbacks",
				logger.String("state", state.String()),
				logger.Error(err))
		}
	}

	server, err := api.New(settings, a.Pipeline,
		api.WithModelStatus(a.Classifier),
		api.WithMetrics(a.Metrics),
		api.WithLogger(logger.Global().Module("api")))
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	if err := server.Shutdown(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	return <-errCh
}
