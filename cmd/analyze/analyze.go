package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nutrisnap/nutrisnap/internal/api"
	"github.com/nutrisnap/nutrisnap/internal/app"
	"github.com/nutrisnap/nutrisnap/internal/buildinfo"
	"github.com/nutrisnap/nutrisnap/internal/conf"
	"github.com/nutrisnap/nutrisnap/internal/pipeline"
)

// Command creates the command that analyzes a single image file.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "analyze [image]",
		Short: "Analyze a food photo",
		Long:  "Run one image through the recognition pipeline, record the result and print it as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings, build, args[0], userID, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Optional user id stored with the upload")

	return cmd
}

// Run analyzes the image at path and writes the response JSON to w
func Run(ctx context.Context, settings *conf.Settings, build *buildinfo.Context, path, userID string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	contentType, err := detectContentType(f, path)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, settings, build)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.Pipeline.Analyze(ctx, pipeline.Request{
		Body:        f,
		ContentType: contentType,
		FileName:    filepath.Base(path),
		UserID:      userID,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(api.NewAnalyzeResponse(result))
}

// detectContentType prefers the file extension and falls back to sniffing.
// The reader is rewound afterwards.
func detectContentType(f *os.File, path string) (string, error) {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err == nil {
			return mediaType, nil
		}
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("reading image: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewinding image: %w", err)
	}
	return http.DetectContentType(head[:n]), nil
}
