package commands

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"area-bot/internal/container"
	"area-bot/internal/domain/port"
	"area-bot/internal/infrastructure/segmenter"
	"area-bot/internal/infrastructure/staging"
	"area-bot/internal/infrastructure/storage"
	"area-bot/internal/infrastructure/vision"
	"area-bot/internal/logger"
)

var (
	segmenterURL string
	timeout      time.Duration
	unit         string
	verbose      bool

	appCtx     *container.Container
	scratchDir string

	// newSegmenter подменяется в тестах
	newSegmenter = func(url string, timeout time.Duration) port.Segmenter {
		return segmenter.NewClient(url, timeout)
	}
)

func Execute() error {
	return run(newRoot())
}

// run выполняет команду и убирает временный каталог даже при ошибке:
// cobra не вызывает PersistentPostRunE, если RunE вернул ошибку.
func run(root *cobra.Command) error {
	scratchDir = ""
	defer func() {
		logger.Sync()
		if scratchDir != "" {
			_ = os.RemoveAll(scratchDir)
		}
	}()
	return root.Execute()
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "areactl",
		Short:        "Measure particle areas against a scale image",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			mode := "release"
			if verbose {
				mode = "debug"
			}
			if err := logger.Init(mode); err != nil {
				return err
			}

			dir, err := os.MkdirTemp("", "areactl-*")
			if err != nil {
				return err
			}
			scratchDir = dir
			stager, err := staging.New(dir)
			if err != nil {
				return err
			}

			appCtx = container.New(container.Deps{
				Sessions:    storage.NewMemorySessionRepository(),
				Segmenter:   newSegmenter(segmenterURL, timeout),
				Renderer:    vision.NewRenderer(),
				Stager:      stager,
				DefaultUnit: "unit",
			})
			return nil
		},
	}

	root.PersistentFlags().StringVar(&segmenterURL, "segmenter", "http://localhost:8000", "segmentation service base URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "timeout for each segmentation call")
	root.PersistentFlags().StringVar(&unit, "unit", "unit", "length unit represented by the scale reference")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(measureCmd(), autoCmd())
	return root
}
