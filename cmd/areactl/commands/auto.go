package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func autoCmd() *cobra.Command {
	var scalePath, scalePoint, imagePath string
	var minPixels int

	cmd := &cobra.Command{
		Use:   "auto",
		Short: "Measure every object the segmenter finds in an image",
		RunE: func(cmd *cobra.Command, args []string) error {
			if minPixels < 0 {
				return fmt.Errorf("--min-pixels must be non-negative")
			}
			upload, err := readUpload(imagePath)
			if err != nil {
				return err
			}

			session, err := calibrate(cmd.Context(), scalePath, scalePoint)
			if err != nil {
				return err
			}

			results, _, err := appCtx.MeasurementService.MeasureAll(cmd.Context(), session.ID, upload, minPixels)
			if err != nil {
				return fmt.Errorf("measure %s: %w", imagePath, err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Pixels per %s: %.4f\n", session.Unit, session.PixelsPerUnit)
			fmt.Fprintf(w, "Objects: %d\n", len(results))
			for i, m := range results {
				fmt.Fprintf(w, "%d\t%.6g %s^2\t%d px\tscore %.3f\n", i+1, m.Area, m.Unit, m.PixelArea, m.Score)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scalePath, "scale", "", "scale image")
	cmd.Flags().StringVar(&scalePoint, "scale-point", "", "point on the scale reference, x,y in image pixels")
	cmd.Flags().StringVar(&imagePath, "image", "", "image to measure")
	cmd.Flags().IntVar(&minPixels, "min-pixels", 0, "drop masks smaller than this many pixels")
	for _, f := range []string{"scale", "scale-point", "image"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
