package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func measureCmd() *cobra.Command {
	var scalePath, scalePoint, imagePath, point, overlayPath string

	cmd := &cobra.Command{
		Use:   "measure",
		Short: "Measure the object under one point",
		RunE: func(cmd *cobra.Command, args []string) error {
			click, err := parsePoint(point)
			if err != nil {
				return err
			}
			upload, err := readUpload(imagePath)
			if err != nil {
				return err
			}

			session, err := calibrate(cmd.Context(), scalePath, scalePoint)
			if err != nil {
				return err
			}

			out, err := appCtx.MeasurementService.Measure(cmd.Context(), session.ID, upload, click)
			if err != nil {
				return fmt.Errorf("measure %s: %w", imagePath, err)
			}

			if overlayPath != "" && len(out.Overlay) > 0 {
				if err := os.WriteFile(overlayPath, out.Overlay, 0o644); err != nil {
					return err
				}
			}

			m := out.Measurement
			fmt.Fprintf(cmd.OutOrStdout(), "Pixels per %s: %.4f\n", session.Unit, session.PixelsPerUnit)
			fmt.Fprintf(cmd.OutOrStdout(), "Area: %.6g %s^2 (%d px)\n", m.Area, m.Unit, m.PixelArea)
			return nil
		},
	}

	cmd.Flags().StringVar(&scalePath, "scale", "", "scale image")
	cmd.Flags().StringVar(&scalePoint, "scale-point", "", "point on the scale reference, x,y in image pixels")
	cmd.Flags().StringVar(&imagePath, "image", "", "particle image")
	cmd.Flags().StringVar(&point, "point", "", "point on the particle, x,y in image pixels")
	cmd.Flags().StringVar(&overlayPath, "overlay", "", "write the particle mask overlay to this JPEG file")
	for _, f := range []string{"scale", "scale-point", "image", "point"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
