package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"ageme/internal/agecli"
	"ageme/internal/ageparams"
	"ageme/internal/imageprep"
)

var (
	prepareImage string
	prepareOut   string
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Run the local pipeline and write the upload file and mask without calling the API",
	Long: `Prepare runs the active normalization and mask policies against a source
image and writes what generate would upload, so the request can be inspected.

Examples:
  agectl prepare --image portrait.jpg --out ./out
  agectl prepare --image portrait.png --config profile.yaml --out ./out`,
	RunE: runPrepare,
}

func init() {
	rootCmd.AddCommand(prepareCmd)
	prepareCmd.Flags().StringVar(&prepareImage, "image", "", "Source image file (required)")
	prepareCmd.Flags().StringVar(&prepareOut, "out", ".", "Output directory")
	_ = prepareCmd.MarkFlagRequired("image")
}

func runPrepare(cmd *cobra.Command, args []string) error {
	profile, err := loadProfile()
	if err != nil {
		return err
	}
	params := baseParams()
	profile.ApplyDefaults(&params, nil)
	prep, srcLen, srcMIME, err := prepareFromFile(profile, prepareImage, params)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(prepareOut, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	uploadPath := filepath.Join(prepareOut, prep.Image.Filename)
	if err := os.WriteFile(uploadPath, prep.Image.Data, 0o644); err != nil {
		return fmt.Errorf("write upload file: %w", err)
	}
	fmt.Printf("Upload written to %s\n", uploadPath)
	if prep.MaskPNG != nil {
		maskPath := filepath.Join(prepareOut, "mask.png")
		if err := os.WriteFile(maskPath, prep.MaskPNG, 0o644); err != nil {
			return fmt.Errorf("write mask file: %w", err)
		}
		fmt.Printf("Mask written to %s\n", maskPath)
	}

	summary, err := json.MarshalIndent(prep.DebugSummary(srcLen, srcMIME), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(summary))
	return nil
}

// prepareFromFile reads the source and runs the profile's pipeline. The
// declared type comes from content sniffing, not the file extension.
func prepareFromFile(profile *agecli.Profile, path string, params ageparams.AgeParams) (*agecli.Prepared, int, string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, "", fmt.Errorf("read source image: %w", err)
	}
	srcMIME := mimetype.Detect(src).String()

	norm, err := imageprep.ParseNormalizationPolicy(profile.NormalizationPolicy)
	if err != nil {
		return nil, 0, "", err
	}
	maskPolicy, err := imageprep.ParseMaskPolicy(profile.MaskPolicy)
	if err != nil {
		return nil, 0, "", err
	}

	prep, err := agecli.Prepare(src, srcMIME, filepath.Base(path), params, agecli.PrepareOptions{
		Normalization: norm,
		Mask:          maskPolicy,
		OnError:       profile.OnError(),
	})
	if err != nil {
		return nil, 0, "", err
	}
	return prep, len(src), srcMIME, nil
}
