package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ageme/internal/agecli"
	"ageme/internal/ageparams"
)

var (
	generateImage string
	generateOut   string

	genAgeDelta    int
	genIntensity   float64
	genHairColor   string
	genGlasses     string
	genBaldness    float64
	genBlemishFix  float64
	genSkinTexture float64
	genQuality     string
	genIdentity    bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Prepare an image, post it with the aging parameters, and save the result",
	Long: `Generate runs the full client flow: source checks, normalization, mask
generation, one multipart POST, and saving the returned image.

Examples:
  agectl generate --image portrait.jpg --age-delta 20 --out older.png
  agectl generate --image portrait.png --age-delta -15 --glasses remove --out younger.png`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVar(&generateImage, "image", "", "Source image file (required)")
	generateCmd.Flags().StringVar(&generateOut, "out", "result.png", "Output file for the edited image")
	generateCmd.Flags().IntVar(&genAgeDelta, "age-delta", 10, "Years to age (-40..40, negative rejuvenates)")
	generateCmd.Flags().Float64Var(&genIntensity, "intensity", 0.5, "Effect strength (0..1)")
	generateCmd.Flags().StringVar(&genHairColor, "hair-color", "preserve", "preserve, black, brown, blonde, red, gray, white")
	generateCmd.Flags().StringVar(&genGlasses, "glasses", "preserve", "preserve, add, remove")
	generateCmd.Flags().Float64Var(&genBaldness, "baldness", 0, "Baldness level (0..100)")
	generateCmd.Flags().Float64Var(&genBlemishFix, "blemish-fix", 0, "Blemish correction level (0..100)")
	generateCmd.Flags().Float64Var(&genSkinTexture, "skin-texture", 0, "Skin texture shift (-100..100)")
	generateCmd.Flags().StringVar(&genQuality, "quality", "medium", "low, medium, high")
	generateCmd.Flags().BoolVar(&genIdentity, "preserve-identity", true, "Keep the person recognizable")
	_ = generateCmd.MarkFlagRequired("image")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	profile, err := loadProfile()
	if err != nil {
		return err
	}

	params := collectParams(cmd, profile)
	prep, srcLen, srcMIME, err := prepareFromFile(profile, generateImage, params)
	if err != nil {
		return err
	}
	if flagDebug {
		report, _ := json.MarshalIndent(prep.DebugSummary(srcLen, srcMIME), "", "  ")
		fmt.Fprintln(os.Stderr, string(report))
	}

	client := agecli.NewClient(profile.ResolveEndpoint(flagEndpoint), flagDebug)
	resp, err := client.AgeFace(cmd.Context(), prep, params)
	if err != nil {
		return err
	}

	data, err := resp.ImageBytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(generateOut, data, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	fmt.Printf("Saved %s (%s, %d bytes, model %s, %d ms)\n",
		generateOut, resp.MIMEType, len(data), resp.Meta.Model, resp.Meta.ElapsedMS)

	if flagDebug && resp.Debug != nil {
		var pretty json.RawMessage = resp.Debug
		report, err := json.MarshalIndent(pretty, "", "  ")
		if err == nil {
			fmt.Fprintln(os.Stderr, string(report))
		}
	}
	return nil
}

// collectParams layers built-in defaults, profile defaults, and explicit
// flags, in that order of increasing precedence.
func collectParams(cmd *cobra.Command, profile *agecli.Profile) ageparams.AgeParams {
	flagJSON := map[string]string{
		"age-delta":         "age_delta",
		"intensity":         "intensity",
		"hair-color":        "hair_color",
		"glasses":           "glasses",
		"baldness":          "baldness",
		"blemish-fix":       "blemish_fix",
		"skin-texture":      "skin_texture",
		"quality":           "quality",
		"preserve-identity": "preserve_identity",
	}
	explicit := map[string]bool{}
	for flag, member := range flagJSON {
		if cmd.Flags().Changed(flag) {
			explicit[member] = true
		}
	}

	params := ageparams.AgeParams{
		AgeDelta:         genAgeDelta,
		Intensity:        genIntensity,
		HairColor:        genHairColor,
		Glasses:          genGlasses,
		Baldness:         genBaldness,
		BlemishFix:       genBlemishFix,
		SkinTexture:      genSkinTexture,
		Quality:          genQuality,
		PreserveIdentity: genIdentity,
	}
	profile.ApplyDefaults(&params, explicit)
	return params
}
