package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

var generateReq hookgen.Request

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate hook scripts for one user and print them as JSON",
	Example: `  hookgen generate --user u123 --niche fitness --style talking-head \
    --topic "morning routine" --language en`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context(), cfg, appOptions{withModel: true})
		if err != nil {
			return err
		}
		defer a.Close()

		req := generateReq
		out, err := a.service.Generate(cmd.Context(), &req)
		if err != nil {
			return fmt.Errorf("generation failed (%s): %w", hookgen.Classify(err), err)
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&generateReq.UserID, "user", "", "user ID charged for the generation")
	f.StringVar(&generateReq.Niche, "niche", "", "content niche")
	f.StringVar(&generateReq.VideoStyle, "style", "", "video style")
	f.StringVar(&generateReq.Topic, "topic", "", "video topic")
	f.StringVar(&generateReq.Tone, "tone", "", "tone of voice")
	f.StringVar(&generateReq.Duration, "duration", "", "video length bucket in seconds (e.g. 30, 60)")
	f.StringVar(&generateReq.WordCount, "words", "", "explicit word range (e.g. 50-80)")
	f.StringVar(&generateReq.Language, "language", "", "output language code (default tr)")
	f.StringVar(&generateReq.TargetAudience, "audience", "", "target audience hint")
	f.StringVar(&generateReq.PainPoint, "pain-point", "", "pain point hint")
	f.StringVar(&generateReq.UniqueValue, "unique-value", "", "unique value hint")
	_ = generateCmd.MarkFlagRequired("user")
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
