package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dogfriendly/venue-cli/internal/model"
)

var (
	resumeFrom string
	resumeJSON bool
)

var resumeCmd = &cobra.Command{
	Use:   "resume <venue-id>",
	Short: "Re-run the pipeline for a venue from a given stage",
	Long:  "Re-runs the pipeline suffix starting at --from, reusing the stored payloads of earlier stages. The stages that can be resumed from are business_fetch, web_fetch, harvest_images, finalize_images, generate_content, map_fields and publish.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		from := model.Stage(resumeFrom)
		if !model.ValidStage(from) {
			return eris.Errorf("unknown stage %q", resumeFrom)
		}

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		job, err := env.Pipeline.ResumeFrom(ctx, args[0], from)
		if err != nil {
			zap.L().Error("resume failed", zap.String("venue_id", args[0]), zap.Error(err))
		}
		if job != nil {
			printJob(job, resumeJSON)
		}
		return err
	},
}

func init() {
	resumeCmd.Flags().StringVar(&resumeFrom, "from", string(model.StageGenerateContent), "stage to resume from")
	resumeCmd.Flags().BoolVar(&resumeJSON, "json", false, "print the job as JSON")
	rootCmd.AddCommand(resumeCmd)
}
