package main

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/markdave123-py/contexta-pipeline/internal/app"
	"github.com/markdave123-py/contexta-pipeline/internal/config"
)

func newETLCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "etl",
		Short: "Crawl a user's links into the raw document store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := config.LoadETLRun(path)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				summary, err := a.ETL.Run(ctx, uuid.NewString(), *params)
				if err != nil {
					return err
				}
				return printJSON(cmd, summary)
			})
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "configs/digital_data_etl_paul_iusztin.yaml", "run parameters file")
	return cmd
}

func newFeaturesCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Clean, chunk and embed stored documents into the vector store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := config.LoadFeatureRun(path)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				summary, err := a.Features.Run(ctx, uuid.NewString(), *params)
				if err != nil {
					return err
				}
				return printJSON(cmd, summary)
			})
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "configs/feature_engineering.yaml", "run parameters file")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
