package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markdave123-py/contexta-pipeline/internal/app"
	"github.com/markdave123-py/contexta-pipeline/internal/models"
	"github.com/markdave123-py/contexta-pipeline/internal/services"
)

func newSearchCmd() *cobra.Command {
	var (
		limit      int
		answer     bool
		categories []string
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the vector store, optionally answering with the language model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			parsed := make([]models.Category, 0, len(categories))
			for _, c := range categories {
				category, err := models.ParseCategory(c)
				if err != nil {
					return err
				}
				parsed = append(parsed, category)
			}

			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if answer {
					res, err := a.Retriever.Answer(ctx, query)
					if err != nil {
						return fmt.Errorf("answer failed: %w", err)
					}
					return printJSON(cmd, res)
				}

				hits, err := a.Retriever.Search(ctx, query, limit, parsed)
				if err != nil {
					return fmt.Errorf("search failed: %w", err)
				}
				if len(hits) == 0 {
					cmd.Println("No results found.")
					return nil
				}
				for i, h := range hits {
					cmd.Printf("  [%d] %s (%.2f)\n", i+1, hitTitle(h), h.Score)
					cmd.Printf("      %s | %s\n", h.Category, h.AuthorFullName)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum number of results")
	cmd.Flags().BoolVar(&answer, "answer", false, "generate an answer from the retrieved context")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "restrict to categories (posts, articles, repositories)")
	return cmd
}

const snippetRunes = 80

// hitTitle names a hit by its link, falling back to the collection and a
// content snippet for hits without one (posts).
func hitTitle(h services.SearchHit) string {
	if h.Link != "" {
		return h.Link
	}
	snippet := []rune(strings.Join(strings.Fields(h.Content), " "))
	if len(snippet) > snippetRunes {
		snippet = append(snippet[:snippetRunes], []rune("...")...)
	}
	return fmt.Sprintf("%s: %s", h.Collection, string(snippet))
}
