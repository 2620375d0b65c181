package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
)

func newRecommendationsCommand(root *rootOptions) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:     "recommendations",
		Aliases: []string{"recs"},
		Short:   "Show suggestions based on the wishlist",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Recommend.Refresh(cmd.Context()); err != nil {
				return err
			}
			items := s.Recommend.ByCategory(category)
			st := s.Recommend.State()
			out := cmd.OutOrStdout()
			if root.jsonOut {
				return printJSON(out, map[string]any{"items": items, "stats": st.Stats, "note": st.Note})
			}
			if st.Note != "" {
				fmt.Fprintln(out, st.Note)
			}
			fmt.Fprintf(out, "%d suggestions, average price %.2f\n", st.Stats.Total, st.Stats.AveragePrice)
			if len(items) == 0 {
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PRODUCT\tCATEGORY\tPRICE")
			for _, p := range items {
				fmt.Fprintf(tw, "%s\t%s\t%.2f\n", p.Product, p.Category, p.Price)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&category, "category", domain.CategoryAll, "Only show this category")
	return cmd
}

func newStoreCommand(root *rootOptions) *cobra.Command {
	var category, search string
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Show the store catalog with current stock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Catalog.Load(cmd.Context()); err != nil {
				return err
			}
			items := s.Catalog.View(category, search)
			out := cmd.OutOrStdout()
			if root.jsonOut {
				return printJSON(out, map[string]any{"items": items, "categories": s.Catalog.State().Categories})
			}
			sort.SliceStable(items, func(i, j int) bool { return items[i].Category < items[j].Category })
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PRODUCT\tCATEGORY\tPRICE\tSTOCK")
			for _, p := range items {
				fmt.Fprintf(tw, "%s\t%s\t%.2f\t%d\n", p.Product, p.Category, p.Price, p.Stock)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&category, "category", domain.CategoryAll, "Only show this category")
	cmd.Flags().StringVar(&search, "search", "", "Only show products matching this term")
	return cmd
}
