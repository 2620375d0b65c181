package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/domain"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/wishlist"
)

type wishlistOptions struct {
	category    string
	search      string
	refresh     bool
	quantity    int
	addCategory string
}

func newWishlistCommand(root *rootOptions) *cobra.Command {
	opts := &wishlistOptions{}
	cmd := &cobra.Command{
		Use:   "wishlist",
		Short: "Show or change the active user's wishlist",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List wishlist items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.Wishlist.Load(cmd.Context(), opts.refresh); err != nil {
				return err
			}
			items := wishlist.Filter(s.Wishlist.Items(), opts.category, opts.search)
			if root.jsonOut {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"user":  s.Users.Current(),
					"items": items,
					"stats": s.Wishlist.Stats(),
				})
			}
			printWishlist(cmd.OutOrStdout(), s.Users.Current(), items, s.Wishlist.Stats())
			return nil
		},
	}
	list.Flags().StringVar(&opts.category, "category", domain.CategoryAll, "Only show this category")
	list.Flags().StringVar(&opts.search, "search", "", "Only show items matching this term")
	list.Flags().BoolVar(&opts.refresh, "refresh", false, "Skip the local cache")

	add := &cobra.Command{
		Use:   "add <product>",
		Short: "Add a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			ack, err := s.Wishlist.AddItem(cmd.Context(), args[0], opts.quantity, opts.addCategory)
			if err != nil {
				return err
			}
			return printAck(cmd.OutOrStdout(), root, ack.Message, ack.Data)
		},
	}
	add.Flags().IntVarP(&opts.quantity, "quantity", "q", 1, "Quantity to add")
	add.Flags().StringVar(&opts.addCategory, "category", "", "Product category (default unknown)")

	remove := &cobra.Command{
		Use:   "remove <product>",
		Short: "Remove a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			ack, err := s.Wishlist.RemoveItem(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printAck(cmd.OutOrStdout(), root, ack.Message, ack.Data)
		},
	}

	clearAll := &cobra.Command{
		Use:   "clear",
		Short: "Delete every item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			// Clear works from the loaded list, so fetch it first.
			if err := s.Wishlist.Load(cmd.Context(), true); err != nil {
				return err
			}
			if err := s.Wishlist.ClearAll(cmd.Context()); err != nil {
				return err
			}
			return printAck(cmd.OutOrStdout(), root, "Wishlist cleared", nil)
		},
	}

	cmd.AddCommand(list, add, remove, clearAll)
	return cmd
}

func printWishlist(w io.Writer, user string, items []domain.WishlistItem, stats wishlist.Stats) {
	fmt.Fprintf(w, "Wishlist for %s: %d items, %d units, %d categories\n", user, stats.Total, stats.TotalQuantity, stats.CategoryCount)
	if len(items) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tQTY\tCATEGORY\tSOURCE\tADDED")
	for _, it := range items {
		added := ""
		if !it.Timestamp.IsZero() {
			added = it.Timestamp.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", it.Product, it.Quantity, it.Category, it.Status, added)
	}
	_ = tw.Flush()
}

func printAck(w io.Writer, root *rootOptions, message string, data *domain.Intent) error {
	if root.jsonOut {
		return printJSON(w, map[string]any{"message": message, "data": data})
	}
	fmt.Fprintln(w, message)
	return nil
}
