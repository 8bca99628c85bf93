package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"storefront/cart"
	"storefront/catalog"
	"storefront/checkout"
	"storefront/models"
)

type appKey struct{}

func appFrom(cmd *cobra.Command) *app {
	return cmd.Context().Value(appKey{}).(*app)
}

// newRootCmd builds the command tree. The returned cleanup releases whatever
// the invocation opened and must be called after Execute, whether or not the
// command failed.
func newRootCmd(out, errOut io.Writer) (*cobra.Command, func()) {
	opts := options{}
	var opened *app
	root := &cobra.Command{
		Use:           "shopper",
		Short:         "Browse the storefront, fill a cart and place orders",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts, out, errOut)
			if err != nil {
				return err
			}
			opened = a
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
	}
	cleanup := func() {
		if opened != nil {
			opened.Close()
			opened = nil
		}
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.apiURL, "api", "http://localhost:3000/api", "storefront API base URL")
	flags.StringVar(&opts.stateDir, "state-dir", defaultStateDir(), "directory holding the saved cart")
	flags.StringVar(&opts.redis, "redis", "", "keep the cart in Redis at this address instead of state-dir")
	flags.StringVar(&opts.logLevel, "log-level", "error", "log level (debug, info, warn, error)")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "API request timeout")

	root.AddCommand(newProductsCmd(), newCategoriesCmd(), newCartCmd(), newCheckoutCmd())
	return root, cleanup
}

func newProductsCmd() *cobra.Command {
	var q catalog.Query
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !catalog.ValidSort(q.Sort) {
				return fmt.Errorf("unknown sort %q", q.Sort)
			}
			a := appFrom(cmd)
			if err := a.session.LoadCatalog(cmd.Context()); err != nil {
				return err
			}
			products, err := a.session.Browse(q)
			if err != nil {
				return err
			}
			if len(products) == 0 {
				fmt.Fprintln(a.out, "No products match.")
				return nil
			}
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE")
			for _, p := range products {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, cart.FormatPrice(p.Price))
			}
			return w.Flush()
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.Category, "category", "", "only this category")
	f.StringVar(&q.Search, "search", "", "match name or description")
	f.Int64Var(&q.MinPrice, "min-price", 0, "lowest price")
	f.Int64Var(&q.MaxPrice, "max-price", 0, "highest price, 0 for no limit")
	f.StringVar(&q.Sort, "sort", catalog.SortDefault, "default, price-asc, price-desc or name-asc")
	return cmd
}

func newCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List product categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			if err := a.session.LoadCatalog(cmd.Context()); err != nil {
				return err
			}
			for _, c := range a.session.Categories() {
				fmt.Fprintln(a.out, c)
			}
			return nil
		},
	}
}

func newCartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show or change the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printCart(appFrom(cmd))
			return nil
		},
	}

	add := &cobra.Command{
		Use:   "add PRODUCT_ID [QUANTITY]",
		Short: "Add a product to the cart",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			qty := 1
			if len(args) == 2 {
				if qty, err = strconv.Atoi(args[1]); err != nil {
					return fmt.Errorf("invalid quantity %q", args[1])
				}
			}
			a := appFrom(cmd)
			if err := a.session.LoadCatalog(cmd.Context()); err != nil {
				return err
			}
			p, err := a.session.Product(id)
			if err != nil {
				return err
			}
			a.session.Cart().AddItem(p, qty)
			printCart(a)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set PRODUCT_ID QUANTITY",
		Short: "Change the quantity of a cart line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}
			a := appFrom(cmd)
			if !a.session.Cart().SetQuantity(id, qty) {
				return fmt.Errorf("product %d is not in the cart", id)
			}
			printCart(a)
			return nil
		},
	}

	remove := &cobra.Command{
		Use:   "remove PRODUCT_ID",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a := appFrom(cmd)
			a.session.Cart().RemoveItem(id)
			printCart(a)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			a.session.Cart().Clear()
			printCart(a)
			return nil
		},
	}

	cmd.AddCommand(add, set, remove, clearCmd)
	return cmd
}

func newCheckoutCmd() *cobra.Command {
	var customer models.Customer
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			conf, err := a.session.Checkout(cmd.Context(), customer)
			if errors.Is(err, checkout.ErrEmptyCart) {
				return errors.New("your cart is empty")
			}
			var retryable interface{ Retryable() bool }
			if errors.As(err, &retryable) && retryable.Retryable() {
				return fmt.Errorf("order not placed, your cart was kept and you can retry: %w", err)
			}
			if err != nil {
				return err
			}
			name := conf.CustomerName
			if name == "" {
				name = "there"
			}
			fmt.Fprintf(a.out, "Thanks %s! Order #%d confirmed, total %s\n", name, conf.OrderID, cart.FormatPrice(conf.Total))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&customer.Name, "name", "", "customer name")
	f.StringVar(&customer.Email, "email", "", "customer email")
	f.StringVar(&customer.Address, "address", "", "delivery address")
	f.StringVar(&customer.City, "city", "", "city")
	f.StringVar(&customer.Phone, "phone", "", "phone")
	f.StringVar(&customer.Notes, "notes", "", "order notes")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid product id %q", s)
	}
	return id, nil
}

func printCart(a *app) {
	lines := a.session.Cart().Lines()
	if len(lines) == 0 {
		fmt.Fprintln(a.out, "Your cart is empty.")
		return
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tQTY\tPRICE\tSUBTOTAL")
	for _, l := range lines {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", l.ProductID, l.Name, l.Quantity, cart.FormatPrice(l.Price), cart.FormatPrice(l.Subtotal()))
	}
	w.Flush()
	fmt.Fprintf(a.out, "%d items, total %s\n", a.session.Cart().Count(), cart.FormatPrice(a.session.Cart().Total()))
}
