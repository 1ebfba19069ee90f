package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/diewo77/go-billing/auth"
	"github.com/diewo77/go-billing/internal/config"
	"github.com/diewo77/go-billing/internal/db"
	"github.com/diewo77/go-billing/internal/logger"
	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/paginate"
	"github.com/diewo77/go-billing/internal/render"
	"github.com/diewo77/go-billing/internal/services"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var version = "0.1.0"

// cli holds what the subcommands share once the root pre-run has loaded it.
type cli struct {
	cfg  *config.Config
	conn *gorm.DB
}

func (c *cli) db(cmd *cobra.Command) (*gorm.DB, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := db.Open(cmd.Context(), c.cfg.Database)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return conn, nil
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "billingctl",
		Short:         "Admin CLI for the billing engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.cfg = config.Load()
			// Command output goes to stdout; keep logs out of it.
			if os.Getenv("LOG_OUTPUT") == "" {
				c.cfg.Log.Output = "stderr"
			}
			if err := logger.Setup(c.cfg.Log); err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			return c.cfg.Validate()
		},
	}
	root.AddCommand(
		newMigrateCmd(c),
		newSeedCmd(c),
		newAPIKeyCmd(c),
		newRenderCmd(c),
		newPaginateCmd(),
	)
	return root
}

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply the schema. With MIGRATIONS=1 on postgres the versioned SQL files in
./migrations are applied through golang-migrate; otherwise gorm AutoMigrate runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := c.db(cmd)
			if err != nil {
				return err
			}
			if err := db.MigrateFor(c.cfg, conn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newSeedCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo organization if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := c.db(cmd)
			if err != nil {
				return err
			}
			org, err := db.Seed(conn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "organization %d: %s\n", org.ID, org.Name)
			return nil
		},
	}
}

func newAPIKeyCmd(c *cli) *cobra.Command {
	var tenantID uint
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Issue a new API key for an organization",
		Long: `Generate a new API key for an organization and print it once. Only its
bcrypt hash is stored; issuing a key revokes the previous one.`,
		Example: "  billingctl apikey --tenant 1",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := c.db(cmd)
			if err != nil {
				return err
			}
			key, hash, err := auth.NewAPIKey()
			if err != nil {
				return err
			}
			res := conn.WithContext(cmd.Context()).Model(&models.Organization{}).
				Where("id = ?", tenantID).
				Update("api_key_hash", hash)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("organization %d not found", tenantID)
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().UintVar(&tenantID, "tenant", 0, "organization id")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func newRenderCmd(c *cli) *cobra.Command {
	var (
		tenantID, id uint
		out          string
	)
	cmd := &cobra.Command{
		Use:       "render {invoice|quotation|delivery-note}",
		Short:     "Render a stored document to PDF",
		Example:   "  billingctl render invoice --tenant 1 --id 42 --out invoice.pdf",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"invoice", "quotation", "delivery-note"},
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := c.db(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var org models.Organization
			if err := conn.WithContext(ctx).First(&org, tenantID).Error; err != nil {
				return fmt.Errorf("organization %d: %w", tenantID, err)
			}

			svc := services.New(conn, services.OptionsFrom(c.cfg.Billing))
			renderer := render.New(c.cfg.Billing.Pages)
			var doc *render.Document
			switch args[0] {
			case "invoice":
				inv, err := svc.Invoices.Get(ctx, tenantID, id)
				if err != nil {
					return err
				}
				doc, err = renderer.Invoice(&org, &inv.Invoice)
				if err != nil {
					return err
				}
			case "quotation":
				q, err := svc.Quotations.Get(ctx, tenantID, id)
				if err != nil {
					return err
				}
				doc, err = renderer.Quotation(&org, q)
				if err != nil {
					return err
				}
			case "delivery-note":
				n, err := svc.DeliveryNotes.Get(ctx, tenantID, id)
				if err != nil {
					return err
				}
				doc, err = renderer.DeliveryNote(&org, n)
				if err != nil {
					return err
				}
			}

			if out == "" {
				out = doc.Filename
			}
			if err := os.WriteFile(out, doc.Data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d pages)\n", out, doc.Pages)
			return nil
		},
	}
	cmd.Flags().UintVar(&tenantID, "tenant", 0, "organization id")
	cmd.Flags().UintVar(&id, "id", 0, "document id")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: <number>.pdf)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

type pageLayout struct {
	Number int  `json:"number"`
	First  bool `json:"first"`
	Last   bool `json:"last"`
	Items  int  `json:"items"`
	From   int  `json:"from,omitempty"`
	To     int  `json:"to,omitempty"`
}

func newPaginateCmd() *cobra.Command {
	var (
		count int
		caps  = paginate.DefaultCapacities
	)
	cmd := &cobra.Command{
		Use:   "paginate",
		Short: "Preview how many items each page of a document would hold",
		Example: `  billingctl paginate --count 41
  billingctl paginate --count 41 --first 8 --middle 20 --last 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 0 {
				return fmt.Errorf("--count must be >= 0")
			}
			positions := make([]int, count)
			for i := range positions {
				positions[i] = i + 1
			}
			pages, err := paginate.Split(positions, caps)
			if err != nil {
				return err
			}
			layout := make([]pageLayout, len(pages))
			for i, p := range pages {
				layout[i] = pageLayout{Number: p.Number, First: p.First, Last: p.Last, Items: len(p.Items)}
				if len(p.Items) > 0 {
					layout[i].From, layout[i].To = p.Items[0], p.Items[len(p.Items)-1]
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(layout)
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "number of line items")
	cmd.Flags().IntVar(&caps.First, "first", caps.First, "items on the first page")
	cmd.Flags().IntVar(&caps.Middle, "middle", caps.Middle, "items on each middle page")
	cmd.Flags().IntVar(&caps.Last, "last", caps.Last, "items on the last page")
	return cmd
}
