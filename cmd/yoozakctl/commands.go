package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yoozak/yoozak-backend/internal/auth/jwt"
	catalogevents "github.com/yoozak/yoozak-backend/internal/catalog/events"
	catalogrepo "github.com/yoozak/yoozak-backend/internal/catalog/repository"
	catalogservice "github.com/yoozak/yoozak-backend/internal/catalog/service"
	operatorrepo "github.com/yoozak/yoozak-backend/internal/operator/repository"
	operatorservice "github.com/yoozak/yoozak-backend/internal/operator/service"
	orderevents "github.com/yoozak/yoozak-backend/internal/orders/events"
	orderrepo "github.com/yoozak/yoozak-backend/internal/orders/repository"
	orderservice "github.com/yoozak/yoozak-backend/internal/orders/service"
	stockdomain "github.com/yoozak/yoozak-backend/internal/stock/domain"
	stockevents "github.com/yoozak/yoozak-backend/internal/stock/events"
	stockrepo "github.com/yoozak/yoozak-backend/internal/stock/repository"
	stockservice "github.com/yoozak/yoozak-backend/internal/stock/service"
	"github.com/yoozak/yoozak-backend/pkg/permissions"
	"github.com/yoozak/yoozak-backend/pkg/tabular"
	"golang.org/x/crypto/bcrypt"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.db.Migrate(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var adminFlags struct {
	email     string
	firstName string
	lastName  string
	password  string
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Long: `Create an administrator account. Use this once to bootstrap a fresh
database; further operators are managed through the API.

The password is read from stdin when --password is omitted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := adminFlags.password
		if password == "" {
			var err error
			if password, err = readLine(cmd.InOrStdin()); err != nil {
				return err
			}
		}

		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		svc := operatorservice.NewOperatorService(operatorrepo.NewOperatorRepository(e.db), jwt.NewManager(&e.cfg.JWT), e.log)
		op, err := svc.Create(cmd.Context(), &operatorservice.CreateRequest{
			Email:     adminFlags.email,
			FirstName: adminFlags.firstName,
			LastName:  adminFlags.lastName,
			Role:      permissions.RoleAdmin,
			Password:  password,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", op.Email, op.ID)
		return nil
	},
}

var hashCost int

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print the bcrypt hash of a password",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var password string
		if len(args) == 1 {
			password = args[0]
		} else {
			var err error
			if password, err = readLine(cmd.InOrStdin()); err != nil {
				return err
			}
		}

		hash, err := operatorservice.HashPassword(password, hashCost)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var importFormat string

var importOrdersCmd = &cobra.Command{
	Use:   "import-orders <file>",
	Short: "Import orders from a CSV or XLSX file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := importFormat
		if format == "" {
			format = tabular.FormatFromFilename(args[0])
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		svc, err := newOrderService(e)
		if err != nil {
			return err
		}
		report, err := svc.ImportOrders(cmd.Context(), f, format)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "created %d, skipped %d, rejected rows %d\n", report.Created, report.Skipped, len(report.Errors))
		for _, ie := range report.Errors {
			fmt.Fprintf(out, "  row %d %s: %s\n", ie.Row, ie.ExternalRef, ie.Message)
		}
		if len(report.Errors) > 0 {
			return fmt.Errorf("%d rows were rejected", len(report.Errors))
		}
		return nil
	},
}

var exportFlags struct {
	format   string
	out      string
	lowStock bool
	category string
}

var exportStockCmd = &cobra.Command{
	Use:   "export-stock",
	Short: "Write the stock level report to a file or stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := exportFlags.format
		if format == "" && exportFlags.out != "" {
			format = tabular.FormatFromFilename(exportFlags.out)
		}
		format, err := tabular.ParseFormat(format)
		if err != nil {
			return err
		}

		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		table, err := newStockService(e).LevelsTable(cmd.Context(), stockdomain.LevelFilter{
			Category:     exportFlags.category,
			LowStockOnly: exportFlags.lowStock,
		})
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if exportFlags.out != "" {
			f, err := os.Create(filepath.Clean(exportFlags.out))
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return tabular.Write(w, format, table)
	},
}

var recomputePricesCmd = &cobra.Command{
	Use:   "recompute-prices",
	Short: "Recompute the current price of every article",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		svc, err := newCatalogService(e)
		if err != nil {
			return err
		}
		changes, err := svc.RecomputeAll(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, c := range changes {
			fmt.Fprintf(out, "%s %s -> %s\n", c.Reference, c.OldPrice, c.NewPrice)
		}
		fmt.Fprintf(out, "%d prices changed\n", len(changes))
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminFlags.email, "email", "", "Login email")
	createAdminCmd.Flags().StringVar(&adminFlags.firstName, "first-name", "", "First name")
	createAdminCmd.Flags().StringVar(&adminFlags.lastName, "last-name", "", "Last name")
	createAdminCmd.Flags().StringVar(&adminFlags.password, "password", "", "Password (read from stdin when empty)")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("first-name")

	hashPasswordCmd.Flags().IntVar(&hashCost, "cost", bcrypt.DefaultCost, "bcrypt cost")

	importOrdersCmd.Flags().StringVar(&importFormat, "format", "", "csv or xlsx (default: from the file extension)")

	exportStockCmd.Flags().StringVar(&exportFlags.format, "format", "", "csv or xlsx (default: from --out, else csv)")
	exportStockCmd.Flags().StringVarP(&exportFlags.out, "out", "o", "", "Output file (default: stdout)")
	exportStockCmd.Flags().BoolVar(&exportFlags.lowStock, "low-stock", false, "Only variants at or below their threshold")
	exportStockCmd.Flags().StringVar(&exportFlags.category, "category", "", "Restrict to one category")
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("empty password")
	}
	return line, nil
}

func newCatalogService(e *env) (*catalogservice.CatalogService, error) {
	var pub *catalogevents.CatalogEventPublisher
	if e.rmq != nil {
		var err error
		if pub, err = catalogevents.NewCatalogEventPublisher(e.rmq, e.log); err != nil {
			return nil, err
		}
	}
	return catalogservice.NewCatalogService(e.db,
		catalogrepo.NewArticleRepository(e.db),
		catalogrepo.NewVariantRepository(e.db),
		catalogrepo.NewPromotionRepository(e.db),
		pub, e.cfg.Stock.DefaultLowStockThreshold, e.log), nil
}

func newStockService(e *env) *stockservice.StockService {
	var pub *stockevents.StockEventPublisher
	if e.rmq != nil {
		// A failed declare only drops events
		p, err := stockevents.NewStockEventPublisher(e.rmq, e.log)
		if err != nil {
			e.log.Warn().Err(err).Msg("stock events disabled")
		}
		pub = p
	}
	return stockservice.NewStockService(e.db,
		stockrepo.NewMovementRepository(e.db),
		stockrepo.NewAlertRepository(e.db),
		stockrepo.NewLevelRepository(e.db),
		pub, e.log)
}

func newOrderService(e *env) (*orderservice.OrderService, error) {
	var pub *orderevents.OrderEventPublisher
	if e.rmq != nil {
		var err error
		if pub, err = orderevents.NewOrderEventPublisher(e.rmq, e.log); err != nil {
			return nil, err
		}
	}
	return orderservice.NewOrderService(e.db,
		orderrepo.NewOrderRepository(e.db),
		catalogrepo.NewArticleRepository(e.db),
		catalogrepo.NewVariantRepository(e.db),
		newStockService(e),
		pub, e.cfg.Import.MaxRows, e.log), nil
}
