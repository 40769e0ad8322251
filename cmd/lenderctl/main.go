package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dafibh/lendora/lendora-backend/internal/config"
	"github.com/dafibh/lendora/lendora-backend/internal/database"
	"github.com/dafibh/lendora/lendora-backend/internal/domain"
	"github.com/dafibh/lendora/lendora-backend/internal/repository/postgres"
	"github.com/dafibh/lendora/lendora-backend/internal/service"
	"github.com/dafibh/lendora/lendora-backend/internal/util"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	app := &cli.App{
		Name:  "lenderctl",
		Usage: "operations tool for the lendora back office",
		Commands: []*cli.Command{
			migrateCommand(),
			invoicesCommand(),
			estimateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("lenderctl failed")
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "manage the database schema",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					version, err := database.MigrateUp(cfg.DatabaseURL)
					if err != nil {
						return err
					}
					log.Info().Uint("version", version).Msg("Migrations applied")
					return nil
				},
			},
			{
				Name:      "down",
				Usage:     "roll back N migrations",
				ArgsUsage: "N",
				Action: func(c *cli.Context) error {
					steps := 1
					if c.Args().Present() {
						n, err := strconv.Atoi(c.Args().First())
						if err != nil {
							return fmt.Errorf("invalid step count %q", c.Args().First())
						}
						steps = n
					}
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					if err := database.MigrateDown(cfg.DatabaseURL, steps); err != nil {
						return err
					}
					log.Info().Int("steps", steps).Msg("Migrations rolled back")
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "print the current schema version",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					status, err := database.GetMigrationStatus(cfg.DatabaseURL)
					if err != nil {
						return err
					}
					if !status.Applied {
						fmt.Fprintln(c.App.Writer, "no migrations applied")
						return nil
					}
					fmt.Fprintf(c.App.Writer, "version %d (dirty: %t)\n", status.Version, status.Dirty)
					return nil
				},
			},
		},
	}
}

func invoicesCommand() *cli.Command {
	return &cli.Command{
		Name:  "invoices",
		Usage: "invoice cycle operations",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "generate due invoices and flag overdue ones now",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					pool, err := database.NewPool(c.Context, cfg.DatabaseURL, cfg.DatabaseMaxConns)
					if err != nil {
						return err
					}
					defer pool.Close()

					invoiceService := service.NewInvoiceService(
						postgres.NewTransactor(pool),
						postgres.NewInvoiceRepository(pool),
						postgres.NewLoanRepository(pool),
						postgres.NewSequenceRepository(pool),
						postgres.NewLenderRepository(pool),
					)
					worker := service.NewInvoiceWorker(invoiceService, log.Logger, service.DefaultInvoiceWorkerConfig())
					result := worker.RunNow(c.Context)
					if result == nil {
						return fmt.Errorf("invoice run did not complete")
					}
					if len(result.Errors) > 0 {
						return cli.Exit(fmt.Sprintf("%d loans failed", len(result.Errors)), 1)
					}
					return nil
				},
			},
		},
	}
}

func estimateCommand() *cli.Command {
	return &cli.Command{
		Name:  "estimate",
		Usage: "print the EMI and amortization schedule for loan terms",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "principal", Required: true, Usage: "amount lent"},
			&cli.StringFlag{Name: "rate", Required: true, Usage: "monthly interest rate in percent"},
			&cli.IntFlag{Name: "tenure", Required: true, Usage: "duration in months"},
			&cli.StringFlag{Name: "start", Value: util.FormatDate(time.Now()), Usage: "start date (YYYY-MM-DD)"},
			&cli.StringFlag{Name: "type", Value: string(domain.InterestTypeSimple), Usage: "simple or compound"},
			&cli.StringFlag{Name: "emi", Usage: "manual EMI override"},
		},
		Action: func(c *cli.Context) error {
			principal, err := decimal.NewFromString(c.String("principal"))
			if err != nil {
				return fmt.Errorf("invalid principal: %w", err)
			}
			rate, err := decimal.NewFromString(c.String("rate"))
			if err != nil {
				return fmt.Errorf("invalid rate: %w", err)
			}
			start, err := util.ParseDate(c.String("start"))
			if err != nil {
				return fmt.Errorf("invalid start date: %w", err)
			}

			input := service.EstimateInput{
				Principal:    principal,
				MonthlyRate:  rate,
				Tenure:       int32(c.Int("tenure")),
				InterestType: domain.InterestType(c.String("type")),
				StartDate:    start,
			}
			if raw := c.String("emi"); raw != "" {
				emi, err := decimal.NewFromString(raw)
				if err != nil {
					return fmt.Errorf("invalid emi: %w", err)
				}
				input.EMIOverride = &emi
			}

			est, err := service.CalculateLoanEstimate(input)
			if err != nil {
				return err
			}
			return printEstimate(c, est)
		},
	}
}

func printEstimate(c *cli.Context, est *service.LoanEstimate) error {
	out := c.App.Writer
	fmt.Fprintf(out, "Monthly EMI:     %s\n", est.MonthlyEMI.StringFixed(2))
	fmt.Fprintf(out, "Total payable:   %s\n", est.TotalAmountPayable.StringFixed(2))
	fmt.Fprintf(out, "Total interest:  %s\n", est.TotalInterestAmount.StringFixed(2))
	fmt.Fprintf(out, "Term:            %s to %s\n\n", util.FormatDate(est.StartDate), util.FormatDate(est.EndDate))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Month\tDue\tEMI\tPrincipal\tInterest\tBalance\t")
	for _, e := range est.Schedule {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t\n",
			e.Month,
			util.FormatDate(e.DueDate),
			e.EMI.StringFixed(2),
			e.Principal.StringFixed(2),
			e.Interest.StringFixed(2),
			e.Balance.StringFixed(2),
		)
	}
	return w.Flush()
}
