package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Dan9191/budget-service/internal/app"
	"github.com/Dan9191/budget-service/internal/calendar"
	"github.com/Dan9191/budget-service/internal/config"
	"github.com/Dan9191/budget-service/internal/middleware"
	"github.com/Dan9191/budget-service/internal/service"
)

var (
	planFlag string
	rootCmd  = newRootCmd(os.Stdout)
)

func newRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "budgetctl",
		Short:         "Run the budget engine's batch jobs by hand",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Show help when no subcommand is provided
			return cmd.Help()
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVarP(&planFlag, "plan", "p", "", "Plan id (default: every plan)")

	root.AddCommand(accrueCmd(), carryoverCmd(), backfillCmd(), overdueCmd(), tokenCmd())
	return root
}

// withService loads config and storage and hands the engine to fn
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service, planID uuid.UUID) (interface{}, error)) error {
	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := app.NewLogger(cfg.LogLevel)
	logger.SetOutput(cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closer, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	svc, err := app.NewService(cfg, st, logger)
	if err != nil {
		return err
	}

	planID := uuid.Nil
	if planFlag != "" {
		if planID, err = uuid.Parse(planFlag); err != nil {
			return fmt.Errorf("invalid --plan: %w", err)
		}
	}

	result, err := fn(ctx, svc, planID)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func accrueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accrue",
		Short: "Fold missed debt payments into balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service, planID uuid.UUID) (interface{}, error) {
				if planID == uuid.Nil {
					return svc.Accrual.RunAll(ctx)
				}
				return svc.Accrual.Run(ctx, planID)
			})
		},
	}
}

func carryoverCmd() *cobra.Command {
	var (
		period  string
		partial bool
		force   []string
	)
	cmd := &cobra.Command{
		Use:   "carryover",
		Short: "Convert a month's unpaid expenses into debts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service, planID uuid.UUID) (interface{}, error) {
				if planID == uuid.Nil {
					return svc.Carryover.RunAll(ctx)
				}

				req := service.UnpaidRequest{Period: calendar.MonthOf(svc.Today()), OnlyPartialPayments: partial}
				if period != "" {
					key, err := calendar.ParseMonthKey(period)
					if err != nil {
						return nil, err
					}
					req.Period = key
				}
				for _, raw := range force {
					id, err := uuid.Parse(raw)
					if err != nil {
						return nil, fmt.Errorf("invalid --force id %q: %w", raw, err)
					}
					req.ForceExpenseIDs = append(req.ForceExpenseIDs, id)
				}
				return svc.Carryover.ProcessUnpaid(ctx, planID, req)
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "Plan month as YYYY-MM (default: current month)")
	cmd.Flags().BoolVar(&partial, "partial", false, "Convert partially paid expenses without waiting for their due date")
	cmd.Flags().StringSliceVar(&force, "force", nil, "Expense ids to convert regardless of due date")
	return cmd
}

func backfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Convert unpaid expenses of every earlier month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service, planID uuid.UUID) (interface{}, error) {
				if planID == uuid.Nil {
					return nil, fmt.Errorf("--plan is required")
				}
				return svc.Carryover.Backfill(ctx, planID)
			})
		},
	}
}

func overdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "Convert every past due or partially paid expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(ctx context.Context, svc *service.Service, planID uuid.UUID) (interface{}, error) {
				if planID == uuid.Nil {
					return nil, fmt.Errorf("--plan is required")
				}
				return svc.Carryover.ProcessOverdue(ctx, planID)
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		userID int64
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an API token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			token, err := middleware.IssueToken(cfg.JWTSecret, userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "User id to put in the token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
