package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"overdub/internal/credits"
	"overdub/internal/jobs"
)

func newCreditsCommand(ctx *commandContext) *cobra.Command {
	creditsCmd := &cobra.Command{
		Use:   "credits",
		Short: "Credit account operations",
	}
	creditsCmd.AddCommand(newCreditsBalanceCommand(ctx))
	creditsCmd.AddCommand(newCreditsGrantCommand(ctx))
	return creditsCmd
}

func newCreditsBalanceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the account balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *jobs.Store, ledger *credits.Ledger) error {
				balance, err := ledger.Balance(cmd.Context(), ctx.uid())
				if err != nil {
					return err
				}
				rows := [][]string{
					{"Account", balance.UID},
					{"Credits", strconv.Itoa(balance.Credits)},
					{"Reserved", strconv.Itoa(balance.Pending)},
					{"Available", strconv.Itoa(balance.Available())},
				}
				if balance.UID == "" {
					rows[0][1] = ctx.uid()
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"FIELD", "VALUE"}, rows, nil))
				return nil
			})
		},
	}
}

func newCreditsGrantCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "grant AMOUNT",
		Short: "Add credits to the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil || amount <= 0 {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			return ctx.withStore(func(_ *jobs.Store, ledger *credits.Ledger) error {
				if err := ledger.Grant(cmd.Context(), ctx.uid(), amount); err != nil {
					return err
				}
				balance, err := ledger.Balance(cmd.Context(), ctx.uid())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Granted %d credit(s); balance is now %d (%d available)\n",
					amount, balance.Credits, balance.Available())
				return nil
			})
		},
	}
}
