package main

import (
	"context"
	"fmt"

	"github.com/procasteam/procas/internal/records"
	"github.com/procasteam/procas/internal/settlement"
	"github.com/procasteam/procas/internal/types"
	"github.com/spf13/cobra"
)

var (
	goalsUser   string
	goalsPublic bool
)

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Inspect and settle goals",
}

var goalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals, newest first",
	Args:  cobra.NoArgs,
	RunE:  runGoalsList,
}

var goalsSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Mark overdue one-off goals as incomplete",
	Args:  cobra.NoArgs,
	RunE:  runGoalsSweep,
}

func init() {
	goalsCmd.PersistentFlags().StringVar(&dbPathOverride, "db", "",
		"Database path (overrides config and PROCAS_DB_PATH)")
	goalsCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")
	goalsListCmd.Flags().StringVar(&goalsUser, "user", "", "Only goals owned by this user")
	goalsListCmd.Flags().BoolVar(&goalsPublic, "public", false, "Only public goals")

	goalsCmd.AddCommand(goalsListCmd)
	goalsCmd.AddCommand(goalsSweepCmd)
}

func runGoalsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openStore(dbPathOverride)
	if err != nil {
		return err
	}
	defer store.Close()

	goals := records.NewGoals(store)
	var list []types.Goal
	switch {
	case goalsPublic:
		list, err = goals.GetPublicGoals(ctx)
	case goalsUser != "":
		list, err = goals.GetUserGoals(ctx, goalsUser)
	default:
		list, err = goals.GetAllGoals(ctx)
	}
	if err != nil {
		return fmt.Errorf("list goals: %w", err)
	}
	if goalsPublic && goalsUser != "" {
		owned := list[:0]
		for _, g := range list {
			if g.UserID == goalsUser {
				owned = append(owned, g)
			}
		}
		list = owned
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"goals": list,
			"total": len(list),
		})
	}

	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No goals found.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tOWNER\tTITLE\tSTATUS\tPOINTS\tBETS\tDUE")
	for _, g := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			g.ID,
			g.UserID,
			g.Title,
			goalStatus(g),
			g.Points,
			len(g.Bets),
			relTime(g.DueDate),
		)
	}
	w.Flush()

	return nil
}

func goalStatus(g types.Goal) string {
	switch g.Status.(type) {
	case types.Completed:
		return "completed"
	case types.Incomplete:
		return "incomplete"
	default:
		return "pending"
	}
}

func runGoalsSweep(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openStore(dbPathOverride)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := settlement.NewService(store, records.NewUsers(store), records.NewGoals(store))
	n, err := svc.SweepOverdue(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"settled": n})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Marked %d overdue goal(s) incomplete\n", n)
	return nil
}
