package main

import (
	"bufio"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/procasteam/procas/internal/progress"
	"github.com/procasteam/procas/internal/records"
	"github.com/spf13/cobra"
)

var (
	dbPathOverride string
	jsonOutput     bool
	clearForce     bool
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect and manage users",
	Long:  "List and clear users directly in the document store without running the server.",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users by points",
	Args:  cobra.NoArgs,
	RunE:  runUsersList,
}

var usersClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every user",
	Long:  "Permanently delete every user. Goals are kept. Requires --force or interactive confirmation.",
	Args:  cobra.NoArgs,
	RunE:  runUsersClear,
}

func init() {
	usersCmd.PersistentFlags().StringVar(&dbPathOverride, "db", "",
		"Database path (overrides config and PROCAS_DB_PATH)")
	usersCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output in JSON format")
	usersClearCmd.Flags().BoolVar(&clearForce, "force", false,
		"Skip confirmation prompt")

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersClearCmd)
}

func runUsersList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := openStore(dbPathOverride)
	if err != nil {
		return err
	}
	defer store.Close()

	users, err := records.NewUsers(store).GetAllUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	sort.Slice(users, func(i, j int) bool {
		return progress.Outranks(users[i], users[j])
	})

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"users": users,
			"total": len(users),
		})
	}

	if len(users) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No users found.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tNAME\tPOINTS\tLEVEL\tSTREAK\tLAST ACTIVE")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			u.ID,
			u.Name,
			u.Points,
			progress.LevelFor(u.Points).Level.Level,
			u.Streak,
			relTime(u.LastActive),
		)
	}
	w.Flush()

	return nil
}

func runUsersClear(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if !clearForce {
		errOut := cmd.ErrOrStderr()
		fmt.Fprintln(errOut, "WARNING: This will permanently delete every user.")
		fmt.Fprint(errOut, "Type \"clear\" to confirm: ")

		reader := bufio.NewReader(cmd.InOrStdin())
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.TrimSpace(input) != "clear" {
			fmt.Fprintln(errOut, "Aborted.")
			return nil
		}
	}

	store, err := openStore(dbPathOverride)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := records.NewUsers(store).ClearAllUsers(ctx); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{"cleared": true})
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Cleared all users")
	return nil
}
