// ABOUTME: CLI command for wiping local nutrition data.
// ABOUTME: Removes days, goals, weights and sync state; the login token is kept.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var resetConfirm bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all local data on this device",
	Long: `Delete every day, goal, weight entry and the sync state on this device.
The sync login is kept, so the next 'nutrition sync' downloads everything the
server has.

Example:
  nutrition reset --confirm`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetConfirm {
			fmt.Fprint(cmd.OutOrStdout(), color.YellowString("This deletes all local nutrition data. Type 'yes' to continue: "))
			line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if strings.TrimSpace(line) != "yes" {
				return errors.New("aborted")
			}
		}

		trk.Reset()
		trk.Flush()
		success(cmd, "Local data deleted")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetConfirm, "confirm", false, "skip the confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}
