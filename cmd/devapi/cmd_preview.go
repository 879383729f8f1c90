package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/newtron-network/devapi/pkg/command"
	"github.com/newtron-network/devapi/pkg/interaction"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render device commands without connecting",
	Long: `Render the command sequence the API would send, without a device.

Examples:
  devapi preview create 10 10.0.0.1 255.255.255.255
  devapi preview delete 10
  devapi preview filter`,
}

var previewCreateCmd = &cobra.Command{
	Use:   "create <loopback_number> <ip_address> <subnet_mask>",
	Short: "Commands that create a loopback interface",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("loopback_number must be an integer: %s", args[0])
		}
		intent := interaction.LoopbackIntent{Number: n, IPAddress: args[1], SubnetMask: args[2]}
		if err := intent.Validate(); err != nil {
			return err
		}
		return printSequence(cmd.OutOrStdout(),
			command.BuildLoopbackCreate(intent.Number, intent.IPAddress, intent.SubnetMask))
	},
}

var previewDeleteCmd = &cobra.Command{
	Use:   "delete <loopback_number>",
	Short: "Commands that delete a loopback interface",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := interaction.ParseLoopbackNumber(args[0])
		if err != nil {
			return err
		}
		return printSequence(cmd.OutOrStdout(), command.BuildLoopbackDelete(n))
	},
}

var previewFilterCmd = &cobra.Command{
	Use:   "filter",
	Short: "NETCONF subtree filter used to list interfaces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printSequence(cmd.OutOrStdout(), command.InterfaceQueryFilter())
	},
}

func printSequence(w io.Writer, seq command.Sequence) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(seq)
	}
	_, err := fmt.Fprint(w, seq.String())
	return err
}

func init() {
	previewCmd.AddCommand(previewCreateCmd, previewDeleteCmd, previewFilterCmd)
	// preview works without any settings file
	previewCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error { return nil }
}
