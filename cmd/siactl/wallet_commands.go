package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"siactl/internal/services"
	"siactl/internal/siad"
	"siactl/internal/units"
)

const walletPasswordEnv = "SIACTL_WALLET_PASSWORD"

func newConsensusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "consensus",
		Short: "Show consensus height and sync state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(callCtx context.Context, client *siad.Client) error {
				info, err := client.Consensus(callCtx)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, info)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderKeyValues([][2]string{
					{"Synced", yesNo(info.Synced)},
					{"Height", strconv.FormatUint(info.Height, 10)},
					{"Current block", info.CurrentBlock},
				}))
				return nil
			})
		},
	}
}

func newWalletCommand(ctx *commandContext) *cobra.Command {
	var places int

	walletCmd := &cobra.Command{
		Use:   "wallet",
		Short: "Show wallet balances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(callCtx context.Context, client *siad.Client) error {
				info, err := client.Wallet(callCtx)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, info)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Field", "Value"},
					[][]string{
						{"Encrypted", yesNo(info.Encrypted)},
						{"Unlocked", yesNo(info.Unlocked)},
						{"Confirmed", units.FormatSiacoins(info.ConfirmedSiacoinBalance, places)},
						{"Outgoing (unconfirmed)", units.FormatSiacoins(info.UnconfirmedOutgoingSiacoins, places)},
						{"Incoming (unconfirmed)", units.FormatSiacoins(info.UnconfirmedIncomingSiacoins, places)},
						{"Siafunds", info.SiafundBalance.String() + " SF"},
						{"Claim balance", units.FormatSiacoins(info.SiacoinClaimBalance, places)},
					},
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	walletCmd.Flags().IntVar(&places, "places", 2, "Fractional digits shown for siacoin balances")

	walletCmd.AddCommand(newWalletAddressCommand(ctx))
	walletCmd.AddCommand(newWalletUnlockCommand(ctx))
	walletCmd.AddCommand(newWalletLockCommand(ctx))
	walletCmd.AddCommand(newWalletSendCommand(ctx))
	walletCmd.AddCommand(newWalletTransactionCommand(ctx))
	return walletCmd
}

func newWalletAddressCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "address",
		Short: "Generate a receive address, or list all with --all",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(callCtx context.Context, client *siad.Client) error {
				var addrs []string
				if all {
					list, err := client.WalletAddresses(callCtx)
					if err != nil {
						return err
					}
					addrs = list
				} else {
					addr, err := client.WalletAddress(callCtx)
					if err != nil {
						return err
					}
					addrs = []string{addr}
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string][]string{"addresses": addrs})
				}
				for _, addr := range addrs {
					fmt.Fprintln(cmd.OutOrStdout(), addr)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "List every address the wallet owns")
	return cmd
}

func newWalletUnlockCommand(ctx *commandContext) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Unlock the wallet",
		Long:  "Unlock the wallet. The password comes from --password or " + walletPasswordEnv + ".",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw := password
			if pw == "" {
				pw = os.Getenv(walletPasswordEnv)
			}
			if strings.TrimSpace(pw) == "" {
				return services.Wrap(services.ErrValidation, "siactl", "wallet unlock", "password is required (--password or "+walletPasswordEnv+")", nil)
			}
			return ctx.withClient(cmd, func(callCtx context.Context, client *siad.Client) error {
				if err := client.WalletUnlock(callCtx, pw); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Wallet unlocked")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Wallet encryption password")
	return cmd
}

func newWalletLockCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Lock the wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(callCtx context.Context, client *siad.Client) error {
				if err := client.WalletLock(callCtx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Wallet locked")
				return nil
			})
		},
	}
}

func newWalletSendCommand(ctx *commandContext) *cobra.Command {
	var hastings bool

	cmd := &cobra.Command{
		Use:   "send <amount> <destination>",
		Short: "Send siacoins to an address",
		Long: "Send siacoins. The amount is in siacoins unless --hastings is set; it must\n" +
			"come to a whole number of hastings. The destination checksum is verified\n" +
			"before anything is sent.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := units.ParseAmount(args[0])
			if err != nil {
				return services.Wrap(services.ErrValidation, "siactl", "wallet send", "", err)
			}
			if !hastings {
				amount = units.ToHastings(amount)
			}
			dest := strings.TrimSpace(args[1])
			if err := units.VerifyAddressChecksum(dest); err != nil {
				return services.Wrap(services.ErrValidation, "siactl", "wallet send", "", err)
			}
			return ctx.withClient(cmd, func(callCtx context.Context, client *siad.Client) error {
				result, err := client.WalletSiacoins(callCtx, amount, dest)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Sent %s to %s\n", units.FormatSiacoins(amount, 24), dest)
				for _, id := range result.TransactionIDs {
					fmt.Fprintf(out, "  txn %s\n", id)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&hastings, "hastings", false, "Interpret the amount as hastings")
	return cmd
}

func newWalletTransactionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "transaction <id>",
		Short: "Show a wallet transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(callCtx context.Context, client *siad.Client) error {
				txn, err := client.WalletTransaction(callCtx, args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, txn)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Transaction %s (height %d)\n", txn.TransactionID, txn.ConfirmationHeight)
				rows := make([][]string, 0, len(txn.Inputs)+len(txn.Outputs))
				for _, in := range txn.Inputs {
					rows = append(rows, []string{"in", in.FundType, in.RelatedAddress, in.Value.String()})
				}
				for _, o := range txn.Outputs {
					rows = append(rows, []string{"out", o.FundType, o.RelatedAddress, o.Value.String()})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Dir", "Fund", "Address", "Value (H)"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}
