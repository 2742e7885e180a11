package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"siactl/internal/services"
	"siactl/internal/units"
)

var offlineAnnotations = map[string]string{"skipConfigLoad": "true"}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	convertCmd := &cobra.Command{
		Use:         "convert",
		Short:       "Convert between siacoins and hastings",
		Annotations: offlineAnnotations,
	}
	convertCmd.AddCommand(newConvertUnitCommand(ctx, "to-hastings", "Convert siacoins to hastings", units.ToHastings))
	convertCmd.AddCommand(newConvertUnitCommand(ctx, "to-siacoins", "Convert hastings to siacoins", units.ToSiacoins))
	return convertCmd
}

func newConvertUnitCommand(ctx *commandContext, use, short string, convert func(units.Amount) units.Amount) *cobra.Command {
	var places int

	cmd := &cobra.Command{
		Use:   use + " <amount>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := units.ParseAmount(strings.TrimSpace(args[0]))
			if err != nil {
				return services.Wrap(services.ErrValidation, "siactl", "convert", "", err)
			}
			result := convert(amount)
			rendered := result.String()
			if places >= 0 {
				rendered = result.Round(places)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]string{"input": args[0], "result": rendered})
			}
			fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return nil
		},
	}
	cmd.Flags().IntVar(&places, "places", -1, "Round to this many fractional digits (default exact)")
	return cmd
}

func newValidateCommand(ctx *commandContext) *cobra.Command {
	validateCmd := &cobra.Command{
		Use:         "validate",
		Short:       "Check amounts and addresses without contacting siad",
		Annotations: offlineAnnotations,
	}

	var checksum bool
	addressCmd := &cobra.Command{
		Use:   "address <address>",
		Short: "Check that a value is a 76-character lowercase hex address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := strings.TrimSpace(args[0])
			var reason error
			if !units.IsValidAddress(value) {
				reason = units.ErrInvalidAddress
			} else if checksum {
				reason = units.VerifyAddressChecksum(value)
			}
			return reportValidity(cmd, ctx, "address", value, reason)
		},
	}
	addressCmd.Flags().BoolVar(&checksum, "checksum", false, "Also verify the blake2b checksum")

	amountCmd := &cobra.Command{
		Use:   "amount <amount>",
		Short: "Check that a value parses as a finite decimal amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := strings.TrimSpace(args[0])
			var reason error
			if !units.IsValidAmount(value) {
				reason = units.ErrInvalidAmount
			}
			return reportValidity(cmd, ctx, "amount", value, reason)
		},
	}

	validateCmd.AddCommand(addressCmd, amountCmd)
	return validateCmd
}

func reportValidity(cmd *cobra.Command, ctx *commandContext, kind, value string, reason error) error {
	valid := reason == nil
	if ctx.jsonOutput() {
		payload := map[string]any{"kind": kind, "value": value, "valid": valid}
		if reason != nil {
			payload["reason"] = reason.Error()
		}
		if err := writeJSON(cmd, payload); err != nil {
			return err
		}
	} else if valid {
		fmt.Fprintf(cmd.OutOrStdout(), "valid %s\n", kind)
	}
	if !valid {
		return services.Wrap(services.ErrValidation, "siactl", "validate "+kind, "", reason)
	}
	return nil
}
