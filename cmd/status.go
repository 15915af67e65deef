package cmd

import (
	"fmt"
	"io"

	"rafflepool/api"
	"rafflepool/config"
	"rafflepool/deployment"
	"rafflepool/infrastructure"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	var (
		addressHex  string
		addressFile string
	)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Print the state of the deployed ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()

			address, err := resolveLedgerAddress(addressHex, addressFile, cfg.AddressFiles)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			services, err := openServices(ctx, cfg, infrastructure.NewNoopEventPublisher())
			if err != nil {
				return err
			}
			defer services.Close()

			status, err := services.ledgers.Status(ctx, address)
			if err != nil {
				return err
			}
			count, err := services.ledgers.ParticipantCount(ctx, address)
			if err != nil && status.Ledger.Initialized {
				return err
			}

			out := cmd.OutOrStdout()
			l := status.Ledger
			fmt.Fprintf(out, "Ledger:        %s\n", l.Address.Hex())
			fmt.Fprintf(out, "Initialized:   %t\n", l.Initialized)
			fmt.Fprintf(out, "Operator:      %s\n", l.Operator.Hex())
			fmt.Fprintf(out, "Version:       %d\n", l.SchemaVersion)
			printAmount(out, "Pool", l.PoolBalance)
			printAmount(out, "Unallocated", l.Unallocated)
			printAmount(out, "Threshold", l.MinimumThreshold)
			fmt.Fprintf(out, "Participants:  %d\n", count)
			fmt.Fprintf(out, "Draws:         %d\n", l.DrawCount)
			if status.Price != nil {
				printAmount(out, "Price", *status.Price)
			}
			return nil
		},
	}

	statusCmd.Flags().StringVar(&addressHex, "address", "", "ledger address (overrides the address file)")
	statusCmd.Flags().StringVar(&addressFile, "address-file", "", "address file to read (defaults to the first of ADDRESS_FILES)")
	return statusCmd
}

// resolveLedgerAddress prefers an explicit address, then an explicit file, then the configured files
func resolveLedgerAddress(addressHex, addressFile string, configured []string) (common.Address, error) {
	if addressHex != "" {
		if !common.IsHexAddress(addressHex) {
			return common.Address{}, fmt.Errorf("address must be a hex address, got %q", addressHex)
		}
		return common.HexToAddress(addressHex), nil
	}
	if addressFile == "" {
		addressFile = deployment.DefaultAddressFile
		if len(configured) > 0 {
			addressFile = configured[0]
		}
	}
	return deployment.ReadAddressFile(addressFile)
}

func printAmount(out io.Writer, label string, amount int64) {
	coins := decimal.New(amount, -api.CoinDecimals)
	fmt.Fprintf(out, "%-14s %d (%s coins)\n", label+":", amount, coins.String())
}
