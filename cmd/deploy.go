package cmd

import (
	"fmt"

	"rafflepool/config"
	"rafflepool/deployment"
	"rafflepool/infrastructure"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newDeployCommand() *cobra.Command {
	var (
		deployerHex    string
		threshold      int64
		addressFiles   []string
		skipInitialize bool
	)

	deployCmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy and initialize a new ledger, then publish its address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			if !cmd.Flags().Changed("deployer") {
				deployerHex = cfg.DeployerAddress
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = cfg.MinimumThreshold
			}
			if !cmd.Flags().Changed("address-file") {
				addressFiles = cfg.AddressFiles
			}
			if !common.IsHexAddress(deployerHex) {
				return fmt.Errorf("deployer must be a hex address, got %q", deployerHex)
			}
			deployer := common.HexToAddress(deployerHex)

			ctx := cmd.Context()
			services, err := openServices(ctx, cfg, infrastructure.NewNoopEventPublisher())
			if err != nil {
				return err
			}
			defer services.Close()

			ledger, err := services.ledgers.Deploy(ctx, deployer)
			if err != nil {
				return fmt.Errorf("failed to deploy ledger: %w", err)
			}
			log.WithFields(log.Fields{
				"ledger":   ledger.Address.Hex(),
				"deployer": deployer.Hex(),
				"nonce":    ledger.DeployNonce,
			}).Info("Ledger deployed")

			if !skipInitialize {
				if _, err := services.ledgers.Initialize(ctx, ledger.Address, deployer, threshold); err != nil {
					return fmt.Errorf("failed to initialize ledger: %w", err)
				}
				log.WithFields(log.Fields{
					"ledger":    ledger.Address.Hex(),
					"operator":  deployer.Hex(),
					"threshold": threshold,
				}).Info("Ledger initialized")
			}

			if err := deployment.WriteAddressFiles(ledger.Address, addressFiles); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ledger.Address.Hex())
			return nil
		},
	}

	deployCmd.Flags().StringVar(&deployerHex, "deployer", "", "deployer and operator address (defaults to DEPLOYER_ADDRESS)")
	deployCmd.Flags().Int64Var(&threshold, "threshold", 0, "minimum contribution in base units (defaults to MINIMUM_THRESHOLD)")
	deployCmd.Flags().StringSliceVar(&addressFiles, "address-file", nil, "file to write the ledger address to, repeatable (defaults to ADDRESS_FILES)")
	deployCmd.Flags().BoolVar(&skipInitialize, "skip-initialize", false, "leave the ledger uninitialized")
	return deployCmd
}
