// Command trustscore is the consumer's CLI surface (spec §6): resolve an
// account id out of its argument, request a score from a configured
// producer, print it, and exit non-zero with a descriptive message on
// failure.
package main

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/trustmesh/agentmarket/internal/config"
	"github.com/trustmesh/agentmarket/internal/consumer"
	"github.com/trustmesh/agentmarket/internal/facilitator"
	"github.com/trustmesh/agentmarket/internal/ledger"
	"github.com/trustmesh/agentmarket/internal/telemetry"
	"github.com/trustmesh/agentmarket/internal/types"
)

var cfgFile string

// accountIDPattern pulls a "0.0.N"-shaped account id out of an otherwise
// free-form argument, e.g. "what's the score for 0.0.2?" resolves to
// "0.0.2" (SPEC_FULL §3's natural-language resolution, best-effort rather
// than a full NLP pipeline).
var accountIDPattern = regexp.MustCompile(`\b0\.0\.\d+\b`)

var rootCmd = &cobra.Command{
	Use:   "trustscore <accountId | natural-language string>",
	Short: "Request a reputation trust score for a ledger account",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrustScore,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.trustscore.yaml)")
	rootCmd.Flags().String("producer", "", "producer endpoint (overrides PRODUCER_ENDPOINT)")
	rootCmd.Flags().String("product", "trustscore.basic.v1", "product id to negotiate and request")
	viper.BindPFlag("producer", rootCmd.Flags().Lookup("producer"))
	viper.BindPFlag("product", rootCmd.Flags().Lookup("product"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".trustscore")
		}
	}
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func resolveAccountID(arg string) types.AccountId {
	if match := accountIDPattern.FindString(arg); match != "" {
		return types.AccountId(match)
	}
	return types.AccountId(arg)
}

func runTrustScore(cmd *cobra.Command, args []string) error {
	accountID := resolveAccountID(args[0])

	cfg := config.Load()

	endpoint := viper.GetString("producer")
	if endpoint == "" {
		endpoint = cfg.ProducerEndpoint
	}
	productID := viper.GetString("product")

	logger, err := telemetry.NewLogger(telemetry.DefaultConfig("consumer"))
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	if cfg.ConsumerKey == "" {
		return fmt.Errorf("CONSUMER_KEY is not configured; cannot sign payment authorizations")
	}

	var mirror ledger.TransferSubmitter
	if mirrorEndpoint := os.Getenv("LEDGER_MIRROR_ENDPOINT"); mirrorEndpoint != "" {
		wsClient, err := ledger.NewWSClient(mirrorEndpoint)
		if err != nil {
			return fmt.Errorf("connecting to ledger mirror node: %w", err)
		}
		defer wsClient.Close()
		mirror = wsClient
	} else {
		return fmt.Errorf("LEDGER_MIRROR_ENDPOINT is not configured; cannot settle payments")
	}

	wallet, err := ledger.NewNativeWallet(cfg.ConsumerKey, cfg.Network, mirror)
	if err != nil {
		return fmt.Errorf("loading consumer wallet: %w", err)
	}

	fac := facilitator.New(wallet)
	buyerAgentID := cfg.ConsumerAccount
	if buyerAgentID == "" {
		buyerAgentID = "anonymous"
	}
	c := consumer.New(fac, wallet, buyerAgentID, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	score, err := c.RequestScore(ctx, accountID, productID, endpoint)
	if err != nil {
		return fmt.Errorf("requesting trust score: %w", err)
	}

	fmt.Printf("account:    %s\n", score.Account)
	fmt.Printf("score:      %d\n", score.Score)
	fmt.Printf("computedAt: %s\n", time.UnixMilli(score.Timestamp).Format(time.RFC3339))
	if len(score.Partial) > 0 {
		fmt.Printf("partial:    %v\n", score.Partial)
	}
	if len(score.RiskFlags) > 0 {
		fmt.Printf("riskFlags:  %v\n", score.RiskFlags)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
