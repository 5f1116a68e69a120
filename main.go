package main

import (
	"fmt"
	"os"

	"wave-portal-tui/config"
	"wave-portal-tui/wallet"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// -------------------- MAIN --------------------

var (
	configPath   string
	rpcURLFlag   string
	keystoreFlag string
	accountFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "wave-portal",
	Short: "Wave at the WavePortal contract from your terminal",
	Long: `wave-portal connects a local wallet (an encrypted keystore or a raw
private key) to the WavePortal contract. It lists every wave recorded on
chain, follows new ones live, and sends your own wave with a message.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "config file (default ~/"+config.FileName+")")
	rootCmd.Flags().StringVar(&rpcURLFlag, "rpc-url", "", "Ethereum RPC endpoint, overrides "+config.EnvRPCURL)
	rootCmd.Flags().StringVar(&keystoreFlag, "keystore", "", "keystore directory, overrides "+config.EnvKeystore)
	rootCmd.Flags().StringVar(&accountFlag, "account", "", "keystore account address, overrides "+config.EnvAccount)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// .env is optional
	_ = godotenv.Load()

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg := config.LoadOrCreate(path)
	cfg.ApplyEnv(os.Getenv)
	if rpcURLFlag != "" {
		cfg.SetRPC(rpcURLFlag)
	}
	if keystoreFlag != "" {
		cfg.Wallet.Keystore = keystoreFlag
	}
	if accountFlag != "" {
		cfg.Wallet.Account = accountFlag
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}

	auth := newAuthBridge()
	provider, err := wallet.Detect(cfg.Wallet.PrivateKey, cfg.Wallet.Keystore, wallet.KeystoreOptions{
		Account:    cfg.Wallet.Account,
		Passphrase: cfg.Wallet.Passphrase,
		Prompt:     auth.Prompt,
	})
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}

	m := newModel(cfg, path, provider, auth)
	p := tea.NewProgram(&m, tea.WithAltScreen())
	_, err = p.Run()
	m.shutdown()
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}
