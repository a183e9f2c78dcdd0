package cmd

import (
	"fmt"
	"os"

	"github.com/gemini2openai/api-proxy/internal/config"
	"github.com/gemini2openai/api-proxy/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var forceInit bool

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write a default config.yaml",
	Long: `Write a config file containing every setting with its default value.
The Gemini API key is not written; provide it through GEMINI_API_KEY or a .env file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInitConfig,
}

func init() {
	rootCmd.AddCommand(initConfigCmd)
	initConfigCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
}

// runInitConfig 生成默认配置文件
func runInitConfig(cmd *cobra.Command, args []string) error {
	log, err := logger.NewDevelopment()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	path := "./config.yaml"
	if len(args) == 1 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	if err := config.SaveConfig(config.Default(), path); err != nil {
		log.Error("Failed to write config", zap.String("path", path), zap.Error(err))
		return err
	}

	log.Info("Config file created", zap.String("path", path))
	fmt.Println("\nSet your Gemini API key before starting the server:")
	fmt.Println("   export GEMINI_API_KEY=...")
	fmt.Println("   ./gemini2openai")

	return nil
}
