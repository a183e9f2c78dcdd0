package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/gemini2openai/api-proxy/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Version   string
	BuildTime string
	cfgFile   string
	envFile   string
)

var rootCmd = &cobra.Command{
	Use:   "gemini2openai",
	Short: "OpenAI-compatible proxy for the Google Gemini API",
	Long: `gemini2openai exposes OpenAI-compatible /v1/chat/completions and /v1/models
endpoints and translates every call to the Google Gemini generateContent API.`,
	SilenceUsage: true,
	RunE:         runServe, // 默认启动服务器
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// 全局标志
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().String("log-file", "logs/gemini2openai.log", "log file path")

	// 服务器标志（直接在root命令使用）
	addServerFlags(rootCmd)

	viper.BindPFlag("logging.output", rootCmd.PersistentFlags().Lookup("log-file"))
}

func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().String("host", "0.0.0.0", "server host")
	cmd.Flags().Int("port", 8000, "server port")
	cmd.Flags().String("mode", "release", "server mode (debug/release/test)")
}

// bindServerFlags binds the flags of the command actually being run, so that
// `serve --port` and the bare `--port` both reach server.port.
func bindServerFlags(cmd *cobra.Command) {
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.mode", cmd.Flags().Lookup("mode"))
}

func initConfig() {
	// .env 文件可选
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Printf("Warning: failed to load %s: %v\n", envFile, err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./data")
		viper.AddConfigPath("$HOME/.gemini2openai")
	}

	config.RegisterDefaults(viper.GetViper())
	config.BindEnv(viper.GetViper())

	// 配置文件可选，环境变量即可运行
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			fmt.Printf("Warning: failed to read config file: %v\n", err)
		}
	} else {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
