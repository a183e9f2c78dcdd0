package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gemini2openai/api-proxy/internal/config"
	"github.com/gemini2openai/api-proxy/internal/gemini"
	"github.com/gemini2openai/api-proxy/internal/logger"
	"github.com/gemini2openai/api-proxy/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API proxy server",
	Long:  `Start the OpenAI-compatible proxy in front of the Gemini API`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServerFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	bindServerFlags(cmd)

	// 加载配置, 缺少 API key 时立即失败
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 初始化日志
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting gemini2openai",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("gemini_base_url", cfg.Gemini.BaseURL),
		zap.String("gemini_key", maskAPIKey(cfg.Gemini.APIKey)),
		zap.Duration("gemini_timeout", cfg.Gemini.Timeout),
	)

	client, err := gemini.NewClient(gemini.Config{
		APIKey:    cfg.Gemini.APIKey,
		BaseURL:   cfg.Gemini.BaseURL,
		Timeout:   cfg.Gemini.Timeout,
		UserAgent: cfg.Gemini.UserAgent,
	}, log.Named("gemini"))
	if err != nil {
		log.Error("Failed to create Gemini client", zap.Error(err))
		return err
	}

	// 创建服务器
	srv, err := server.New(cfg, log, client)
	if err != nil {
		log.Error("Failed to create server", zap.Error(err))
		return err
	}

	// 启动HTTP服务器
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 优雅关闭
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server started", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		log.Error("Server failed", zap.Error(err))
		return err
	case <-stop:
	}
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	log.Info("Server stopped gracefully")
	return nil
}

// maskAPIKey returns a masked version of the API key for logging
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
