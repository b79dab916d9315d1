package cli

import (
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/pysugar/codex-nexus/internal/client"
	"github.com/pysugar/codex-nexus/internal/db"
	"github.com/pysugar/codex-nexus/internal/proxy"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the OpenAI-compatible proxy server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort > 0 {
		cfg.Port = servePort
	}

	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}

	c := client.New(cfg)
	router := proxy.NewRouter(c, database)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	log.Printf("🚀 codex-nexus starting on http://%s", addr)
	log.Printf("🔌 OpenAI API: http://%s/v1", addr)
	if cfg.MockMode {
		log.Printf("🧪 Mock mode enabled; no upstream calls will be made")
	}

	if err := http.ListenAndServe(addr, router); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
