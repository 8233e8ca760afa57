package main

import (
	"os"

	"github.com/yigit/earlyalert/internal/pkg/logger"
	"github.com/yigit/earlyalert/internal/server"
)

// @title Early Alert API
// @version 1.0
// @description Student risk ledger and intervention tracking for academic advising

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT issued by the campus identity provider

func main() {
	srv, err := server.NewServer()
	if err != nil {
		// details are logged by the setup functions
		logger.Error().Err(err).Msg("Failed to initialize server")
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		logger.Error().Err(err).Msg("Server execution failed or shutdown encountered errors")
		os.Exit(1)
	}

	logger.Info().Msg("Application finished gracefully.")
}
