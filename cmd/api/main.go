package main

import (
	"os"

	"github.com/yigit/campusreg/internal/pkg/logger"
	"github.com/yigit/campusreg/internal/server"
)

// @title Campus Vehicle Registration API
// @version 1.0
// @description Applicant sign-in, role claiming and registration drafts

// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey CSRFToken
// @in header
// @name X-CSRF-Token

func main() {
	srv, err := server.NewServer()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize server")
		os.Exit(1)
	}

	if err := srv.Run(); err != nil {
		logger.Error().Err(err).Msg("Server execution failed or shutdown encountered errors")
		os.Exit(1)
	}

	logger.Info().Msg("Application finished gracefully.")
}
