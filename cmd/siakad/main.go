package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// @title SIAKAD API
// @version 1.0.0
// @description Academic core for university study plans (KRS), grades, attendance and transcripts.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "siakad",
		Short:         "SIAKAD academic core API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCommand(), newMigrateCommand(), newCreateUserCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
