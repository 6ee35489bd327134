package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/abelbrown/digest/internal/config"
	"github.com/abelbrown/digest/internal/logging"
)

// runInit writes a starter config file, picking up API keys already in
// the environment.
func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing config file")
	fs.Parse(os.Args[1:])

	logging.Init(false)

	path := config.ConfigPath()
	if _, err := os.Stat(path); err == nil && !*force {
		fmt.Printf("Config already exists at %s (use -force to overwrite)\n", path)
		return
	}

	cfg := config.DefaultConfig()
	cfg.AutoPopulateFromEnv()
	if err := cfg.Save(); err != nil {
		logging.Fatal("Failed to write config", "path", path, "error", err)
	}
	fmt.Printf("Wrote config to %s\n", path)
}
