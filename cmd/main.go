package main

import (
	"flag"
	"fmt"
	"os"

	"ssw-alert-watcher/internal/app"
	"ssw-alert-watcher/internal/config"
)

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "", "Path to configuration file (default: $WATCHER_CONFIG_FILE or "+config.DefaultConfigFile+")")
	flag.Parse()

	configFile = config.ResolveConfigPath(configFile)
	fmt.Printf("Using configuration file: %s\n", configFile)

	application, err := app.New(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create application: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}
