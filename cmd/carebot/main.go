package main

import (
	"flag"
	"fmt"
	"os"

	"carebot/internal/di"
	"carebot/internal/structures"
)

func main() {
	flags := &structures.CliFlags{}
	flag.StringVar(&flags.ConfigPath, "config", "config.yaml", "path to the config file")
	flag.BoolVar(&flags.DebugMode, "debug", false, "enable debug mode")
	flag.Parse()

	if _, err := di.InitApp(flags); err != nil {
		fmt.Fprintf(os.Stderr, "carebot: %s\n", err)
		os.Exit(1)
	}
}
