package main

import (
	"flag"
	"os"

	"missionctl/config"
	"missionctl/core/appbootstrap"
	"missionctl/core/utils"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		utils.NewLogger().Errorf("load config: %v", err)
		os.Exit(1)
	}
	logger := utils.NewLogger()
	if err := appbootstrap.Run(cfg, logger); err != nil {
		logger.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}
