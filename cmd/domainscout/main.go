package main

import (
	"fmt"
	"os"

	"github.com/domainscout/core/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start()

	if a.Cfg.RunServer {
		fmt.Printf("domainscout listening on %s\n", a.Cfg.HTTPAddr)
		if err := a.Run(a.Cfg.HTTPAddr); err != nil {
			a.Log.Warn("server exited", "error", err.Error())
		}
		return
	}

	// Scheduler-only process: keep alive.
	select {}
}
