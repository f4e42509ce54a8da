package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/guepardlover77/sms-app/internal/config"
	"github.com/guepardlover77/sms-app/internal/daemon"
	"github.com/guepardlover77/sms-app/internal/profile"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	listenFlag := flag.String("listen", "", "http listen address (overrides config)")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		cfg = config.Default()
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			ProfileName: profileName,
			ListenAddr:  *listenFlag,
			Config:      cfg,
		}),
	)

	app.Run()
}
