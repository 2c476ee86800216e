package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Yath-MCA/ayaz-home-security/internal/activity"
	internalapp "github.com/Yath-MCA/ayaz-home-security/internal/app"
	"github.com/Yath-MCA/ayaz-home-security/internal/device"
	internallogger "github.com/Yath-MCA/ayaz-home-security/internal/logger"
	internalhttp "github.com/Yath-MCA/ayaz-home-security/internal/server/http"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "configs/coordinator/config.json", "Path to configuration file")
}

func main() {
	flag.Parse()

	config, err := LoadConfig(configFile)
	if err != nil {
		fmt.Println("Error loading config: ", err)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	logg := internallogger.New(config.Logger.Level, nil)

	if config.AdminToken == "" {
		logg.Warn("admin token not configured; POST /admin/active will refuse all calls")
	}
	if config.DeviceToken == "" {
		logg.Warn("device token not configured; POST /pi/stream will refuse all calls")
	}

	gate := activity.New(config.DefaultActive)
	stream := device.NewStream()
	app := internalapp.New(logg.With("component", "app"), gate, stream,
		config.AdminToken, config.DeviceToken)

	server := internalhttp.New(logg.With("component", "http"), app, config.Host, config.Port)

	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			logg.Error("failed to stop http server: " + err.Error())
		}
	}()

	logg.Info(fmt.Sprintf("Signaling coordinator listening on port: %d", config.Port))

	if err := server.Start(ctx); err != nil {
		logg.Error("failed to start http server: " + err.Error())
		cancel()
		os.Exit(1) //nolint:gocritic
	}
}
