package main

import (
	"embed"
	"fmt"
	"log/slog"
	"os"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"echomic/internal/config"
	"echomic/internal/logging"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "echomic:", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(logging.Options{Dir: cfg.Log.Dir, Format: cfg.Log.Format, Level: cfg.Log.Level})
	if err != nil {
		fmt.Fprintln(os.Stderr, "echomic: log setup failed:", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	app := NewApp(cfg)

	err = wails.Run(&options.App{
		Title:     "echomic",
		Width:     480,
		Height:    640,
		MinWidth:  360,
		MinHeight: 480,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		BackgroundColour: &options.RGBA{R: 18, G: 18, B: 20, A: 1},
		OnStartup:        app.startup,
		OnShutdown:       app.shutdown,
		Bind: []any{
			app,
		},
	})
	if err != nil {
		slog.Error("[app] wails run failed", "error", err)
	}
}
