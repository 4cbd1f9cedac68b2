package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/leighmacdonald/tf-world/internal/config"
	"github.com/leighmacdonald/tf-world/internal/tf/console"
	"github.com/leighmacdonald/tf-world/internal/tf/rcon"
	"github.com/leighmacdonald/tf-world/internal/world"
	"golang.org/x/sync/errgroup"
)

// App wires the console sources to the world and drives the owner loop. The
// world itself is only ever touched from Start's goroutine; the sources hand
// their output over through the chunks channel.
type App struct {
	config        config.Config
	world         *world.World
	chunks        chan string
	configUpdates chan config.Config
}

func NewApp(conf config.Config, tracked *world.World, configUpdates chan config.Config) *App {
	return &App{
		config:        conf,
		world:         tracked,
		chunks:        make(chan string, 64),
		configUpdates: configUpdates,
	}
}

// chunkReceiver adapts the console source and rcon poller callbacks onto the
// chunks channel so all world access stays on the owner goroutine.
type chunkReceiver struct {
	chunks chan<- string
}

func (r chunkReceiver) AddConsoleOutputLine(line string) {
	r.chunks <- line + "\n"
}

func (r chunkReceiver) AddConsoleOutputChunk(chunk string) {
	r.chunks <- chunk
}

// Start brings up the log sources and runs the main event loop until the
// context is cancelled.
func (app *App) Start(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	receiver := chunkReceiver{chunks: app.chunks}

	local := console.NewLocal(app.config.ConsoleLogPath)
	if errOpen := local.Open(); errOpen != nil {
		slog.Warn("Failed to open console file", slog.String("error", errOpen.Error()),
			slog.String("path", app.config.ConsoleLogPath))
	} else {
		group.Go(func() error {
			local.Start(ctx, receiver)

			return nil
		})
	}

	// The rcon poller replays status output the user never typed themselves.
	if app.config.Password != "" {
		poller := rcon.NewPoller(rcon.New(app.config.Address, app.config.Password), app.config.UpdateFreq())
		group.Go(func() error {
			poller.Start(ctx, receiver)

			return nil
		})
	}

	group.Go(func() error {
		app.loop(ctx)

		return nil
	})

	return group.Wait()
}

// loop is the world owner goroutine.
func (app *App) loop(ctx context.Context) {
	ticker := time.NewTicker(app.config.UpdateFreq())
	defer ticker.Stop()

	for {
		select {
		case chunk := <-app.chunks:
			app.world.AddConsoleOutputChunk(chunk)
		case <-ticker.C:
			app.world.Update(ctx)
		case conf := <-app.configUpdates:
			app.onConfigChange(conf)
		case <-ctx.Done():
			return
		}
	}
}

func (app *App) onConfigChange(conf config.Config) {
	slog.Info("Config reloaded")

	if conf.SteamAPIKey != app.config.SteamAPIKey {
		app.world.SetClient(newAPIClient(conf))
	}

	app.config = conf
}
