package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/Dan0net/worldify-multiplayer/internal/client"
	"github.com/Dan0net/worldify-multiplayer/internal/client/connection"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "server base URL")
	bot := flag.Bool("bot", false, "run headless with scripted input")
	seed := flag.Int64("seed", time.Now().UnixNano(), "bot random seed")
	gridExtent := flag.Int("grid", 128, "build grid extent for the bot")
	debug := flag.Bool("debug", false, "verbose logging (headless mode only)")
	flag.Parse()

	if *bot {
		runBot(*serverURL, *seed, uint16(*gridExtent), *debug)
		return
	}
	runObserver(*serverURL)
}

func newManager(serverURL string, logger *zap.SugaredLogger) *connection.Manager {
	return connection.NewManager(connection.Config{
		BootstrapURL: serverURL,
		WSURL:        wsURL(serverURL),
	}, logger)
}

// wsURL derives the websocket endpoint from the HTTP base URL.
func wsURL(serverURL string) string {
	ws := strings.Replace(serverURL, "http://", "ws://", 1)
	ws = strings.Replace(ws, "https://", "wss://", 1)
	return strings.TrimSuffix(ws, "/") + "/ws"
}

// runObserver attaches the Bubble Tea observer. The loop pushes frames into
// the program; keys write into the shared control state.
func runObserver(serverURL string) {
	logger := zap.NewNop().Sugar() // stderr would tear the TUI

	mgr := newManager(serverURL, logger)
	controls := &client.ControlState{}

	var program *tea.Program
	loop := client.NewLoop(mgr, controls, func(v client.View) {
		program.Send(client.Frame(v))
	}, client.Options{}, logger)

	program = tea.NewProgram(client.NewModel(loop, controls), tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		program.Send(client.Done(loop.Run(ctx)))
	}()

	if _, err := program.Run(); err != nil {
		log.Fatal(err)
	}
}

// runBot joins with scripted input and no UI.
func runBot(serverURL string, seed int64, gridExtent uint16, debug bool) {
	var logger *zap.SugaredLogger
	if debug {
		l, err := zap.NewDevelopment()
		if err != nil {
			log.Fatal(err)
		}
		logger = l.Sugar()
	} else {
		logger = zap.NewNop().Sugar()
	}

	mgr := newManager(serverURL, logger)
	controls := &client.ControlState{}
	loop := client.NewLoop(mgr, controls, nil, client.Options{}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go client.NewBot(controls, loop, gridExtent, seed).Run(ctx)

	if err := loop.Run(ctx); err != nil && err != context.Canceled {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
