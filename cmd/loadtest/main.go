// loadtest floods a server with bot clients to exercise the tick loop, the
// build sequencer, and the per-client send queues under churn.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Dan0net/worldify-multiplayer/internal/client"
	"github.com/Dan0net/worldify-multiplayer/internal/client/connection"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "server base URL")
	count := flag.Int("n", 8, "number of bot clients")
	duration := flag.Duration("for", 30*time.Second, "how long to run")
	gridExtent := flag.Int("grid", 128, "build grid extent")
	flag.Parse()

	logger := zap.NewNop().Sugar()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, timeout := context.WithTimeout(ctx, *duration)
	defer timeout()

	var joined, failed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < *count; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()

			mgr := connection.NewManager(connection.Config{
				BootstrapURL: *serverURL,
				WSURL:        wsURL(*serverURL),
			}, logger)
			controls := &client.ControlState{}
			loop := client.NewLoop(mgr, controls, nil, client.Options{}, logger)
			go client.NewBot(controls, loop, uint16(*gridExtent), seed).Run(ctx)

			joined.Add(1)
			if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
				joined.Add(-1)
				failed.Add(1)
			}
		}(int64(i) + 1)

		// Stagger joins so the room sees churn, not a thundering herd.
		select {
		case <-ctx.Done():
		case <-time.After(50 * time.Millisecond):
		}
	}
	wg.Wait()

	fmt.Printf("bots: %d joined, %d failed\n", joined.Load(), failed.Load())
	if failed.Load() > 0 {
		os.Exit(1)
	}
}

func wsURL(serverURL string) string {
	ws := serverURL
	if len(ws) > 0 && ws[len(ws)-1] == '/' {
		ws = ws[:len(ws)-1]
	}
	if len(ws) > 8 && ws[:8] == "https://" {
		return "wss://" + ws[8:] + "/ws"
	}
	if len(ws) > 7 && ws[:7] == "http://" {
		return "ws://" + ws[7:] + "/ws"
	}
	return ws + "/ws"
}
