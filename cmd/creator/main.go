package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blkluv/NFTVs/internal/app"
	"github.com/blkluv/NFTVs/internal/auth"
	"github.com/blkluv/NFTVs/internal/clipboard"
	"github.com/blkluv/NFTVs/internal/config"
	"github.com/blkluv/NFTVs/internal/crypto"
	"github.com/blkluv/NFTVs/internal/domain"
	"github.com/blkluv/NFTVs/internal/idp"
	"github.com/blkluv/NFTVs/internal/notify"
	"github.com/blkluv/NFTVs/internal/platform/logging"
	"github.com/blkluv/NFTVs/internal/platform/version"
	"github.com/blkluv/NFTVs/internal/store"
	"github.com/blkluv/NFTVs/internal/stream/livepeer"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupCipher(cfg *config.Config) crypto.Cipher {
	if cfg.TokenEncryptionKey == "" {
		return crypto.Noop{}
	}
	cipher, err := crypto.NewAESGCM(cfg.TokenEncryptionKey)
	if err != nil {
		slog.Error("Failed to create token cipher", "error", err)
		os.Exit(1)
	}
	return cipher
}

func setupStore(ctx context.Context, cfg *config.Config, cipher crypto.Cipher) (domain.SnapshotStore, func()) {
	if cfg.RedisURL != "" {
		client, err := store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		return store.NewRedisStore(client, cipher), func() { _ = client.Close() }
	}
	return store.NewFileStore(cfg.SessionFile, cipher), func() {}
}

func startMetrics(addr string) {
	if addr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(version.Get())
		})
		slog.Info("Metrics listener starting", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics listener error", "error", err)
		}
	}()
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	build := version.Get()
	slog.Info("Creator starting", "env", cfg.AppEnv, "version", build.Version, "commit", build.Commit)

	startMetrics(cfg.MetricsAddr)

	cipher := setupCipher(cfg)
	snapshotStore, closeStore := setupStore(context.Background(), cfg, cipher)
	defer closeStore()

	identityProvider, err := idp.New(idp.Config{
		ClientID:    cfg.AuthClientID,
		RedirectURI: cfg.AuthRedirectURI,
		Scope:       cfg.AuthScope,
		BaseURL:     cfg.AuthBaseURL,
	})
	if err != nil {
		slog.Error("Failed to create identity provider client", "error", err)
		os.Exit(1)
	}

	pushClient, err := notify.NewPushClient(notify.PushConfig{
		BaseURL:    cfg.PushBaseURL,
		ChannelKey: cfg.PushChannelKey,
	})
	if err != nil {
		slog.Error("Failed to create notification client", "error", err)
		os.Exit(1)
	}

	manager := auth.NewManager(identityProvider, snapshotStore, clock)
	streams := livepeer.New(livepeer.Config{APIKey: cfg.LivepeerAPIKey, BaseURL: cfg.LivepeerBaseURL})
	dispatcher := notify.NewDispatcher(pushClient, clock, cfg.PushChannel, cfg.PushRecipient)
	orchestrator := app.NewOrchestrator(manager, streams, dispatcher, clipboard.System{}, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")
		cancel()
		os.Exit(0)
	}()

	if err := orchestrator.Hydrate(ctx); err != nil {
		slog.Error("Hydration failed", "error", err)
	}

	runEventLoop(ctx, orchestrator)
}

func runEventLoop(ctx context.Context, orchestrator *app.Orchestrator) {
	render(orchestrator)
	fmt.Println(`commands: login | logout | create <name> | alert | copykey | reveal | status | quit`)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		command, argument, _ := strings.Cut(line, " ")

		switch command {
		case "login":
			if err := orchestrator.Login(ctx); err != nil {
				fmt.Println("login failed:", err)
			}
		case "logout":
			if err := orchestrator.Logout(ctx); err != nil {
				fmt.Println("logout failed:", err)
			}
		case "create":
			descriptor, err := orchestrator.CreateStream(ctx, argument)
			if err != nil {
				fmt.Println("create failed:", err)
				break
			}
			fmt.Printf("stream created: %s (playback id %s)\n", descriptor.Name, descriptor.PlaybackID)
		case "alert":
			if err := orchestrator.SendAlert(ctx); err != nil {
				fmt.Println("alert failed:", err)
			}
		case "copykey":
			if err := orchestrator.CopyStreamKey(); err != nil {
				fmt.Println("copy failed:", err)
			}
		case "reveal":
			status, ok := orchestrator.StreamStatus()
			if !ok || status.Descriptor.StreamKey == "" {
				fmt.Println("no stream key yet")
				break
			}
			fmt.Println("stream key:", status.Descriptor.StreamKey)
		case "status":
			render(orchestrator)
		case "quit", "exit":
			return
		case "":
		default:
			fmt.Println("unknown command:", command)
		}

		for _, s := range orchestrator.Statuses() {
			fmt.Println("*", s.Text)
		}
	}
}

func render(orchestrator *app.Orchestrator) {
	view := orchestrator.RenderState()
	fmt.Println("view:", view)

	if identity, ok := orchestrator.Identity(); ok {
		fmt.Printf("signed in as %s (%s)\n", identity.Name, domain.EllipsisAddress(identity.WalletAddress, 4))
	}
	if status, ok := orchestrator.StreamStatus(); ok {
		fmt.Println("stream:", status.Phase)
		if status.Err != nil {
			fmt.Println("stream error:", status.Err)
		}
	}
}
