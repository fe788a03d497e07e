package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"

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

func main() {
	clock := clockwork.NewRealClock()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	build := version.Get()
	slog.Info("Viewer starting", "env", cfg.AppEnv, "version", build.Version, "commit", build.Commit)

	cipher := crypto.Cipher(crypto.Noop{})
	if cfg.TokenEncryptionKey != "" {
		cipher, err = crypto.NewAESGCM(cfg.TokenEncryptionKey)
		if err != nil {
			slog.Error("Failed to create token cipher", "error", err)
			os.Exit(1)
		}
	}
	snapshotStore := store.NewFileStore(cfg.SessionFile, cipher)

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
	orchestrator := app.NewOrchestrator(manager, streams, dispatcher, clipboard.Noop{}, clock)

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

	runViewerLoop(ctx, orchestrator, cfg.SupportAddress)
}

func runViewerLoop(ctx context.Context, orchestrator *app.Orchestrator, supportAddress string) {
	renderViewer(orchestrator, supportAddress)
	fmt.Println(`commands: login | logout | watch <playback-id> | status | quit`)

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
		case "watch":
			if err := orchestrator.Attach(argument); err != nil {
				fmt.Println("watch failed:", err)
				break
			}
		case "status":
		case "quit", "exit":
			return
		case "":
			continue
		default:
			fmt.Println("unknown command:", command)
			continue
		}
		renderViewer(orchestrator, supportAddress)
	}
}

func renderViewer(orchestrator *app.Orchestrator, supportAddress string) {
	view := orchestrator.RenderState()
	fmt.Println("view:", view)

	identity, signedIn := orchestrator.Identity()
	if signedIn {
		fmt.Printf("signed in as %s (%s)\n", identity.Name, domain.EllipsisAddress(identity.WalletAddress, 4))
	}

	watcher := orchestrator.Viewer()
	if !watcher.ShouldRenderPlayer() {
		return
	}
	fmt.Println("player:", watcher.PlaybackID())
	if signedIn && supportAddress != "" {
		fmt.Printf("chat: account=%s support=%s\n", identity.WalletAddress, supportAddress)
	}
}
