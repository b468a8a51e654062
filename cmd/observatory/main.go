package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	observatory "github.com/BerriAI/litellm-observatory"
	"github.com/BerriAI/litellm-observatory/gateway"
	"github.com/BerriAI/litellm-observatory/service/meta"
	"github.com/BerriAI/litellm-observatory/service/notifier"
	"github.com/BerriAI/litellm-observatory/service/notifier/slack"
	"github.com/BerriAI/litellm-observatory/service/secret"
	"github.com/viant/afs"
)

func main() {
	configURL := flag.String("config", "", "configuration location (any afs-supported URL); defaults apply when empty")
	listenAddr := flag.String("listen", "", "listen address override, e.g. :8000")
	traceFile := flag.String("trace", "", "trace output file; stdout when empty")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config := observatory.DefaultConfig()
	if *configURL != "" {
		var err error
		config, err = observatory.LoadConfig(ctx, meta.New(afs.New(), ""), *configURL)
		if err != nil {
			log.Fatalf("failed to load config %s: %v", *configURL, err)
		}
	}
	if *listenAddr != "" {
		config.HTTP.ListenAddr = *listenAddr
	}

	secrets := secret.New()
	apiKey, err := secrets.Resolve(ctx, &config.Auth)
	if err != nil {
		log.Fatalf("failed to resolve auth key: %v", err)
	}
	webhookURL, err := secrets.Resolve(ctx, &config.SlackWebhook)
	if err != nil {
		log.Fatalf("failed to resolve slack webhook: %v", err)
	}

	var sink notifier.Notifier = notifier.LogNotifier{}
	if webhookURL != "" {
		sink = slack.New(webhookURL)
	}

	service := observatory.New(
		observatory.WithConfig(config),
		observatory.WithNotifier(sink),
		observatory.WithTracing("litellm-observatory", "0.1.0", *traceFile),
	)

	server, err := gateway.New(service, apiKey, gateway.Config{ListenAddr: config.HTTP.ListenAddr})
	if err != nil {
		log.Fatalf("failed to create gateway: %v", err)
	}

	log.Printf("observatory listening on %s (max concurrent tests: %d)", config.HTTP.ListenAddr, config.MaxConcurrentTests)
	if err := server.Run(ctx); err != nil {
		log.Printf("gateway stopped: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := service.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
