// Command coordinator runs the quorum computation coordinator.
//
// The coordinator hosts the enclave engine behind the mail API: participants
// post signed requests to /mail and collect signed replies from /inbox.
//
// # Configuration File
//
// Create a YAML file with coordinator settings:
//
//	http_addr: ":8080"
//	signing_key: ""        # Hex-encoded, generates if empty
//	log:
//	  format: json
//	  level: info
//	engine:
//	  max_participants: 1024
//	  max_value_length: 4096
//	rate_limit:
//	  rps: 20
//	  burst: 40
//	inbox:
//	  backend: postgres    # memory or postgres
//	  postgres:
//	    host: localhost
//	    port: 5432
//	    user: quorum
//	    database: quorum
//	attestation:
//	  provider: tdx        # dummy, tdx or remote
//
// # HTTP Configuration Mode
//
// With --wait-config the coordinator starts a minimal HTTP server and waits
// for the configuration to be POSTed to /config, for TEE images configured
// after boot:
//
//	go run ./cmd/coordinator --wait-config --addr=:8080
//	curl -X POST http://localhost:8080/config --data-binary @coordinator.yaml
//
// # Usage
//
//	go run ./cmd/coordinator --config=coordinator.yaml
//	go run ./cmd/coordinator --addr=:8080 --attestation=dummy
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/flashbots/quorumcompute/api/httpserver"
	"github.com/flashbots/quorumcompute/cmd/common"
	"github.com/flashbots/quorumcompute/enclave"
	"github.com/flashbots/quorumcompute/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	var (
		configPath    = flag.String("config", "", "Path to YAML config file")
		waitConfig    = flag.Bool("wait-config", false, "Wait for config via HTTP POST to /config")
		addr          = flag.String("addr", ":8080", "HTTP listen address")
		attestation   = flag.String("attestation", "", "Attestation provider: dummy, tdx or remote")
		remoteTDXURL  = flag.String("tdx-url", "", "Remote TDX attestation service URL")
		signingKeyHex = flag.String("signing-key", "", "Ed25519 enclave signing key (hex, generates if empty)")
		logFormat     = flag.String("log-format", "", "Log format: text or json")
		logLevel      = flag.String("log-level", "", "Log level: debug, info, warn or error")
	)
	flag.Parse()

	isFlagSet := func(name string) bool {
		found := false
		flag.Visit(func(f *flag.Flag) {
			if f.Name == name {
				found = true
			}
		})
		return found
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg *common.Config
	var err error

	if *waitConfig {
		cfg, err = waitForConfig(ctx, *addr)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Println("Shutdown during config wait")
				return
			}
			fmt.Printf("Error waiting for config: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, err = loadConfiguration(*configPath)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	applyFlagOverrides(cfg, *addr, *attestation, *remoteTDXURL, *signingKeyHex,
		*logFormat, *logLevel, isFlagSet("addr"))

	if err := cfg.Validate(); err != nil {
		fmt.Printf("Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfiguration(configPath string) (*common.Config, error) {
	if configPath != "" {
		return common.LoadConfig(configPath)
	}
	return common.DefaultConfig(), nil
}

func applyFlagOverrides(cfg *common.Config, addr, attestation, remoteTDXURL, signingKeyHex,
	logFormat, logLevel string, addrExplicit bool) {

	if addrExplicit || cfg.HTTPAddr == "" {
		cfg.HTTPAddr = addr
	}
	if attestation != "" {
		cfg.Attestation.Provider = attestation
	}
	if remoteTDXURL != "" {
		cfg.Attestation.RemoteURL = remoteTDXURL
	}
	if signingKeyHex != "" {
		cfg.SigningKey = signingKeyHex
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
}

func waitForConfig(ctx context.Context, addr string) (*common.Config, error) {
	configCh := make(chan *common.Config, 1)
	errCh := make(chan error, 1)

	var configOnce sync.Once

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("waiting"))
	})

	r.Post("/config", func(w http.ResponseWriter, r *http.Request) {
		accepted := false
		configOnce.Do(func() {
			accepted = true
			cfg, err := common.ParseConfig(http.MaxBytesReader(w, r.Body, 1<<20))
			if err == nil {
				err = cfg.Validate()
			}
			if err != nil {
				errCh <- err
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			configCh <- cfg
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("configuration accepted"))
		})
		if !accepted {
			http.Error(w, "configuration already received", http.StatusConflict)
		}
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	go func() {
		fmt.Printf("Waiting for configuration on %s (POST /config)\n", addr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("config server: %w", err)
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errCh:
		return nil, err
	case cfg := <-configCh:
		fmt.Println("Configuration received, starting coordinator...")
		return cfg, nil
	}
}

func run(ctx context.Context, cfg *common.Config) error {
	log, err := common.NewLogger(cfg.Log, os.Stdout)
	if err != nil {
		return err
	}

	signingKey, err := common.LoadOrGenerateSigningKey(cfg.SigningKey)
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}

	provider, err := common.NewAttestationProvider(cfg.Attestation)
	if err != nil {
		return fmt.Errorf("attestation provider: %w", err)
	}

	inbox, closeInbox, err := common.NewInbox(cfg.Inbox)
	if err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	defer closeInbox()

	e := enclave.New(cfg.Engine, log.With("component", "enclave"))
	host, err := services.NewHTTPHost(cfg.HostConfig(log.With("component", "host")), e, inbox, signingKey, provider)
	if err != nil {
		return fmt.Errorf("create host: %w", err)
	}

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               cfg.HTTPAddr,
		EnablePprof:              cfg.Server.EnablePprof,
		Log:                      log,
		DrainDuration:            cfg.Server.DrainDuration,
		GracefulShutdownDuration: cfg.Server.GracefulShutdownDuration,
		ReadTimeout:              cfg.Server.ReadTimeout,
		WriteTimeout:             cfg.Server.WriteTimeout,
		RequestTimeout:           cfg.Server.RequestTimeout,
	}, host)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	info := host.EnclaveInfo()
	log.Info("Coordinator starting",
		"enclaveKey", info.PublicKey.String(),
		"attestation", info.AttestationType,
		"inbox", cfg.Inbox.Backend)

	srv.RunInBackground()
	<-ctx.Done()

	log.Info("Shutting down coordinator")
	srv.Shutdown()
	return nil
}
