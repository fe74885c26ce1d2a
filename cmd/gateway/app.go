package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"tggate/internal/httpapi"
	"tggate/internal/hub"
	"tggate/internal/telegram"
)

const (
	envConfigFile = "GATEWAY_CONFIG_FILE"
	envAPIID      = "TG_API_ID"
	envAPIHash    = "TG_API_HASH"
	envPhone      = "TG_PHONE"

	defaultConfigFilePath   = "config/gateway.json"
	alternateConfigFilePath = "bin/config/gateway.json"

	defaultListenAddr      = ":8080"
	defaultSessionDir      = "sessions"
	defaultShutdownTimeout = 10 * time.Second
	defaultPingInterval    = 30 * time.Second
	defaultSendBuffer      = 64
)

type appConfig struct {
	logLevel slog.Level

	listenAddr string
	sessionDir string

	apiID   int
	apiHash string
	phone   string

	shutdownTimeout time.Duration
	pingInterval    time.Duration
	sendBuffer      int

	// autoConnect restores a stored session at boot instead of waiting for
	// the first auth request.
	autoConnect bool
}

type fileConfig struct {
	LogLevel string         `json:"log_level"`
	Listen   string         `json:"listen"`
	Session  fileSession    `json:"session"`
	Telegram fileTelegram   `json:"telegram"`
	Feed     fileFeedConfig `json:"feed"`

	ShutdownTimeout string `json:"shutdown_timeout"`
}

type fileSession struct {
	Dir         string `json:"dir"`
	AutoConnect *bool  `json:"auto_connect"`
}

type fileTelegram struct {
	APIID   int    `json:"api_id"`
	APIHash string `json:"api_hash"`
	Phone   string `json:"phone"`
}

type fileFeedConfig struct {
	PingInterval string `json:"ping_interval"`
	SendBuffer   *int   `json:"send_buffer"`
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))

	store := telegram.NewPeerStore()
	feed := hub.New(
		hub.WithLogger(logger),
		hub.WithPingInterval(cfg.pingInterval),
		hub.WithSendBuffer(cfg.sendBuffer),
	)
	defer feed.Close()

	subscriber, err := telegram.NewSubscriber(store, feed, logger)
	if err != nil {
		return fmt.Errorf("new subscriber: %w", err)
	}

	session, err := telegram.NewSession(telegram.SessionConfig{
		APIID:         cfg.apiID,
		APIHash:       cfg.apiHash,
		Phone:         cfg.phone,
		SessionDir:    cfg.sessionDir,
		UpdateHandler: subscriber.Handler(),
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("new session: %w", err)
	}
	defer session.Disconnect()

	gateway, err := telegram.NewGateway(session, store, logger)
	if err != nil {
		return fmt.Errorf("new gateway: %w", err)
	}

	server, err := httpapi.NewServer(session, gateway, feed, logger)
	if err != nil {
		return fmt.Errorf("new http server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.autoConnect {
		if err := session.Start(ctx); err != nil {
			logger.Warn("session auto-connect failed, waiting for auth request", "error", err)
		}
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(cfg.listenAddr)
	}()
	logger.Info("gateway listening", slog.String("addr", cfg.listenAddr))

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func loadConfig() (appConfig, error) {
	cfg := defaultAppConfig()

	configFile, err := resolveConfigFilePath()
	if err != nil {
		return appConfig{}, err
	}
	if configFile != "" {
		if err := applyConfigFile(&cfg, configFile); err != nil {
			return appConfig{}, err
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return appConfig{}, err
	}

	if cfg.apiID == 0 || cfg.apiHash == "" || cfg.phone == "" {
		return appConfig{}, fmt.Errorf(
			"telegram credentials are required; set telegram.api_id, telegram.api_hash and telegram.phone in the config file, or %s, %s and %s",
			envAPIID, envAPIHash, envPhone,
		)
	}
	return cfg, nil
}

// resolveConfigFilePath finds the config file, if any. A missing file is not
// an error because the credentials can arrive entirely via environment.
func resolveConfigFilePath() (string, error) {
	if configFile := strings.TrimSpace(os.Getenv(envConfigFile)); configFile != "" {
		return configFile, nil
	}

	for _, candidate := range []string{defaultConfigFilePath, alternateConfigFilePath} {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config file %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}
	return "", nil
}

func defaultAppConfig() appConfig {
	return appConfig{
		logLevel:        slog.LevelInfo,
		listenAddr:      defaultListenAddr,
		sessionDir:      defaultSessionDir,
		shutdownTimeout: defaultShutdownTimeout,
		pingInterval:    defaultPingInterval,
		sendBuffer:      defaultSendBuffer,
		autoConnect:     true,
	}
}

func applyConfigFile(cfg *appConfig, path string) error {
	if cfg == nil {
		return fmt.Errorf("apply config file: nil config")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}
	if listen := strings.TrimSpace(parsed.Listen); listen != "" {
		cfg.listenAddr = listen
	}
	if dir := strings.TrimSpace(parsed.Session.Dir); dir != "" {
		cfg.sessionDir = dir
	}
	if parsed.Session.AutoConnect != nil {
		cfg.autoConnect = *parsed.Session.AutoConnect
	}

	if parsed.Telegram.APIID != 0 {
		cfg.apiID = parsed.Telegram.APIID
	}
	if hash := strings.TrimSpace(parsed.Telegram.APIHash); hash != "" {
		cfg.apiHash = hash
	}
	if phone := strings.TrimSpace(parsed.Telegram.Phone); phone != "" {
		cfg.phone = phone
	}

	if rawTimeout := strings.TrimSpace(parsed.ShutdownTimeout); rawTimeout != "" {
		timeout, err := time.ParseDuration(rawTimeout)
		if err != nil {
			return fmt.Errorf("parse shutdown_timeout: %w", err)
		}
		if timeout <= 0 {
			return fmt.Errorf("parse shutdown_timeout: must be > 0")
		}
		cfg.shutdownTimeout = timeout
	}
	if rawInterval := strings.TrimSpace(parsed.Feed.PingInterval); rawInterval != "" {
		interval, err := time.ParseDuration(rawInterval)
		if err != nil {
			return fmt.Errorf("parse feed.ping_interval: %w", err)
		}
		if interval <= 0 {
			return fmt.Errorf("parse feed.ping_interval: must be > 0")
		}
		cfg.pingInterval = interval
	}
	if parsed.Feed.SendBuffer != nil {
		if *parsed.Feed.SendBuffer <= 0 {
			return fmt.Errorf("parse feed.send_buffer: must be > 0")
		}
		cfg.sendBuffer = *parsed.Feed.SendBuffer
	}

	return nil
}

func applyEnvOverrides(cfg *appConfig) error {
	if raw := strings.TrimSpace(os.Getenv(envAPIID)); raw != "" {
		apiID, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envAPIID, err)
		}
		cfg.apiID = apiID
	}
	if hash := strings.TrimSpace(os.Getenv(envAPIHash)); hash != "" {
		cfg.apiHash = hash
	}
	if phone := strings.TrimSpace(os.Getenv(envPhone)); phone != "" {
		cfg.phone = phone
	}
	return nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", raw)
	}
}
