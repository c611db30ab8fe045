package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimda/waxmpp/internal/api"
	"github.com/nimda/waxmpp/internal/core"
	"github.com/nimda/waxmpp/internal/encryption"
	"github.com/nimda/waxmpp/internal/interfaces"
	"github.com/nimda/waxmpp/pkg/walog"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	debugMode bool
	traceMode bool

	flagMSISDN        string
	flagPassword      string
	flagHost          string
	flagPort          int
	flagChallengeFile string
	flagEncrypted     bool
	flagMetrics       bool
)

var rootCmd = &cobra.Command{
	Use:   "waxmpp-client",
	Short: "WAXMPP reference client",
	Long:  "A reference client for the WAXMPP binary protocol: connects, logs in, and listens for or sends messages.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if traceMode {
			level = zerolog.TraceLevel
		} else if debugMode {
			level = zerolog.DebugLevel
		}
		walog.Setup(level)
	},
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Connect, log in, and print every event received",
	Run:   runListen,
}

var sendCmd = &cobra.Command{
	Use:   "send [to] [text]",
	Short: "Connect, log in, send one text message, then disconnect",
	Args:  cobra.ExactArgs(2),
	Run:   runSend,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&traceMode, "trace", false, "Enable trace logging")
	rootCmd.PersistentFlags().StringVar(&flagMSISDN, "msisdn", "", "Account phone number")
	rootCmd.PersistentFlags().StringVar(&flagPassword, "password", "", "Base64-decoded account password")
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "s.whatsapp.net", "Server hostname")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 443, "Server port")
	rootCmd.PersistentFlags().StringVar(&flagChallengeFile, "challenge-file", "waxmpp.challenge", "Cached-challenge file path")
	rootCmd.PersistentFlags().BoolVar(&flagEncrypted, "encrypted", false, "Wire the Signal/Axolotl encryption bridge")
	rootCmd.PersistentFlags().BoolVar(&flagMetrics, "metrics", false, "Expose Prometheus metrics on :9090/metrics")

	if err := rootCmd.MarkPersistentFlagRequired("msisdn"); err != nil {
		zlog.Fatal().Err(err).Msg("failed to mark msisdn flag required")
	}
	if err := rootCmd.MarkPersistentFlagRequired("password"); err != nil {
		zlog.Fatal().Err(err).Msg("failed to mark password flag required")
	}

	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(sendCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildSurface(ctx context.Context) (*api.ApiSurface, error) {
	cfg := interfaces.Apply(
		interfaces.WithCredentials(flagMSISDN, []byte(flagPassword)),
		interfaces.WithServer(flagHost, flagPort),
		interfaces.WithChallengeFile(flagChallengeFile),
	)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	session := core.NewSessionStateMachine(cfg, core.DefaultDictionary)
	if flagMetrics {
		session.SetMetrics(interfaces.NewPrometheusMetrics(newRegisterer()))
	}

	surface := api.NewApiSurface(session, nil, nil)
	if flagEncrypted {
		ks := encryption.NewMemoryKeyStore()
		bridge := encryption.NewBridge(ks, session)
		surface.SetEncryptionBridge(bridge)
	}
	return surface, nil
}

func runListen(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	surface, err := buildSurface(ctx)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to build client")
	}
	surface.OnEvent(logEvent)

	if err := surface.Connect(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("connect failed")
	}
	walog.Milestone().Msg("connecting")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	walog.Milestone().Msg("shutting down")
	if err := surface.Close(); err != nil {
		zlog.Error().Err(err).Msg("error during shutdown")
	}
}

func runSend(cmd *cobra.Command, args []string) {
	to, text := args[0], args[1]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	surface, err := buildSurface(ctx)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to build client")
	}

	loggedIn := make(chan struct{})
	surface.OnEvent(func(e core.Event) {
		logEvent(e)
		if e.Kind == core.EventLogin {
			close(loggedIn)
		}
	})

	if err := surface.Connect(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("connect failed")
	}

	select {
	case <-loggedIn:
	case <-ctx.Done():
		zlog.Fatal().Msg("timed out waiting for login")
	}

	id, err := surface.SendText(to, text)
	if err != nil {
		zlog.Fatal().Err(err).Msg("send failed")
	}
	walog.Milestone().Str("id", id).Str("to", to).Msg("sent")

	if err := surface.Close(); err != nil {
		zlog.Error().Err(err).Msg("error during shutdown")
	}
}

func logEvent(e core.Event) {
	switch e.Kind {
	case core.EventLogin:
		walog.Milestone().Msg("logged in")
	case core.EventLoginFailed:
		walog.Milestone().Err(e.Err).Msg("login failed")
	case core.EventDisconnected:
		walog.Milestone().Msg("disconnected")
	case core.EventReceivedText:
		walog.Info().Str("from", e.Text.From).Str("body", e.Text.Body).Msg("text received")
	case core.EventReceivedImage, core.EventReceivedVideo, core.EventReceivedAudio:
		walog.Info().Str("from", e.Media.From).Str("url", e.Media.URL).Msg("media received")
	case core.EventReceivedLocation:
		walog.Info().Str("from", e.Location.From).Float64("lat", e.Location.Latitude).Float64("lng", e.Location.Longitude).Msg("location received")
	case core.EventTyping:
		walog.Debug().Str("from", e.Typing.From).Bool("composing", e.Typing.Composing).Msg("typing")
	case core.EventPresence:
		walog.Debug().Str("from", e.Presence.From).Bool("available", e.Presence.Available).Msg("presence")
	case core.EventClientReceived:
		walog.Debug().Str("id", e.ClientReceived.ID).Msg("message delivered")
	default:
		walog.Trace().Int("kind", int(e.Kind)).Msg("event")
	}
}
