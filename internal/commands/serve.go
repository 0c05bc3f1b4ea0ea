package commands

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pliu/hush/internal/auth"
	"github.com/pliu/hush/internal/config"
	"github.com/pliu/hush/internal/crypto"
	"github.com/pliu/hush/internal/handlers"
	"github.com/pliu/hush/internal/messages"
	"github.com/pliu/hush/internal/room"
	"github.com/pliu/hush/internal/store/sqlstore"
	"github.com/pliu/hush/internal/ws"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		flags      config.Config
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the room server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fs := cmd.Flags()
			if fs.Changed("addr") {
				cfg.Addr = flags.Addr
			}
			if fs.Changed("driver") {
				cfg.Driver = flags.Driver
			}
			if fs.Changed("dsn") {
				cfg.DSN = flags.DSN
			}
			if fs.Changed("room-ttl") {
				cfg.RoomTTL = flags.RoomTTL
			}
			if fs.Changed("strict-admission") {
				cfg.StrictAdmission = flags.StrictAdmission
			}
			if fs.Changed("secure-cookies") {
				cfg.SecureCookies = flags.SecureCookies
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	def := config.Default()
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	cmd.Flags().StringVar(&flags.Addr, "addr", def.Addr, "http service address")
	cmd.Flags().StringVar(&flags.Driver, "driver", def.Driver, "database driver (sqlite3 or postgres)")
	cmd.Flags().StringVar(&flags.DSN, "dsn", def.DSN, "database connection string")
	cmd.Flags().DurationVar(&flags.RoomTTL, "room-ttl", def.RoomTTL, "lifetime of a non-privileged room")
	cmd.Flags().BoolVar(&flags.StrictAdmission, "strict-admission", false, "enforce room capacity atomically")
	cmd.Flags().BoolVar(&flags.SecureCookies, "secure-cookies", false, "mark membership cookies Secure")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if cfg.CookieSecret == "" {
		secret, err := crypto.GenerateSecret()
		if err != nil {
			return err
		}
		cfg.CookieSecret = secret
		log.Println("No cookie secret configured; memberships will not survive a restart")
	}
	auth.SecretKey = []byte(cfg.CookieSecret)
	if cfg.MasterPasscode == "" {
		log.Println("No master passcode configured; privileged rooms are disabled")
	}

	// Initialize Database
	st, err := sqlstore.New(cfg.Driver, cfg.DSN)
	if err != nil {
		return err
	}
	defer st.Close()

	// Initialize WebSocket Hub
	hub := ws.NewHub()
	go hub.Run(ctx)
	go room.Sweep(ctx, st, cfg.SweepInterval)

	r := handlers.NewRouter(handlers.Deps{
		Rooms: room.New(st, hub, room.Config{
			TTL:             cfg.RoomTTL,
			MasterPasscode:  cfg.MasterPasscode,
			StrictAdmission: cfg.StrictAdmission,
		}),
		Log:           messages.New(st, hub),
		Hub:           hub,
		SecureCookies: cfg.SecureCookies,
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	errc := make(chan error, 1)
	go func() {
		log.Println("Starting server on", cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Println("Server stopped")
	return nil
}
