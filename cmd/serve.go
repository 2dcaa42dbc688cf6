package cmd

import (
	"bitwise74/model-vault/app"
	"bitwise74/model-vault/db"
	"bitwise74/model-vault/internal"
	"bitwise74/model-vault/internal/service"
	"bitwise74/model-vault/pkg/util"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP API. Pending migrations are applied first.

When integrity.schedule is set the integrity check also runs in the
background on that cron schedule, for example "@every 6h" or "0 3 * * *".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := db.RequireMounted(viper.GetString("db.driver"), viper.GetString("db.dsn"), util.IsRunningInDocker())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return withDeps(ctx, func(d *internal.Deps) error {
				return serve(ctx, d)
			})
		},
	}
}

func serve(ctx context.Context, d *internal.Deps) error {
	if viper.GetString("app.log_level") != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	if spec := viper.GetString("integrity.schedule"); spec != "" {
		cr, err := service.ScheduleIntegrityCheck(ctx, spec, d.Checker)
		if err != nil {
			return err
		}

		// Runs after the server is down and before withDeps closes the database
		defer func() {
			<-cr.Stop().Done()
			zap.L().Debug("Scheduled integrity checks stopped")
		}()

		zap.L().Info("Integrity check scheduled", zap.String("schedule", spec))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", viper.GetInt("host.port")),
		Handler:           app.NewRouter(ctx, d),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		var err error

		if viper.GetBool("host.ssl.enabled") {
			zap.L().Info("Server starting with TLS", zap.String("addr", srv.Addr))
			err = srv.ListenAndServeTLS(
				viper.GetString("host.ssl.certificate_path"),
				viper.GetString("host.ssl.certificate_key_path"),
			)
		} else {
			zap.L().Info("Server starting", zap.String("addr", srv.Addr))
			err = srv.ListenAndServe()
		}

		errCh <- err
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped, %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down gracefully, %w", err)
	}

	return nil
}
