package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"taskdesk/config"
	"taskdesk/obs"
)

func main() {
	shutdownObs, logger := obs.Init("taskdesk")
	defer func() { _ = shutdownObs(context.Background()) }()

	ctx, cancel := signalContext()
	defer cancel()

	root, opts := newRootCommand(logger)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		if opts.app != nil {
			opts.app.Close()
		}
		os.Exit(1)
	}
}

func newRootCommand(logger *slog.Logger) (*cobra.Command, *rootOptions) {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "taskdesk",
		Short:         "论文降重 / 范文生成 命令行客户端",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(opts.EnvFile)
			if opts.APIBase != "" {
				cfg.APIBase = opts.APIBase
			}
			a, err := newApp(cfg, logger, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			opts.app = a
			if cfg.MetricsAddr != "" {
				go serveMetrics(cfg.MetricsAddr)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.app != nil {
				opts.app.Close()
			}
		},
	}
	opts.AddFlags(root.PersistentFlags())

	root.AddCommand(
		newSendCodeCommand(opts),
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newProfileCommand(opts),
		newWhoamiCommand(opts),
		newPointsCommand(opts),
		newOrderCommand(opts),
		newTasksCommand(opts),
		newRechargeCommand(opts),
		newPaymentCommand(opts),
	)

	return root, opts
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(mux, "taskdesk-metrics"),
		ReadHeaderTimeout: 3 * time.Second,
	}
	_ = srv.ListenAndServe()
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
		// second signal: hard exit
		select {
		case <-ch:
			os.Exit(1)
		case <-time.After(5 * time.Second):
		}
	}()
	return ctx, cancel
}
