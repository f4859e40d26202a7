// Command devnetd bootstraps the device-facing protocol listener and the
// operator-facing HTTP admin surface in one process, grounded in the
// teacher's cmd/azurl flag-based bootstrap and original_source/src/main.rs's
// config → store → serve → web startup order.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/riftlabs/devnet"
	"github.com/riftlabs/devnet/httpapi"
	"github.com/riftlabs/devnet/store"
)

func main() {
	var (
		listenAddr = flag.String("listen", devnet.DefaultListenAddr, "address the device protocol listener binds")
		httpAddr   = flag.String("http", "0.0.0.0:3656", "address the admin HTTP API binds")
		dbPath     = flag.String("db", "./data/data.db", "path to the sqlite database file")
		logLevel   = flag.String("log-level", "info", "logrus level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.WithError(err).Fatal("invalid -log-level")
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := os.MkdirAll("./data", 0o755); err != nil {
		logrus.WithError(err).Fatal("failed to create data directory")
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open store")
	}
	defer st.Close()

	dispatch := buildDispatch(st)
	cfg := devnet.ApplyOptions(devnet.WithListenAddr(*listenAddr))

	listener, err := devnet.Listen(cfg, st, dispatch)
	if err != nil {
		logrus.WithError(err).Fatal("failed to bind device listener")
	}
	logrus.WithField("addr", listener.Addr().String()).Info("device listener bound")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := listener.Serve(ctx); err != nil && ctx.Err() == nil {
			logrus.WithError(err).Error("device listener stopped")
		}
	}()

	httpSrv := &http.Server{
		Addr:    *httpAddr,
		Handler: httpapi.NewRouter(st, listener.Registry()),
	}
	go func() {
		logrus.WithField("addr", *httpAddr).Info("admin HTTP API listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("admin HTTP API stopped")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = listener.Close()
}
