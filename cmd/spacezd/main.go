package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DavaToros/SpaceZ/server"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var addr string

func init() {
	flag.StringVar(&addr, "addr", ":8086", "listen address")
}

func main() {
	flag.Parse()
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stdout))
	logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)
	srv, err := server.New(logger)
	if err != nil {
		level.Error(logger).Log("subsys", "main", "err", err)
		os.Exit(1)
	}
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	level.Info(logger).Log("subsys", "main", "listening", addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		level.Error(logger).Log("subsys", "main", "err", err)
		os.Exit(1)
	}
	srv.Wait()
	level.Info(logger).Log("subsys", "main", "status", "stopped")
}
