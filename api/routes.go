package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/credit-ledger/internal/handlers/v1/account"
	"github.com/carson-networks/credit-ledger/internal/handlers/v1/credit"
	"github.com/carson-networks/credit-ledger/internal/handlers/v1/status"
	"github.com/carson-networks/credit-ledger/internal/handlers/v1/sweep"
	"github.com/carson-networks/credit-ledger/internal/handlers/v1/transaction"
	"github.com/carson-networks/credit-ledger/internal/logging"
	"github.com/carson-networks/credit-ledger/internal/service"
	"github.com/carson-networks/credit-ledger/internal/sweeper"
)

const shutdownTimeout = 15 * time.Second

type Rest struct {
	Logger  *logrus.Logger
	Port    int
	Service *service.Service
	Sweeper *sweeper.Sweeper
	Clock   clockwork.Clock
}

// Handler returns the chi router with every route mounted.
func (r *Rest) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	statusHandler := status.NewHandler()
	router.HandleFunc("/status", logging.LoggingWrapper("Status", r.Logger, statusHandler.Handler))
	router.Handle("/metrics", promhttp.Handler())

	api := humachi.New(router, huma.DefaultConfig("Credit Ledger", "1.0.0"))
	api.UseMiddleware(logging.HumaMiddleware(r.Logger))

	credit.NewCreditHandler(r.Service.Balance).Register(api)
	credit.NewDebitHandler(r.Service.Balance).Register(api)
	account.NewGetBalanceHandler(r.Service.Balance).Register(api)
	account.NewListLotsHandler(r.Service.Balance).Register(api)
	transaction.NewListTransactionsHandler(r.Service.Transaction).Register(api)
	sweep.NewHandler(r.Sweeper, r.Clock).Register(api)

	return router
}

// Serve listens until ctx is cancelled, then drains in-flight requests.
func (r *Rest) Serve(ctx context.Context) error {
	server := http.Server{
		Addr:              ":" + strconv.Itoa(r.Port),
		Handler:           r.Handler(),
		ReadTimeout:       time.Duration(30) * time.Second,
		WriteTimeout:      time.Duration(30) * time.Second,
		IdleTimeout:       time.Duration(10) * time.Second,
		ReadHeaderTimeout: time.Duration(10) * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		r.Logger.WithField("port", r.Port).Info("HttpServer.Serve.listening")
		errChan <- server.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.Logger.WithError(err).Error("HttpServer.Serve.listen error")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	r.Logger.Info("HttpServer.Serve.shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
