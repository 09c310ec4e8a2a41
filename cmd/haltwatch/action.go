package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rickgao/haltwatch/internal/api"
	"github.com/rickgao/haltwatch/internal/dispatch"
	"github.com/rickgao/haltwatch/internal/model"
	"github.com/rickgao/haltwatch/internal/reconcile"
)

// maxMutationBody bounds a POST /halts/action request.
const maxMutationBody = 1 << 20

type mutationSubmitter interface {
	Submit(ctx context.Context, endpoint string, m model.Mutation) (dispatch.Result, error)
}

// newDispatcher builds the dispatcher from the dispatch config section.
func newDispatcher(a *app) *dispatch.Dispatcher {
	return dispatch.New(a.client, dispatch.Config{
		MaxRetries: a.cfg.Dispatch.MaxRetries,
		BaseDelay:  a.cfg.Dispatch.BaseDelay,
		RateLimit:  a.cfg.Dispatch.RateLimit,
		Breaker:    a.cfg.Dispatch.Breaker,
	},
		dispatch.WithSession(a.session),
		dispatch.WithLogger(a.logger),
	)
}

// newMutationHandler serves POST /halts/action. The body is a full halt
// record plus an action. After the server accepts it, the record is written
// provisionally into the store so /halts reflects it before the stream
// event arrives; the event then supersedes it.
func newMutationHandler(d mutationSubmitter, store *reconcile.Store, endpoint string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m model.Mutation
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMutationBody)).Decode(&m); err != nil {
			http.Error(w, "invalid mutation body: "+err.Error(), http.StatusBadRequest)
			return
		}
		m.Symbol = model.NormalizeSymbol(m.Symbol)

		res, err := d.Submit(r.Context(), endpoint, m)
		if err != nil {
			writeSubmitError(w, err, logger)
			return
		}

		// Cancellations remove the record; leave that to the stream event.
		if m.HaltID != "" && !m.Action.IsCancel() {
			if !store.Provisional(m.HaltRecord) {
				logger.Debug("no local record for provisional write", "halt_id", m.HaltID)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := writeResult(w, res); err != nil {
			logger.Debug("write mutation response", "error", err)
		}
	})
}

// writeSubmitError maps dispatch failures onto HTTP statuses: invalid input
// is 400, a server rejection keeps its status, anything else is 502.
func writeSubmitError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var apiErr *api.APIError
	switch {
	case errors.Is(err, dispatch.ErrInvalidMutation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &apiErr):
		http.Error(w, apiErr.Message, apiErr.StatusCode)
	case errors.Is(err, context.Canceled):
		// Client went away.
	default:
		logger.Warn("mutation failed", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}
