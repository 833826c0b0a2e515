// Package sweep exposes an on-demand run of the expiration sweeper.
package sweep

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/jonboulle/clockwork"

	"github.com/carson-networks/credit-ledger/internal/handlers/v1/apierror"
	"github.com/carson-networks/credit-ledger/internal/logging"
)

// SweepBody is the request body for a sweep.
type SweepBody struct {
	AsOf string `json:"asOf,omitempty" format:"date-time" doc:"RFC3339 cutoff, defaults to now"`
}

type SweepInput struct {
	Body SweepBody
}

// SweepResponse reports how many lots the sweep lapsed.
type SweepResponse struct {
	Lapsed int `json:"lapsed" doc:"Lots lapsed by this run"`
}

type SweepOutput struct {
	Body SweepResponse
}

type sweeper interface {
	Sweep(ctx context.Context, asOf time.Time) (int, error)
}

// Handler handles POST /v1/admin/sweep.
type Handler struct {
	Sweeper sweeper
	Clock   clockwork.Clock
}

func NewHandler(s sweeper, clock clockwork.Clock) *Handler {
	return &Handler{Sweeper: s, Clock: clock}
}

func (h *Handler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "sweep-expired",
		Method:      http.MethodPost,
		Path:        "/v1/admin/sweep",
		Summary:     "Lapse expired credit",
		Description: "Lapses every lot at or past its expiration as of asOf across all accounts. Safe to repeat.",
		Tags:        []string{"Admin"},
	}, h.handle)
}

func (h *Handler) handle(ctx context.Context, input *SweepInput) (*SweepOutput, error) {
	logData := logging.GetLogData(ctx)

	asOf := h.Clock.Now()
	if input.Body.AsOf != "" {
		parsed, err := time.Parse(time.RFC3339, input.Body.AsOf)
		if err != nil {
			return nil, huma.NewError(http.StatusBadRequest, "invalid asOf", err)
		}
		asOf = parsed
	}

	var stopTimer func()
	if logData != nil {
		logData.AddData("asOf", asOf.UTC().Format(time.RFC3339))
		stopTimer = logData.AddTiming("sweepMs")
	}
	lapsed, err := h.Sweeper.Sweep(ctx, asOf)
	if stopTimer != nil {
		stopTimer()
	}
	if logData != nil {
		logData.AddData("lotsLapsed", lapsed)
	}
	if err != nil {
		return nil, apierror.From(err, "sweep did not finish")
	}

	return &SweepOutput{Body: SweepResponse{Lapsed: lapsed}}, nil
}
