package orderserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	ordersapp "github.com/Apurer/costume-order-engine/internal/domains/orders/application"
	orderdomain "github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	apierrors "github.com/Apurer/costume-order-engine/internal/shared/errors"
)

var responder = apierrors.NewChainedResponder("", mapOrderError)

func respondProblem(c *gin.Context, problem apierrors.ProblemDetail) {
	responder.Respond(c, problem)
}

// respondError answers request-level failures that never reached the application.
func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		return
	}
	switch status {
	case http.StatusBadRequest:
		respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
	case http.StatusNotFound:
		respondProblem(c, apierrors.ErrNotFound.WithDetail(err.Error()))
	default:
		respondProblem(c, apierrors.ErrInternal.WithDetail(err.Error()))
	}
}

func respondServiceError(c *gin.Context, err error) {
	responder.RespondError(c, err)
}

// mapOrderError translates application errors into problem responses.
func mapOrderError(err error) (apierrors.ProblemDetail, bool) {
	var (
		guard   *ordersapp.TransitionGuardViolation
		write   *ordersapp.TransitionWriteError
		handoff *ordersapp.LogisticsHandoffError
		fetch   *ordersapp.SourceFetchError
		partial *ordersapp.PartialMergeWarning
	)
	switch {
	case errors.Is(err, ordersapp.ErrInvalidInput):
		return apierrors.ErrValidation.WithDetail(err.Error()), true
	case errors.Is(err, ordersapp.ErrOrderNotFound):
		return apierrors.ErrNotFound.WithDetail(err.Error()), true
	case errors.As(err, &guard):
		reason := "transition_not_allowed"
		if errors.Is(err, ordersapp.ErrPaymentRequired) {
			reason = "payment_required"
		}
		return apierrors.ErrConflict.
			WithDetail(err.Error()).
			WithExtension("reason", reason).
			WithExtension("status", string(guard.From)), true
	case errors.As(err, &handoff):
		return apierrors.ErrBadGateway.WithDetail(err.Error()).WithExtension("collaborator", "logistics").AsRetryable(), true
	case errors.As(err, &write):
		return apierrors.ErrBadGateway.WithDetail(err.Error()).WithExtension("collaborator", "orders").AsRetryable(), true
	case errors.As(err, &partial):
		return apierrors.ErrUnavailable.WithDetail(err.Error()).WithExtension("sources", sourceNames(partial)).AsRetryable(), true
	case errors.As(err, &fetch):
		return apierrors.ErrUnavailable.WithDetail(err.Error()).WithExtension("sources", string(fetch.Source)).AsRetryable(), true
	case errors.Is(err, orderdomain.ErrTransitionNotAllowed):
		return apierrors.ErrConflict.WithDetail(err.Error()), true
	}
	return apierrors.ProblemDetail{}, false
}

func sourceNames(partial *ordersapp.PartialMergeWarning) string {
	names := make([]string, 0, len(partial.Failed))
	for _, src := range partial.Failed {
		names = append(names, string(src))
	}
	return strings.Join(names, ",")
}
