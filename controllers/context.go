package controllers

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/dluxio/hiveonboard/channel"
	"github.com/dluxio/hiveonboard/config"
	"github.com/dluxio/hiveonboard/consolidation"
	"github.com/dluxio/hiveonboard/httpserverutils"
	"github.com/dluxio/hiveonboard/monitor"
	"github.com/dluxio/hiveonboard/notifications"
	"github.com/dluxio/hiveonboard/orchestrator"
	"github.com/dluxio/hiveonboard/pricing"
	"github.com/dluxio/hiveonboard/rccost"
)

// Services bundles everything the route handlers touch.
type Services struct {
	Config        *config.Config
	Engine        *channel.Engine
	Monitor       *monitor.Monitor
	Orchestrator  *orchestrator.Orchestrator
	Oracle        *pricing.Oracle
	RCTracker     *rccost.Tracker
	Consolidation *consolidation.Manager
	Notifier      *notifications.Manager
	Hub           *notifications.Hub
}

// clientErrors maps typed domain failures to their HTTP status; anything not
// listed is an internal error.
var clientErrors = map[error]int{
	channel.ErrInvalidRequest:        http.StatusBadRequest,
	channel.ErrCurrencyNotSupported:  http.StatusBadRequest,
	channel.ErrAccountExists:         http.StatusConflict,
	channel.ErrActiveChannelExists:   http.StatusConflict,
	channel.ErrChannelNotFound:       http.StatusNotFound,
	monitor.ErrWrongRecipient:        http.StatusBadRequest,
	monitor.ErrBelowDust:             http.StatusBadRequest,
	monitor.ErrInsufficientAmount:    http.StatusBadRequest,
	monitor.ErrMemoMismatch:          http.StatusBadRequest,
	monitor.ErrTooEarly:              http.StatusBadRequest,
	monitor.ErrAlreadyCredited:       http.StatusConflict,
}

// handlerError renders a domain error with the right status code.
func handlerError(err error) *httpserverutils.HandlerError {
	if code, ok := clientErrors[errors.Cause(err)]; ok {
		return httpserverutils.NewHandlerError(code, err.Error())
	}
	return httpserverutils.NewHandlerErrorFromError(err)
}
