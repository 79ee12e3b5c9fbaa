package controllers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/dluxio/hiveonboard/apimodels"
	"github.com/dluxio/hiveonboard/channel"
	"github.com/dluxio/hiveonboard/httpserverutils"
	"github.com/dluxio/hiveonboard/metrics"
)

// InitiatePayment handles POST /payment/initiate.
func (s *Services) InitiatePayment(_ *http.Request, _ map[string]string, requestBody []byte) (
	interface{}, *httpserverutils.HandlerError) {

	request := &apimodels.InitiatePaymentRequest{}
	hErr := httpserverutils.DecodeRequestBody(requestBody, request)
	if hErr != nil {
		return nil, hErr
	}

	result, err := s.Engine.Create(&channel.CreateRequest{
		Username:   request.Username,
		Currency:   request.CryptoType,
		OwnerKey:   request.OwnerKey,
		ActiveKey:  request.ActiveKey,
		PostingKey: request.PostingKey,
		MemoKey:    request.MemoKey,
	})
	if err != nil {
		return nil, handlerError(err)
	}
	metrics.ChannelsOpened.WithLabelValues(result.Channel.CryptoType).Inc()

	return &apimodels.InitiatePaymentResponse{
		ChannelID:      result.Channel.ChannelID,
		Username:       result.Channel.Username,
		CryptoType:     result.Channel.CryptoType,
		DepositAddress: result.Channel.DepositAddress,
		Amount:         result.Channel.AmountCrypto,
		AmountUSD:      result.Channel.AmountUSD,
		Memo:           result.Channel.Memo,
		AddressReused:  result.AddressReused,
		ExpiresAt:      result.Channel.ExpiresAt,
	}, nil
}

// GetPaymentStatus handles GET /payment/status/{channelId} and
// GET /channel/{channelId}/status.
func (s *Services) GetPaymentStatus(_ *http.Request, routeParams map[string]string, _ []byte) (
	interface{}, *httpserverutils.HandlerError) {

	view, err := s.Engine.Status(routeParams["channelId"])
	if err != nil {
		return nil, handlerError(err)
	}
	return statusResponse(view), nil
}

// GetChannelsForUsername handles GET /payment/channels/{username}.
func (s *Services) GetChannelsForUsername(_ *http.Request, routeParams map[string]string, _ []byte) (
	interface{}, *httpserverutils.HandlerError) {

	views, err := s.Engine.ChannelsForUsername(routeParams["username"])
	if err != nil {
		return nil, handlerError(err)
	}
	response := make([]*apimodels.ChannelStatusResponse, len(views))
	for i, view := range views {
		response[i] = statusResponse(view)
	}
	return response, nil
}

// CancelChannel handles DELETE /payment/channel/{channelId}: a user backing
// out of a pending channel.
func (s *Services) CancelChannel(_ *http.Request, routeParams map[string]string, _ []byte) (
	interface{}, *httpserverutils.HandlerError) {

	err := s.Engine.Cancel(routeParams["channelId"])
	if err != nil {
		return nil, handlerError(err)
	}
	return map[string]bool{"cancelled": true}, nil
}

// VerifyTransaction handles POST /payment/verify-transaction: a user claims a
// specific transaction pays their channel, and the monitor re-verifies it
// against the chain.
func (s *Services) VerifyTransaction(_ *http.Request, _ map[string]string, requestBody []byte) (
	interface{}, *httpserverutils.HandlerError) {

	request := &apimodels.VerifyTransactionRequest{}
	hErr := httpserverutils.DecodeRequestBody(requestBody, request)
	if hErr != nil {
		return nil, hErr
	}
	if request.ChannelID == "" || request.TxHash == "" {
		return nil, httpserverutils.NewHandlerError(http.StatusBadRequest,
			"channelId and txHash are required")
	}

	updated, err := s.Monitor.VerifyTransaction(request.ChannelID, request.TxHash)
	if err != nil {
		return nil, handlerError(err)
	}
	return statusResponse(s.Engine.RenderStatus(updated)), nil
}

// WebhookPayment handles POST /webhook/payment. The payload is only a hint;
// nothing is credited without the monitor re-verifying on chain.
func (s *Services) WebhookPayment(_ *http.Request, _ map[string]string, requestBody []byte) (
	interface{}, *httpserverutils.HandlerError) {

	request := &apimodels.WebhookPaymentRequest{}
	hErr := httpserverutils.DecodeRequestBody(requestBody, request)
	if hErr != nil {
		return nil, hErr
	}
	if request.ChannelID == "" || request.TxHash == "" {
		return nil, httpserverutils.NewHandlerError(http.StatusBadRequest,
			"channelId and txHash are required")
	}

	_, err := s.Monitor.VerifyTransaction(request.ChannelID, request.TxHash)
	if err != nil {
		// A webhook that does not verify is not an error worth retrying.
		return map[string]interface{}{"accepted": false, "reason": err.Error()}, nil
	}
	return map[string]interface{}{"accepted": true}, nil
}

// SubscribeChannel handles GET /ws/channel/{channelId}: a websocket pushing
// status transitions.
func (s *Services) SubscribeChannel(w http.ResponseWriter, r *http.Request) {
	channelID := mux.Vars(r)["channelId"]
	_, err := s.Engine.Status(channelID)
	if err != nil {
		httpserverutils.SendErr(w, handlerError(err))
		return
	}
	err = s.Hub.Subscribe(w, r, channelID)
	if err != nil {
		// Upgrade failures already wrote a response.
		return
	}
}

// GetNotifications handles GET /notifications/{username}.
func (s *Services) GetNotifications(r *http.Request, routeParams map[string]string, _ []byte) (
	interface{}, *httpserverutils.HandlerError) {

	limit := uint64(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || parsed == 0 || parsed > 500 {
			return nil, httpserverutils.NewHandlerError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}
	rows, err := s.Notifier.ForUsername(routeParams["username"], limit)
	if err != nil {
		return nil, handlerError(err)
	}
	return rows, nil
}

func statusResponse(view *channel.StatusView) *apimodels.ChannelStatusResponse {
	c := view.Channel
	return &apimodels.ChannelStatusResponse{
		ChannelID:             c.ChannelID,
		Username:              c.Username,
		CryptoType:            c.CryptoType,
		DepositAddress:        c.DepositAddress,
		Amount:                c.AmountCrypto,
		Status:                string(view.EffectiveStatus),
		Confirmations:         c.Confirmations,
		RequiredConfirmations: view.RequiredConfirmations,
		ProgressPercent:       view.ProgressPercent,
		Message:               view.Message,
		TxHash:                c.TxHash,
		HiveTxID:              c.HiveTxID,
		CreatedAt:             c.CreatedAt,
		ExpiresAt:             c.ExpiresAt,
		AccountCreatedAt:      c.AccountCreatedAt,
	}
}
