package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dluxio/hiveonboard/apimodels"
	"github.com/dluxio/hiveonboard/chainparams"
	"github.com/dluxio/hiveonboard/consolidation"
	"github.com/dluxio/hiveonboard/database"
	"github.com/dluxio/hiveonboard/dbaccess"
	"github.com/dluxio/hiveonboard/httpserverutils"
)

const (
	defaultChannelsLimit = 100
	maxChannelsLimit     = 1000
)

// GetACTStatus handles GET /admin/act-status.
func (s *Services) GetACTStatus(_ *http.Request, _ map[string]string, _ []byte) (
	interface{}, *httpserverutils.HandlerError) {

	inventory, err := s.Orchestrator.SyncInventory()
	if err != nil {
		return nil, handlerError(err)
	}
	return &apimodels.ACTStatusResponse{
		CreatorAccount:  s.Config.HiveCreatorAccount,
		ACTBalance:      inventory.ACTBalance,
		ResourceCredits: inventory.ResourceCredits,
		LastClaimTime:   inventory.LastClaimTime,
		LastRCCheck:     inventory.LastRCCheck,
	}, nil
}

// ClaimACT handles POST /admin/claim-act: an immediate claim run.
func (s *Services) ClaimACT(_ *http.Request, _ map[string]string, _ []byte) (
	interface{}, *httpserverutils.HandlerError) {

	claimed, err := s.Orchestrator.ProactiveClaim()
	if err != nil {
		return nil, handlerError(err)
	}
	return &apimodels.ClaimACTResponse{Claimed: claimed}, nil
}

// ProcessPending handles POST /admin/process-pending: force a creation pass
// over every confirmed channel.
func (s *Services) ProcessPending(_ *http.Request, _ map[string]string, _ []byte) (
	interface{}, *httpserverutils.HandlerError) {

	err := s.Orchestrator.ProcessPending()
	if err != nil {
		return nil, handlerError(err)
	}
	return map[string]bool{"processed": true}, nil
}

// ManualCreateAccount handles POST /admin/manual-create-account for one confirmed
// channel.
func (s *Services) ManualCreateAccount(_ *http.Request, _ map[string]string, requestBody []byte) (
	interface{}, *httpserverutils.HandlerError) {

	request := &apimodels.ManualCreateRequest{}
	hErr := httpserverutils.DecodeRequestBody(requestBody, request)
	if hErr != nil {
		return nil, hErr
	}
	err := s.Orchestrator.CreateForChannel(request.ChannelID)
	if err != nil {
		return nil, handlerError(err)
	}
	return map[string]bool{"created": true}, nil
}

// HealthCheck handles POST /admin/health-check.
func (s *Services) HealthCheck(_ *http.Request, _ map[string]string, _ []byte) (
	interface{}, *httpserverutils.HandlerError) {

	health, err := s.Orchestrator.HealthCheck()
	if err != nil {
		return nil, handlerError(err)
	}
	return &apimodels.HealthCheckResponse{
		State:           health.State,
		ACTBalance:      health.ACTBalance,
		ResourceCredits: health.ResourceCredits,
		ClaimsRemaining: health.ClaimsRemaining,
		DaysSustainable: health.DaysSustainable,
	}, nil
}

// GetRCCosts handles GET /admin/rc-costs.
func (s *Services) GetRCCosts(_ *http.Request, _ map[string]string, _ []byte) (
	interface{}, *httpserverutils.HandlerError) {

	costs := s.RCTracker.AllCosts()
	response := make([]*apimodels.RCCostResponse, len(costs))
	for i, cost := range costs {
		response[i] = &apimodels.RCCostResponse{
			OperationType: cost.OperationType,
			RCNeeded:      cost.RCNeeded,
			HPNeeded:      cost.HPNeeded,
			APITimestamp:  cost.APITimestamp,
		}
	}
	return response, nil
}

// ListChannels handles GET /admin/channels with skip/limit pagination.
func (s *Services) ListChannels(r *http.Request, _ map[string]string, _ []byte) (
	interface{}, *httpserverutils.HandlerError) {

	skip, hErr := queryUint(r, "skip", 0, 1<<40)
	if hErr != nil {
		return nil, hErr
	}
	limit, hErr := queryUint(r, "limit", defaultChannelsLimit, maxChannelsLimit)
	if hErr != nil {
		return nil, hErr
	}

	db, err := database.DB()
	if err != nil {
		return nil, handlerError(err)
	}
	channels, err := dbaccess.AllChannels(db, skip, limit)
	if err != nil {
		return nil, handlerError(err)
	}

	response := make([]*apimodels.ChannelStatusResponse, len(channels))
	for i, c := range channels {
		response[i] = statusResponse(s.Engine.RenderStatus(c))
	}
	return response, nil
}

// DeleteChannel handles DELETE /admin/channels/{channelId}.
func (s *Services) DeleteChannel(_ *http.Request, routeParams map[string]string, _ []byte) (
	interface{}, *httpserverutils.HandlerError) {

	err := s.Engine.Delete(routeParams["channelId"])
	if err != nil {
		return nil, handlerError(err)
	}
	return map[string]bool{"deleted": true}, nil
}

// RepairOrphans handles POST /admin/repair-orphans.
func (s *Services) RepairOrphans(_ *http.Request, _ map[string]string, _ []byte) (
	interface{}, *httpserverutils.HandlerError) {

	db, err := database.DB()
	if err != nil {
		return nil, handlerError(err)
	}
	removed, err := dbaccess.RepairOrphans(db)
	if err != nil {
		return nil, handlerError(err)
	}
	return map[string]int64{"removed": removed}, nil
}

// GetConsolidationInfo handles GET /admin/consolidation-info/{cryptoType}.
func (s *Services) GetConsolidationInfo(_ *http.Request, routeParams map[string]string, _ []byte) (
	interface{}, *httpserverutils.HandlerError) {

	params, err := chainparams.Parse(routeParams["cryptoType"])
	if err != nil {
		return nil, httpserverutils.NewHandlerError(http.StatusBadRequest, err.Error())
	}
	infos, err := s.Consolidation.Info()
	if err != nil {
		return nil, handlerError(err)
	}
	for _, info := range infos {
		if info.Currency == string(params.Currency) {
			return info, nil
		}
	}
	return nil, httpserverutils.NewHandlerError(http.StatusBadRequest,
		"currency is not monitored")
}

// PrepareConsolidation handles POST /admin/prepare-consolidation.
func (s *Services) PrepareConsolidation(_ *http.Request, _ map[string]string, requestBody []byte) (
	interface{}, *httpserverutils.HandlerError) {

	request := &apimodels.ConsolidationPrepareRequest{}
	hErr := httpserverutils.DecodeRequestBody(requestBody, request)
	if hErr != nil {
		return nil, hErr
	}
	plan, err := s.Consolidation.Prepare(request.CryptoType,
		request.DestinationAddress, request.Priority)
	if err != nil {
		return nil, httpserverutils.NewHandlerError(http.StatusBadRequest, err.Error())
	}
	return plan, nil
}

// ExecuteConsolidation handles POST /admin/execute-consolidation.
func (s *Services) ExecuteConsolidation(_ *http.Request, _ map[string]string, requestBody []byte) (
	interface{}, *httpserverutils.HandlerError) {

	request := &apimodels.ConsolidationExecuteRequest{}
	hErr := httpserverutils.DecodeRequestBody(requestBody, request)
	if hErr != nil {
		return nil, hErr
	}
	result, err := s.Consolidation.Execute(&consolidation.Plan{
		TxID:               request.TxID,
		Currency:           request.CryptoType,
		DestinationAddress: request.DestinationAddress,
		Priority:           request.Priority,
		SourceCount:        request.SourceCount,
		TotalAmount:        request.TotalAmount,
		EstimatedFee:       request.EstimatedFee,
		NetAmount:          request.NetAmount,
		CreatedAt:          time.Now().UTC(),
	})
	if err != nil {
		return nil, handlerError(err)
	}
	return result, nil
}

func queryUint(r *http.Request, name string, defaultValue, max uint64) (uint64, *httpserverutils.HandlerError) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value > max {
		return 0, httpserverutils.NewHandlerError(http.StatusBadRequest,
			"invalid "+name+" parameter")
	}
	return value, nil
}
