package server

import (
	"fmt"
	"sync"

	"github.com/ValentinKolb/dDetect/lib/match"
	"github.com/ValentinKolb/dDetect/rpc/common"
)

func NewCatalogServerAdapter() IRPCServerAdapter {
	return &catalogServerAdapterImpl{
		requests: sync.Pool{
			New: func() any { return match.NewRequest() },
		},
	}
}

type catalogServerAdapterImpl struct {
	requests sync.Pool
}

func (adapter *catalogServerAdapterImpl) Handle(req *common.Message, provider *match.Provider) *common.Message {
	// Check for nil provider
	if provider == nil {
		return common.NewErrorResponse("handler: provider is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTMatch:
		stage, err := match.ParseStage(req.Stage)
		if err != nil {
			return common.NewMatchResponse(req.MsgType, nil, err)
		}
		return adapter.match(req.MsgType, provider, func(r *match.Request) error {
			if stage == match.StageNone {
				return provider.MatchInto(req.Target, r)
			}
			return provider.MatchWith(req.Target, stage, r)
		})
	case common.MsgTMatchHeaders:
		return adapter.match(req.MsgType, provider, func(r *match.Request) error {
			return provider.MatchHeaders(req.Headers, r)
		})
	case common.MsgTDeviceID:
		return adapter.match(req.MsgType, provider, func(r *match.Request) error {
			return provider.MatchWith(req.Target, match.StageDeviceID, r)
		})
	case common.MsgTProfiles:
		c := provider.Catalog()
		profiles, err := c.FindProfiles(req.Property, req.Value, nil)
		if err != nil {
			return common.NewProfilesResponse(nil, err)
		}
		return common.NewProfilesResponse(common.NewProfileInfos(c, profiles), nil)
	case common.MsgTInfo:
		return common.NewInfoResponse(common.NewCatalogInfo(provider.Catalog()), nil)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC CatalogAdapter - Unsuported message type: %s", req.MsgType),
		)
	}
}

// match runs fn with a pooled request and converts its result. The response is
// encoded before the request goes back to the pool.
func (adapter *catalogServerAdapterImpl) match(msgType common.MessageType, provider *match.Provider, fn func(r *match.Request) error) *common.Message {
	r := adapter.requests.Get().(*match.Request)
	defer adapter.requests.Put(r)

	if err := fn(r); err != nil {
		return common.NewMatchResponse(msgType, nil, err)
	}
	result, err := common.NewMatchResult(provider.Catalog(), r.Result())
	return common.NewMatchResponse(msgType, result, err)
}
