package client

import (
	"github.com/ValentinKolb/dDetect/lib/match"
	"github.com/ValentinKolb/dDetect/rpc/common"
	"github.com/ValentinKolb/dDetect/rpc/serializer"
	"github.com/ValentinKolb/dDetect/rpc/transport"
)

// IMatcher matches against one catalog, either served by a remote server
// (NewRemoteMatcher) or loaded in process (NewLocalMatcher).
// A result with match.MethodNone means nothing matched, errors are reserved for
// failed requests.
type IMatcher interface {
	// Match runs the whole cascade for target
	Match(target string) (*common.MatchResult, error)
	// MatchStage runs a single stage of the cascade for target
	MatchStage(target string, stage match.Stage) (*common.MatchResult, error)
	// MatchHeaders matches a set of request headers
	MatchHeaders(headers map[string]string) (*common.MatchResult, error)
	// MatchDeviceID resolves a device id
	MatchDeviceID(id string) (*common.MatchResult, error)
	// Profiles returns the profiles carrying a property value
	Profiles(property, value string) ([]common.ProfileInfo, error)
	// Info describes the catalog
	Info() (*common.CatalogInfo, error)
	// Close releases the transport or the local catalog
	Close() error
}

// NewRemoteMatcher creates a new remote matcher
// The function takes a catalog ID, a config, a transport and a serializer as parameters
func NewRemoteMatcher(
	catalogId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (IMatcher, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new remote matcher
	m := remoteMatcher{
		rpcClientAdapter{
			catalogId:  catalogId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	// Return the remote matcher
	return &m, nil
}

type remoteMatcher struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IMatcher)
// --------------------------------------------------------------------------

func (m *remoteMatcher) Match(target string) (*common.MatchResult, error) {
	return m.matchRequest(common.NewMatchRequest(target, match.StageNone))
}

func (m *remoteMatcher) MatchStage(target string, stage match.Stage) (*common.MatchResult, error) {
	return m.matchRequest(common.NewMatchRequest(target, stage))
}

func (m *remoteMatcher) MatchHeaders(headers map[string]string) (*common.MatchResult, error) {
	return m.matchRequest(common.NewMatchHeadersRequest(headers))
}

func (m *remoteMatcher) MatchDeviceID(id string) (*common.MatchResult, error) {
	return m.matchRequest(common.NewDeviceIDRequest(id))
}

func (m *remoteMatcher) Profiles(property, value string) ([]common.ProfileInfo, error) {
	resp, err := invokeRPCRequest(m.catalogId, common.NewProfilesRequest(property, value), m.transport, m.serializer)
	if err != nil {
		return nil, err
	}

	var profiles []common.ProfileInfo
	if err := decodePayload(resp, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (m *remoteMatcher) Info() (*common.CatalogInfo, error) {
	resp, err := invokeRPCRequest(m.catalogId, common.NewInfoRequest(), m.transport, m.serializer)
	if err != nil {
		return nil, err
	}

	info := &common.CatalogInfo{}
	if err := decodePayload(resp, info); err != nil {
		return nil, err
	}
	return info, nil
}

func (m *remoteMatcher) Close() error {
	return m.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (m *remoteMatcher) matchRequest(req *common.Message) (*common.MatchResult, error) {
	resp, err := invokeRPCRequest(m.catalogId, req, m.transport, m.serializer)
	if err != nil {
		return nil, err
	}

	result := &common.MatchResult{}
	if err := decodePayload(resp, result); err != nil {
		return nil, err
	}
	return result, nil
}
