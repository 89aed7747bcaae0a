package client

import (
	"fmt"

	"github.com/ValentinKolb/dDetect/rpc/common"
	"github.com/ValentinKolb/dDetect/rpc/serializer"
	"github.com/ValentinKolb/dDetect/rpc/transport"
	"github.com/goccy/go-json"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("client")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
type rpcClientAdapter struct {
	catalogId  uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a catalog ID, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// This method also checks if the response is an error response and if the type of the response is the expected type
func invokeRPCRequest(catalogId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the handler
	respBytes, err := transport.Send(catalogId, reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	err = serializer.Deserialize(respBytes, resp)
	if err != nil {
		return nil, fmt.Errorf("RPC Client - Error: %s", err)
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		return nil, fmt.Errorf("RPC Client - Error: %s", resp.Err)
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("RPC Client - Unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	// Return the response
	return resp, nil
}

// decodePayload decodes the JSON payload of a response into v
func decodePayload(resp *common.Message, v any) error {
	if len(resp.Payload) == 0 {
		return fmt.Errorf("RPC Client - Empty payload for %s response", resp.MsgType)
	}
	if err := json.Unmarshal(resp.Payload, v); err != nil {
		return fmt.Errorf("RPC Client - Invalid %s payload: %w", resp.MsgType, err)
	}
	return nil
}
