package jsonrpc

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// handlerFunc is one entry of the method table: it receives the raw param
// array of the request and returns the result variant of its method
type handlerFunc func(params []json.RawMessage) (interface{}, Error)

// Dispatcher maps method names to typed handlers; all semantics live in
// the stores behind the endpoints
type Dispatcher struct {
	logger  hclog.Logger
	metrics *Metrics

	serviceMap map[string]handlerFunc
}

func newDispatcher(logger hclog.Logger, store JSONRPCStore, config *Config) *Dispatcher {
	d := &Dispatcher{
		logger:  logger.Named("dispatcher"),
		metrics: config.metrics(),
	}

	eth := &Eth{store: store, chainID: config.ChainID, priceLimit: config.PriceLimit}
	web3 := &Web3{chainID: config.ChainID}
	net := &Net{chainID: config.ChainID}

	d.serviceMap = map[string]handlerFunc{
		"eth_gasPrice":                 params0(eth.GasPrice),
		"eth_chainId":                  params0(eth.ChainID),
		"eth_blockNumber":              params0(eth.BlockNumber),
		"eth_sendTransaction":          eth.handleSendTransaction,
		"eth_sendRawTransaction":       eth.handleSendRawTransaction,
		"eth_call":                     eth.handleCall,
		"eth_estimateGas":              eth.handleEstimateGas,
		"eth_getTransactionReceipt":    eth.handleGetTransactionReceipt,
		"eth_getCode":                  eth.handleGetCode,
		"eth_getBalance":               eth.handleGetBalance,
		"eth_getTransactionCount":      eth.handleGetTransactionCount,
		"eth_getStorageAt":             eth.handleGetStorageAt,
		"eth_getLogs":                  eth.handleGetLogs,
		"eth_getBlockByNumber":         eth.handleGetBlockByNumber,
		"eth_getBlockByHash":           eth.handleGetBlockByHash,
		"web3_clientVersion":           params0(web3.ClientVersion),
		"web3_sha3":                    web3.handleSha3,
		"net_version":                  params0(net.Version),
		"net_listening":                params0(net.Listening),
	}

	return d
}

// params0 adapts a parameterless endpoint method into the method table
func params0(fn func() (interface{}, Error)) handlerFunc {
	return func(params []json.RawMessage) (interface{}, Error) {
		return fn()
	}
}

// Handle decodes a single request or a batch and dispatches each entry
func (d *Dispatcher) Handle(reqBody []byte) ([]byte, error) {
	x := bytesTrimLeft(reqBody)

	if len(x) == 0 {
		return newErrorResponse(nil, NewInvalidRequestError("empty request")), nil
	}

	if x[0] == '[' {
		// batch request
		var requests []Request
		if err := json.Unmarshal(reqBody, &requests); err != nil {
			return newErrorResponse(nil, NewInvalidRequestError("invalid json request")), nil
		}

		responses := make([]json.RawMessage, 0, len(requests))
		for _, req := range requests {
			responses = append(responses, d.handleReq(req))
		}

		return json.Marshal(responses)
	}

	var req Request
	if err := json.Unmarshal(reqBody, &req); err != nil {
		return newErrorResponse(nil, NewInvalidRequestError("invalid json request")), nil
	}

	return d.handleReq(req), nil
}

func (d *Dispatcher) handleReq(req Request) []byte {
	d.logger.Debug("request", "method", req.Method, "id", req.ID)

	d.metrics.requestInc(req.Method)

	handler, ok := d.serviceMap[req.Method]
	if !ok {
		d.metrics.errorInc()

		return newErrorResponse(req.ID, NewMethodNotFoundError(req.Method))
	}

	var params []json.RawMessage

	if len(req.Params) != 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			d.metrics.errorInc()

			return newErrorResponse(req.ID, NewInvalidParamsError("params must be an array"))
		}
	}

	observe := d.metrics.responseTimeObserve()

	result, rpcErr := handler(params)

	observe()

	if rpcErr != nil {
		d.metrics.errorInc()

		return newErrorResponse(req.ID, rpcErr)
	}

	data, err := json.Marshal(result)
	if err != nil {
		d.metrics.errorInc()

		return newErrorResponse(req.ID, NewInternalError(fmt.Sprintf("failed to marshal response: %v", err)))
	}

	resp := Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  data,
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return newErrorResponse(req.ID, NewInternalError("failed to marshal response"))
	}

	return out
}

func newErrorResponse(id interface{}, rpcErr Error) []byte {
	resp := ErrorResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &ObjectError{
			Code:    rpcErr.ErrorCode(),
			Message: rpcErr.Error(),
			Data:    rpcErr.ErrorData(),
		},
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return []byte(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"internal error"}}`)
	}

	return data
}

func bytesTrimLeft(b []byte) []byte {
	for len(b) > 0 && (b[0] == ' ' || b[0] == '\t' || b[0] == '\n' || b[0] == '\r') {
		b = b[1:]
	}

	return b
}
