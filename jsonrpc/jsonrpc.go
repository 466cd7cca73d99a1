package jsonrpc

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	"github.com/minichain-lab/minichain/versioning"
)

const _chainName = "minichain"

// JSONRPCStore defines all the methods required by the JSON-RPC endpoints
type JSONRPCStore interface {
	ethStore
}

// Config configures the JSON-RPC front
type Config struct {
	Store                    JSONRPCStore
	Addr                     *net.TCPAddr
	ChainID                  uint64
	PriceLimit               uint64
	AccessControlAllowOrigin []string
	EnableWS                 bool

	Metrics *Metrics
}

func (c *Config) metrics() *Metrics {
	return newDummyMetrics(c.Metrics)
}

// JSONRPC serves the dispatcher over HTTP and an optional websocket
// endpoint; in-process callers can reach the dispatcher directly
type JSONRPC struct {
	logger     hclog.Logger
	config     *Config
	dispatcher *Dispatcher
	metrics    *Metrics
	server     *http.Server
}

// NewJSONRPC returns the JSONRPC http server
func NewJSONRPC(logger hclog.Logger, config *Config) (*JSONRPC, error) {
	srv := &JSONRPC{
		logger:     logger.Named("jsonrpc"),
		config:     config,
		dispatcher: newDispatcher(logger, config.Store, config),
		metrics:    config.metrics(),
	}

	if config.Addr != nil {
		if err := srv.setupHTTP(); err != nil {
			return nil, err
		}
	}

	return srv, nil
}

// Dispatcher exposes the method table for in-process callers
func (j *JSONRPC) Dispatcher() *Dispatcher {
	return j.dispatcher
}

func (j *JSONRPC) Close() error {
	if j.server == nil {
		return nil
	}

	err := j.server.Close()
	j.server = nil

	return err
}

func (j *JSONRPC) setupHTTP() error {
	j.logger.Info("http server started", "addr", j.config.Addr.String())

	lis, err := net.Listen("tcp", j.config.Addr.String())
	if err != nil {
		return err
	}

	mux := http.NewServeMux()

	jsonRPCHandler := http.HandlerFunc(j.handle)
	mux.Handle("/", middlewareFactory(j.config)(jsonRPCHandler))

	if j.config.EnableWS {
		mux.HandleFunc("/ws", j.handleWs)
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: time.Minute,
	}

	j.server = srv

	go func() {
		if err := srv.Serve(lis); err != nil {
			j.logger.Error("closed http connection", "err", err)
		}
	}()

	return nil
}

// middlewareFactory builds a middleware which enables CORS using the
// provided config
func middlewareFactory(config *Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			for _, allowedOrigin := range config.AccessControlAllowOrigin {
				if allowedOrigin == "*" {
					w.Header().Set("Access-Control-Allow-Origin", "*")

					break
				}

				if allowedOrigin == origin {
					w.Header().Set("Access-Control-Allow-Origin", origin)

					break
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// wsUpgrader defines upgrade parameters for the WS connection
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsWrapper is a wrapping object for the web socket connection and logger
type wsWrapper struct {
	sync.Mutex

	ws     *websocket.Conn
	logger hclog.Logger
}

// WriteMessage writes out the message to the WS peer
func (w *wsWrapper) WriteMessage(messageType int, data []byte) error {
	w.Lock()
	defer w.Unlock()

	writeErr := w.ws.WriteMessage(messageType, data)
	if writeErr != nil {
		w.logger.Error(fmt.Sprintf("Unable to write WS message, %s", writeErr.Error()))
	}

	return writeErr
}

// isSupportedWSType returns a status indicating if the message type is supported
func isSupportedWSType(messageType int) bool {
	return messageType == websocket.TextMessage ||
		messageType == websocket.BinaryMessage
}

func (j *JSONRPC) handleWs(w http.ResponseWriter, req *http.Request) {
	// CORS rule - allow requests from anywhere
	wsUpgrader.CheckOrigin = func(r *http.Request) bool { return true }

	ws, err := wsUpgrader.Upgrade(w, req, nil)
	if err != nil {
		j.logger.Error(fmt.Sprintf("Unable to upgrade to a WS connection, %s", err.Error()))

		return
	}

	defer func(ws *websocket.Conn) {
		if err := ws.Close(); err != nil {
			j.logger.Error(fmt.Sprintf("Unable to gracefully close WS connection, %s", err.Error()))
		}
	}(ws)

	wrapConn := &wsWrapper{ws: ws, logger: j.logger}

	j.logger.Info("websocket connection established")

	for {
		msgType, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure,
			) {
				j.logger.Info("closing WS connection gracefully")
			} else {
				j.logger.Error(fmt.Sprintf("Unable to read WS message, %s", err.Error()))
				j.logger.Info("closing WS connection with error")
			}

			break
		}

		if isSupportedWSType(msgType) {
			resp, handleErr := j.dispatcher.Handle(message)
			if handleErr != nil {
				_ = wrapConn.WriteMessage(
					msgType,
					[]byte(fmt.Sprintf("WS Handle error: %s", handleErr.Error())),
				)
			} else {
				_ = wrapConn.WriteMessage(msgType, resp)
			}
		}
	}
}

func (j *JSONRPC) handle(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set(
		"Access-Control-Allow-Headers",
		"Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization",
	)

	switch req.Method {
	case http.MethodPost:
		j.handleJSONRPCRequest(w, req)
	case http.MethodGet:
		j.handleGetRequest(w)
	case http.MethodOptions:
		// nothing to return
	default:
		j.metrics.errorInc()
		w.Write([]byte("method " + req.Method + " not allowed")) //nolint:errcheck
	}
}

func (j *JSONRPC) handleJSONRPCRequest(w http.ResponseWriter, req *http.Request) {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		j.metrics.errorInc()
		w.Write([]byte(err.Error())) //nolint:errcheck

		return
	}

	j.logger.Debug("handle", "request", string(data))

	resp, err := j.dispatcher.Handle(data)
	if err != nil {
		j.metrics.errorInc()
		w.Write([]byte(err.Error())) //nolint:errcheck
	} else {
		w.Write(resp) //nolint:errcheck
	}

	j.logger.Debug("handle", "response", string(resp))
}

type GetResponse struct {
	Name    string `json:"name"`
	ChainID uint64 `json:"chain_id"`
	Version string `json:"version"`
}

func (j *JSONRPC) handleGetRequest(writer io.Writer) {
	data := &GetResponse{
		Name:    _chainName,
		ChainID: j.config.ChainID,
		Version: versioning.Version,
	}

	resp, err := json.Marshal(data)
	if err != nil {
		j.metrics.errorInc()
		writer.Write([]byte(err.Error())) //nolint:errcheck

		return
	}

	if _, err = writer.Write(resp); err != nil {
		j.metrics.errorInc()
		writer.Write([]byte(err.Error())) //nolint:errcheck
	}
}
