package rpc

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/silenceper/pool"
	"github.com/ugorji/go/codec"

	"github.com/danl5/ringelect/pkg/model"
)

const (
	// initial capacity of the pool
	poolInitCap = 0
	// maximum number of idle connections in the pool
	poolMaxIdle = 2
	// maximum time a connection can be idle before being closed
	poolMaxIdleTime = 15
	// maximum number of connections in the pool
	poolMaxCap = 4
)

func NewRPC(logger *slog.Logger) (*RPC, error) {
	if logger == nil {
		return nil, fmt.Errorf("new rpc, logger is nil")
	}

	r := &RPC{
		Server: Server{
			logger: logger.With("component", "rpc server"),
		},
		Client: Client{
			logger: logger.With("component", "rpc client"),
		},
	}
	return r, nil
}

// RPCHandler is the receiver registered with net/rpc.
type RPCHandler struct {
	CmdHandler model.CommandHandler
}

func (h *RPCHandler) Handle(request *model.Request, response *model.Response) error {
	return h.CmdHandler(request, response)
}

func (h *RPCHandler) Ping(_ struct{}, reply *string) error {
	*reply = "pong"
	return nil
}

// RPC bundles the listening and dialing halves of one ring endpoint.
type RPC struct {
	Server
	Client
}

// Decode converts a generically decoded msgpack payload into target.
func (r *RPC) Decode(raw any, target any) error {
	decodeHook := func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t.Kind() == reflect.String && f.Kind() == reflect.Slice {
			if bytes, ok := data.([]uint8); ok {
				return string(bytes), nil
			}
		}
		return data, nil
	}

	t := reflect.TypeOf(target)
	if t == nil || t.Kind() != reflect.Ptr || reflect.ValueOf(target).IsNil() {
		return fmt.Errorf("wrong receiver for decode")
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: decodeHook,
		TagName:    "json",
		Result:     target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

type Server struct {
	rpcHandler *RPCHandler
	logger     *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	stopped  bool
}

// Start binds listenAddress and serves handler until Stop.
func (s *Server) Start(listenAddress string, handler model.CommandHandler, serverConfig model.TransportConfig) error {
	cfg, ok := serverConfig.(*Config)
	if !ok {
		return errors.New("not a valid rpc server config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.rpcHandler = &RPCHandler{CmdHandler: handler}
	if err := s.startServer(listenAddress, s.rpcHandler, cfg); err != nil {
		s.logger.Error("failed to start rpc server", "error", err.Error())
		return err
	}

	s.logger.Info("rpc server started", "listenAddress", s.Addr())
	return nil
}

// Addr returns the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes the listener and every accepted connection.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.listener == nil {
		return nil
	}
	s.stopped = true
	err := s.listener.Close()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
	return err
}

func (s *Server) startServer(listenAddress string, handler *RPCHandler, cfg *Config) error {
	tlsConfig, err := s.loadTLSConfig(cfg)
	if err != nil {
		return err
	}

	rpcServer := rpc.NewServer()
	if err := rpcServer.Register(handler); err != nil {
		return err
	}

	var l net.Listener
	if tlsConfig != nil {
		l, err = tls.Listen("tcp", listenAddress, tlsConfig)
	} else {
		l, err = net.Listen("tcp", listenAddress)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = l
	s.conns = make(map[net.Conn]struct{})
	s.mu.Unlock()

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.logger.Error("failed to accept rpc connection", "error", err.Error())
				continue
			}
			if !s.track(conn) {
				_ = conn.Close()
				return
			}

			rpcCodec := codec.MsgpackSpecRpc.ServerCodec(conn, &codec.MsgpackHandle{})
			go rpcServer.ServeCodec(rpcCodec)
		}
	}()
	return nil
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) loadTLSConfig(cfg *Config) (*tls.Config, error) {
	// if no TLS config is provided, return nil
	if cfg.ServerCert == "" || cfg.ServerKey == "" {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.ServerCert, cfg.ServerKey)
	if err != nil {
		return nil, err
	}
	caCertPool, err := loadCertPool(cfg.ServerCAs)
	if err != nil {
		return nil, err
	}

	config := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    caCertPool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
	}
	if cfg.ServerSkipVerify {
		config.ClientAuth = tls.NoClientCert
	}
	return config, nil
}

// Client keeps one connection pool per neighbor rank.
type Client struct {
	// rank -> pool.Pool
	clients sync.Map

	logger *slog.Logger
}

// Connect prepares a pool of connections to the process at address. No
// connection is opened until the first request.
func (c *Client) Connect(rank int, address string, cfg model.TransportConfig) error {
	rpcCfg, ok := cfg.(*Config)
	if !ok {
		return errors.New("not a valid rpc client config")
	}
	if _, ok := c.clients.Load(rank); ok {
		return nil
	}

	p, err := c.createClient(address, rpcCfg)
	if err != nil {
		c.logger.Error("error connecting to process", "rank", rank, "address", address)
		return err
	}
	c.clients.Store(rank, p)
	return nil
}

// SendRequest sends the command request to rank and waits for its response.
func (c *Client) SendRequest(rank int, request *model.Request, response *model.Response) error {
	clientPool, err := c.getPool(rank)
	if err != nil {
		return err
	}
	conn, err := clientPool.Get()
	if err != nil {
		return fmt.Errorf("can not get client from pool for rank %d: %w", rank, err)
	}
	rpcClient := conn.(*rpc.Client)

	if err := rpcClient.Call("RPCHandler.Handle", request, response); err != nil {
		// a broken connection must not go back to the pool
		_ = clientPool.Close(rpcClient)
		return fmt.Errorf("failed to call rpc handler: %w", err)
	}
	if err := clientPool.Put(rpcClient); err != nil {
		c.logger.Error("failed to put rpc client back to pool", "error", err.Error())
	}

	c.logger.Debug("send rpc request", "command", request.CommandCode.String(), "to", rank)
	return nil
}

// Close releases every pooled connection.
func (c *Client) Close() {
	c.clients.Range(func(key, value any) bool {
		value.(pool.Pool).Release()
		c.clients.Delete(key)
		return true
	})
}

func (c *Client) createClient(address string, cfg *Config) (pool.Pool, error) {
	poolConfig := &pool.Config{
		InitialCap:  poolInitCap,
		MaxIdle:     poolMaxIdle,
		MaxCap:      poolMaxCap,
		IdleTimeout: poolMaxIdleTime * time.Second,
		Factory: func() (interface{}, error) {
			tlsConfig, err := c.loadTLSConfig(cfg)
			if err != nil {
				return nil, err
			}
			dialer := &net.Dialer{Timeout: cfg.dialTimeout()}

			var conn net.Conn
			if tlsConfig != nil {
				conn, err = tls.DialWithDialer(dialer, "tcp", address, tlsConfig)
			} else {
				conn, err = dialer.Dial("tcp", address)
			}
			if err != nil {
				return nil, err
			}

			rpcCodec := codec.MsgpackSpecRpc.ClientCodec(conn, &codec.MsgpackHandle{})
			return rpc.NewClientWithCodec(rpcCodec), nil
		},
		Close: func(v interface{}) error { return v.(*rpc.Client).Close() },
		Ping: func(v interface{}) error {
			var reply string
			return v.(*rpc.Client).Call("RPCHandler.Ping", struct{}{}, &reply)
		},
	}
	return pool.NewChannelPool(poolConfig)
}

func (c *Client) getPool(rank int) (pool.Pool, error) {
	clientPoolInf, ok := c.clients.Load(rank)
	if !ok {
		return nil, fmt.Errorf("no client pool found for rank %d", rank)
	}
	return clientPoolInf.(pool.Pool), nil
}

func (c *Client) loadTLSConfig(cfg *Config) (*tls.Config, error) {
	// if no TLS config is provided, return nil
	if cfg.ClientCert == "" || cfg.ClientKey == "" {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
	if err != nil {
		return nil, err
	}
	caCertPool, err := loadCertPool(cfg.ClientCAs)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates:       []tls.Certificate{cert},
		RootCAs:            caCertPool,
		InsecureSkipVerify: cfg.ClientSkipVerify,
	}, nil
}

func loadCertPool(files []string) (*x509.CertPool, error) {
	caCertPool := x509.NewCertPool()
	for _, file := range files {
		caCert, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if ok := caCertPool.AppendCertsFromPEM(caCert); !ok {
			return nil, fmt.Errorf("no certificate found in %s", file)
		}
	}
	return caCertPool, nil
}
