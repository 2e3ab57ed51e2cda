// Package rpc exposes the chat service over JSON-RPC for internal clients
// such as the ingress host.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/xiaot623/gogo/marketing/internal/service"
)

// Server exposes internal RPC endpoints.
type Server struct {
	listener  net.Listener
	rpcServer *rpc.Server
	logger    *bolt.Logger
	done      chan struct{}
}

// NewServer creates a new RPC server bound to the marketing service.
func NewServer(svc *service.Service, logger *bolt.Logger) (*Server, error) {
	rpcServer := rpc.NewServer()
	handler := &Handler{service: svc, timeout: 5 * time.Minute}
	if err := rpcServer.RegisterName("Marketing", handler); err != nil {
		return nil, fmt.Errorf("register rpc handler: %w", err)
	}

	return &Server{
		rpcServer: rpcServer,
		logger:    logger,
		done:      make(chan struct{}),
	}, nil
}

// Start begins accepting RPC connections on the given address.
func (s *Server) Start(addr string) error {
	if _, err := s.Listen(addr); err != nil {
		return err
	}
	return s.Serve()
}

// Listen binds addr and returns the bound address.
func (s *Server) Listen(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.listener = ln
	return ln.Addr(), nil
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("rpc server is not listening")
	}
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				close(s.done)
				return nil
			}
			if s.logger != nil {
				s.logger.Warn().Err(err).Msg("rpc accept error")
			}
			continue
		}

		go s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}

// Shutdown stops accepting new RPC connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}

	if err := s.listener.Close(); err != nil {
		return err
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler implements the Marketing RPC methods.
type Handler struct {
	service *service.Service
	timeout time.Duration
}

// HealthRequest is the empty argument of Marketing.Health.
type HealthRequest struct{}

// Chat routes one message. Guidance and routing outcomes are replies, not
// errors; the caller inspects Success and Errors.
func (h *Handler) Chat(req *service.ChatRequest, resp *service.ChatResponse) error {
	if req == nil {
		return errors.New("chat request is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	result, err := h.service.Chat(ctx, *req)
	if err != nil {
		return err
	}
	if resp != nil {
		*resp = *service.NewChatResponse(result)
	}
	return nil
}

// Health reports storage connectivity and configuration warnings.
func (h *Handler) Health(_ *HealthRequest, resp *service.Health) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if resp != nil {
		*resp = *h.service.Health(ctx)
	}
	return nil
}
