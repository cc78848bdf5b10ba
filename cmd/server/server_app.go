package main

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	apiv1 "github.com/espressif/esp-bist/api/v1"
	"github.com/espressif/esp-bist/pkg/lib/config"
)

// GRPCServer bundles the mTLS gRPC server with its listener.
type GRPCServer struct {
	lis net.Listener
	s   *grpc.Server
}

// NewGRPCServer listens on the remote address and serves the harness API over
// mTLS. Every call must present a client certificate carrying a SPIFFE ID.
func NewGRPCServer(service apiv1.HarnessServiceServer, remote config.RemoteConfig) (*GRPCServer, error) {
	tlsConfig, err := remote.ServerTLS()
	if err != nil {
		return nil, err
	}

	lis, err := net.Listen("tcp", remote.Addr())
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", remote.Addr(), err)
	}

	s := grpc.NewServer(grpc.Creds(credentials.NewTLS(tlsConfig)), grpc.UnaryInterceptor(authenticateUnary))
	apiv1.RegisterHarnessServiceServer(s, service)

	return &GRPCServer{lis: lis, s: s}, nil
}

// Serve starts serving gRPC on the configured listener.
func (g *GRPCServer) Serve() error {
	return g.s.Serve(g.lis)
}

// Addr returns the network address the server is bound to.
func (g *GRPCServer) Addr() net.Addr { return g.lis.Addr() }

// Stop gracefully stops the gRPC server.
func (g *GRPCServer) Stop() { g.s.GracefulStop() }
