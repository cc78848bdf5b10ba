package main

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Clients are known by the trust domain of the first spiffe:// URI in their
// certificate: spiffe://client1 is client "client1". Runs belong to the
// client that started them.

const spiffeScheme = "spiffe"

var errNoClientID = status.Error(codes.Unauthenticated, "client certificate carries no SPIFFE ID")

type clientIDKey struct{}

func withClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, id)
}

// clientID returns the identity stored by authenticateUnary.
func clientID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(clientIDKey{}).(string)
	return id, ok && id != ""
}

// peerClientID reads the identity from the verified TLS peer certificate.
// An identity already on the context wins.
func peerClientID(ctx context.Context) (string, bool) {
	if id, ok := clientID(ctx); ok {
		return id, true
	}
	p, ok := peer.FromContext(ctx)
	if !ok || p == nil {
		return "", false
	}
	info, ok := p.AuthInfo.(credentials.TLSInfo)
	if !ok || len(info.State.PeerCertificates) == 0 || info.State.PeerCertificates[0] == nil {
		return "", false
	}
	for _, uri := range info.State.PeerCertificates[0].URIs {
		if uri != nil && uri.Scheme == spiffeScheme && uri.Host != "" {
			return uri.Host, true
		}
	}
	return "", false
}

// authenticateUnary rejects calls without a client identity and stores it on
// the context for the handlers.
func authenticateUnary(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	id, ok := peerClientID(ctx)
	if !ok {
		return nil, errNoClientID
	}
	return handler(withClientID(ctx, id), req)
}

// checkOwnership lets only the client that started runID read it. Unknown runs
// are denied the same way so run ids cannot be probed.
func (s *HarnessServiceServer) checkOwnership(ctx context.Context, runID string) error {
	id, ok := clientID(ctx)
	if !ok {
		return errNoClientID
	}

	s.mu.RLock()
	owner, known := s.ownersMap[runID]
	s.mu.RUnlock()

	if !known || owner != id {
		return status.Error(codes.PermissionDenied, "only the client that started the run can access it")
	}
	return nil
}
