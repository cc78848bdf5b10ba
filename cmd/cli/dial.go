package main

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	"github.com/espressif/esp-bist/pkg/lib/config"
)

// dial connects to the harness server named by the remote config section,
// after the BIST_* environment has been applied on top of it.
func dial(remote config.RemoteConfig) (*grpc.ClientConn, error) {
	tlsConfig, err := remote.ClientTLS()
	if err != nil {
		return nil, err
	}
	return grpc.NewClient(remote.Addr(), grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
}

func grpcCode(err error) codes.Code {
	st, ok := status.FromError(err)
	if !ok {
		return codes.Unknown
	}
	return st.Code()
}
