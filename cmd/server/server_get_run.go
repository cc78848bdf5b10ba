package main

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	apiv1 "github.com/espressif/esp-bist/api/v1"
)

func (s *HarnessServiceServer) GetRun(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	req, err := apiv1.GetRunRequestFromStruct(request)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := s.checkOwnership(ctx, req.RunID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	run, ok := s.runs[req.RunID]
	s.mu.RUnlock()
	if !ok {
		return nil, status.Errorf(codes.NotFound, "run not found: %s", req.RunID)
	}

	return run.ToStruct(), nil
}
