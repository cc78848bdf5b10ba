package main

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	apiv1 "github.com/espressif/esp-bist/api/v1"
)

func (s *HarnessServiceServer) RunScenario(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	req, err := apiv1.RunScenarioRequestFromStruct(request)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	owner, ok := clientID(ctx)
	if !ok {
		return nil, errNoClientID
	}

	selected, err := s.catalog.Select(req.Scenario)
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "scenario not found: %s", req.Scenario)
	}
	if len(selected) != 1 {
		return nil, status.Errorf(codes.InvalidArgument, "%q selects %d scenarios, want exactly one", req.Scenario, len(selected))
	}

	s.runMu.Lock()
	s.logger.Info("Running scenario", "scenario", req.Scenario, "client", owner)
	result := s.runner.Run(ctx, selected[0])
	s.runMu.Unlock()

	run := toAPIRun(result)

	s.mu.Lock()
	s.runs[run.ID] = run
	s.ownersMap[run.ID] = owner
	s.mu.Unlock()

	return run.ToStruct(), nil
}
