package main

import (
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	apiv1 "github.com/espressif/esp-bist/api/v1"
	"github.com/espressif/esp-bist/pkg/lib/scenario"
)

func toAPIRun(res scenario.Result) *apiv1.Run {
	run := &apiv1.Run{
		ID:        res.ID,
		Scenario:  res.Scenario.Ref(),
		Passed:    res.Passed,
		Summary:   res.Summary(),
		Expected:  res.Scenario.Expect,
		Observed:  res.Outcome.Observed,
		Forbidden: res.Forbidden,
		StartTime: timestamppb.New(res.Started),
		Duration:  durationpb.New(res.Duration),
	}
	if res.Err != nil {
		run.Error = res.Err.Error()
	}
	if res.TeardownErr != nil {
		run.TeardownError = res.TeardownErr.Error()
	}
	return run
}
