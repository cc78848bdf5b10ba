package apiv1

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// RunScenarioRequest names the scenario to run as "suite/name".
type RunScenarioRequest struct {
	Scenario string
}

func (r *RunScenarioRequest) ToStruct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"scenario": structpb.NewStringValue(r.Scenario),
	}}
}

// RunScenarioRequestFromStruct decodes a RunScenario request.
func RunScenarioRequestFromStruct(s *structpb.Struct) (*RunScenarioRequest, error) {
	ref, err := requiredString(s, "scenario")
	if err != nil {
		return nil, err
	}
	return &RunScenarioRequest{Scenario: ref}, nil
}

// GetRunRequest identifies a run record.
type GetRunRequest struct {
	RunID string
}

func (r *GetRunRequest) ToStruct() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"run_id": structpb.NewStringValue(r.RunID),
	}}
}

// GetRunRequestFromStruct decodes a GetRun request.
func GetRunRequestFromStruct(s *structpb.Struct) (*GetRunRequest, error) {
	id, err := requiredString(s, "run_id")
	if err != nil {
		return nil, err
	}
	return &GetRunRequest{RunID: id}, nil
}

// Run is the record of one scenario run.
type Run struct {
	ID            string
	Scenario      string
	Passed        bool
	Summary       string
	Expected      []string
	Observed      []string
	Forbidden     []string
	Error         string
	TeardownError string
	StartTime     *timestamppb.Timestamp
	Duration      *durationpb.Duration
}

func (r *Run) ToStruct() *structpb.Struct {
	fields := map[string]*structpb.Value{
		"id":             structpb.NewStringValue(r.ID),
		"scenario":       structpb.NewStringValue(r.Scenario),
		"passed":         structpb.NewBoolValue(r.Passed),
		"summary":        structpb.NewStringValue(r.Summary),
		"expected":       stringList(r.Expected),
		"observed":       stringList(r.Observed),
		"forbidden":      stringList(r.Forbidden),
		"error":          structpb.NewStringValue(r.Error),
		"teardown_error": structpb.NewStringValue(r.TeardownError),
	}
	if r.StartTime != nil {
		fields["start_time"] = structpb.NewStringValue(r.StartTime.AsTime().Format(time.RFC3339Nano))
	}
	if r.Duration != nil {
		fields["duration"] = structpb.NewStringValue(r.Duration.AsDuration().String())
	}
	return &structpb.Struct{Fields: fields}
}

// RunFromStruct decodes a run record.
func RunFromStruct(s *structpb.Struct) (*Run, error) {
	id, err := requiredString(s, "id")
	if err != nil {
		return nil, err
	}
	f := s.GetFields()
	r := &Run{
		ID:            id,
		Scenario:      f["scenario"].GetStringValue(),
		Passed:        f["passed"].GetBoolValue(),
		Summary:       f["summary"].GetStringValue(),
		Expected:      stringsOf(f["expected"]),
		Observed:      stringsOf(f["observed"]),
		Forbidden:     stringsOf(f["forbidden"]),
		Error:         f["error"].GetStringValue(),
		TeardownError: f["teardown_error"].GetStringValue(),
	}
	if v := f["start_time"].GetStringValue(); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("start_time: %w", err)
		}
		r.StartTime = timestamppb.New(t)
	}
	if v := f["duration"].GetStringValue(); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("duration: %w", err)
		}
		r.Duration = durationpb.New(d)
	}
	return r, nil
}

func requiredString(s *structpb.Struct, key string) (string, error) {
	v := s.GetFields()[key].GetStringValue()
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func stringList(ss []string) *structpb.Value {
	vals := make([]*structpb.Value, len(ss))
	for i, s := range ss {
		vals[i] = structpb.NewStringValue(s)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals})
}

func stringsOf(v *structpb.Value) []string {
	var out []string
	for _, item := range v.GetListValue().GetValues() {
		out = append(out, item.GetStringValue())
	}
	return out
}
