package types

import "time"

type PublishState string

const (
	PublishStatePending   PublishState = "pending"
	PublishStateRunning   PublishState = "running"
	PublishStateSucceeded PublishState = "succeeded"
	PublishStateFailed    PublishState = "failed"
)

type ErrorKind string

const (
	ErrorKindEmptyArchitectures ErrorKind = "EmptyArchitectures"
	ErrorKindEmptyComponents    ErrorKind = "EmptyComponents"
	ErrorKindUnknownRepository  ErrorKind = "UnknownRepository"
	ErrorKindBuild              ErrorKind = "BuildError"
	ErrorKindCancelled          ErrorKind = "Cancelled"
	ErrorKindInternal           ErrorKind = "InternalError"
	ErrorKindMalformedRequest   ErrorKind = "MalformedRequest"
	ErrorKindNotFound           ErrorKind = "NotFound"
)

type ValidationMode string

const (
	ValidationModeFailFast     ValidationMode = "fail-fast"
	ValidationModeFailComplete ValidationMode = "fail-complete"
)

type OutcomeError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// PublishOutcome is the per-repository result of one batch item.
type PublishOutcome struct {
	Repository       string        `json:"repository"`
	DistributionPath string        `json:"distributionPath"`
	State            PublishState  `json:"state"`
	Error            *OutcomeError `json:"error,omitempty"`
	StartedAt        time.Time     `json:"startedAt"`
	FinishedAt       time.Time     `json:"finishedAt"`
}

func (o PublishOutcome) Succeeded() bool {
	return o.State == PublishStateSucceeded
}
