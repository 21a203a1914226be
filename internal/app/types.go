package app

import (
	"time"

	"apt-archive/internal/types"
)

type OpenRequest struct {
	ConfigPath         string
	Workers            int
	BuilderParallelism int
	CompressionLevel   int
	SigningKey         string
	GPGHomedir         string
	Validation         types.ValidationMode
}

type PublishRequest struct {
	Names      []string
	Validation types.ValidationMode
}

type PublishResult struct {
	Outcomes []types.PublishOutcome
	Failed   int
}

type ServeRequest struct {
	Listen          string
	ShutdownTimeout time.Duration
}
