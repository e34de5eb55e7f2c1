package domain

import "time"

// Digest is the Markdown summary produced by synthesis.
type Digest string

// NoResultsDigest is delivered when retrieval finds nothing relevant.
const NoResultsDigest Digest = "# Your News Digest\n\nNo headlines matching your preferences were found in today's news.\n"

// DeliveryStatus enumerates delivery outcomes.
type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "success"
	DeliveryError   DeliveryStatus = "error"
)

// DeliveryResult reports how sending the digest went.
type DeliveryResult struct {
	Status  DeliveryStatus `json:"status"`
	Message string         `json:"message"`
}

// OK reports a successful send.
func (r DeliveryResult) OK() bool {
	return r.Status == DeliverySuccess
}

// Stage names a pipeline step.
type Stage string

const (
	StageRetrieval Stage = "retrieval"
	StageFetch     Stage = "fetch"
	StageSynthesis Stage = "synthesis"
	StageDelivery  Stage = "delivery"
)

// RunState is a pipeline state machine node.
type RunState string

const (
	StateIdle         RunState = "idle"
	StateRetrieving   RunState = "retrieving"
	StateFetching     RunState = "fetching"
	StateSynthesizing RunState = "synthesizing"
	StateDelivering   RunState = "delivering"
	StateDone         RunState = "done"
	StateAborted      RunState = "aborted"
)

// DigestRequest is one pipeline invocation.
type DigestRequest struct {
	Preferences string
	Recipient   string
}

// RunRecord is the persisted audit row of one pipeline run.
type RunRecord struct {
	ID             string
	Recipient      string
	Preferences    string
	State          RunState
	FailedStage    Stage
	Error          string
	HeadlineCount  int
	FailedFetches  int
	DeliveryStatus DeliveryStatus
	StartedAt      time.Time
	FinishedAt     time.Time
}
