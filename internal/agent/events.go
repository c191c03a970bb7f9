package agent

import "time"

// Stage is a step of a campaign run.
type Stage string

const (
	StageFetchingContext   Stage = "fetching_context"
	StageEmbeddingQuery    Stage = "embedding_query"
	StageRetrievingSimilar Stage = "retrieving_similar"
	StageGeneratingText    Stage = "generating_text"
	StageGeneratingImage   Stage = "generating_image"
	StagePersisting        Stage = "persisting"
	StageIndexing          Stage = "indexing"
	StageCompleted         Stage = "completed"
	StageErrored           Stage = "errored"
)

// Severity grades an Event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is one progress observation of a run.
type Event struct {
	Step      string    `json:"step"`
	Stage     Stage     `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"type"`
}
