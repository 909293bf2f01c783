package constants

// FailureReason is the canonical reason an artifact produced no candidate.
type FailureReason string

// Stable values (returned over the API; keep exact strings).
const (
	ReasonUnsupportedMediaType    FailureReason = "UnsupportedMediaType"
	ReasonExtractionFailed        FailureReason = "ExtractionFailed"
	ReasonNoTextExtracted         FailureReason = "NoTextExtracted"
	ReasonNoTransactionRecognized FailureReason = "NoTransactionRecognized"
	ReasonMalformedArchiveEntry   FailureReason = "MalformedArchiveEntry"
)

// Stage is the pipeline stage a failure happened in.
type Stage string

const (
	StageExtraction Stage = "extraction"
	StageParsing    Stage = "parsing"
)
