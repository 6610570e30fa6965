package metrics

const (
	LabelResource = "resource"
	LabelPhase    = "phase"
	LabelKind     = "kind"
	LabelReason   = "reason"
)

const (
	ResourceSourceSessions = "source_sessions"
	ResourceBinarySessions = "binary_sessions"
	ResourceSymbols        = "symbols"
	ResourceReturnTypes    = "return_types"
)

const (
	ReasonStale       = "stale"
	ReasonCancelled   = "cancelled"
	ReasonCycle       = "cycle"
	ReasonConsistency = "consistency"
	ReasonTransformer = "transformer"
	ReasonOther       = "other"
)

const (
	InvalidationRemoved    = "removed"
	InvalidationDependency = "dependency"
)
