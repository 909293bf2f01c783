package constants

// AnomalyKind is a statistical deviation flag raised against a user's history.
type AnomalyKind string

const (
	AmountOutlier AnomalyKind = "AmountOutlier"
	UnusualHour   AnomalyKind = "UnusualHour"
	HighFrequency AnomalyKind = "HighFrequency"
	NovelMerchant AnomalyKind = "NovelMerchant"
)

var allAnomalyKinds = []AnomalyKind{AmountOutlier, UnusualHour, HighFrequency, NovelMerchant}

// AnomalyKinds returns every kind in declaration order.
func AnomalyKinds() []AnomalyKind {
	out := make([]AnomalyKind, len(allAnomalyKinds))
	copy(out, allAnomalyKinds)
	return out
}
