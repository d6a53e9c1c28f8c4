package models

// Evidence source types supplied by external providers.
const (
	SourceModelConfidence  = "model_confidence"
	SourceRetrievalQuality = "retrieval_quality"
	SourceMarketSignal     = "market_signal"
	SourceInjurySignal     = "injury_signal"
	SourceSharpSignal      = "sharp_signal"
	SourcePublicSignal     = "public_signal"
)

// EvidenceSource is one typed confidence signal about a parlay recommendation.
// RawConfidence and Reliability are expected in [0,1].
type EvidenceSource struct {
	SourceType    string  `json:"source_type"`
	RawConfidence float64 `json:"raw_confidence"`
	Reliability   float64 `json:"reliability"`
}

// GameContext carries the flags used for post-fusion adjustment and thresholding.
type GameContext struct {
	Preseason         bool `json:"preseason"`
	Playoff           bool `json:"playoff"`
	BackToBack        bool `json:"back_to_back"`
	NationalBroadcast bool `json:"national_broadcast"`
}
