package sitetype

// Thresholds tune the quality plateau monitor per site type.
type Thresholds struct {
	// Mean worthy ratio below which the worthiness window signals stop.
	WorthyThreshold float64

	// Content similarity above which the diversity window signals stop
	// (the unique-hash ratio must stay above 1 - SimilarityThreshold).
	SimilarityThreshold float64

	// Sliding window sizes.
	WorthinessWindow int
	DiversityWindow  int
}

// defaultThresholds applies to site types without a dedicated entry.
var defaultThresholds = Thresholds{
	WorthyThreshold:     0.3,
	SimilarityThreshold: 0.8,
	WorthinessWindow:    20,
	DiversityWindow:     15,
}

var thresholdTable = map[Type]Thresholds{
	// Catalog sites repeat structure heavily; tolerate low worthy ratios
	// but stop quickly on near-identical content.
	Ecommerce: {WorthyThreshold: 0.15, SimilarityThreshold: 0.95, WorthinessWindow: 25, DiversityWindow: 20},
	Banking:   {WorthyThreshold: 0.3, SimilarityThreshold: 0.8, WorthinessWindow: 20, DiversityWindow: 15},
	News:      {WorthyThreshold: 0.4, SimilarityThreshold: 0.7, WorthinessWindow: 15, DiversityWindow: 12},
	Corporate: {WorthyThreshold: 0.3, SimilarityThreshold: 0.8, WorthinessWindow: 18, DiversityWindow: 14},
	Government: {WorthyThreshold: 0.25, SimilarityThreshold: 0.85, WorthinessWindow: 22, DiversityWindow: 16},
	Educational: {WorthyThreshold: 0.3, SimilarityThreshold: 0.8, WorthinessWindow: 20, DiversityWindow: 15},
	Technology: {WorthyThreshold: 0.35, SimilarityThreshold: 0.75, WorthinessWindow: 18, DiversityWindow: 14},
}

// ThresholdsFor returns the plateau thresholds for a site type.
func ThresholdsFor(t Type) Thresholds {
	if th, ok := thresholdTable[t]; ok {
		return th
	}
	return defaultThresholds
}
