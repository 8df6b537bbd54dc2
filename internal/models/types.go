package models

// ScanStatus represents the current state of a scan
type ScanStatus string

const (
	StatusPending   ScanStatus = "Pending"
	StatusStarting  ScanStatus = "Starting"
	StatusRunning   ScanStatus = "Running"
	StatusCompleted ScanStatus = "Completed"
	StatusFailed    ScanStatus = "Failed"
)

// Terminal reports whether no further transitions can occur from s.
func (s ScanStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Active reports whether progress is meaningful for s.
func (s ScanStatus) Active() bool {
	return s == StatusStarting || s == StatusRunning
}

// Risk is the severity classification reported by the scanner.
// The raw value is kept as received; use Level to classify it.
type Risk string

const (
	RiskHigh          Risk = "High"
	RiskMedium        Risk = "Medium"
	RiskLow           Risk = "Low"
	RiskInformational Risk = "Informational"
)

// RiskLevels lists the known risk levels, most severe first.
var RiskLevels = []Risk{RiskHigh, RiskMedium, RiskLow, RiskInformational}

// Level maps r onto one of the four known levels. Matching is
// case-sensitive; anything unrecognised is Informational.
func (r Risk) Level() Risk {
	switch r {
	case RiskHigh, RiskMedium, RiskLow, RiskInformational:
		return r
	default:
		return RiskInformational
	}
}
