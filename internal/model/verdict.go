package model

// FraudVerdict is the scoring service's answer for one record.
//
// RemoteRecurring and RemoteFraudCount reflect the service's own history
// tracking, if any. They are informational only: the local history store is
// authoritative for the recurring-fraud flag this pipeline reports, and a
// disagreement between the two is logged for operator review.
type FraudVerdict struct {
	ModelUsed        string
	Explanation      string
	RiskScore        float64
	RemoteFraudCount int
	IsFraud          bool
	RemoteRecurring  bool
}
