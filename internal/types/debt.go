package types

// DebitLineStatus tracks the lifecycle of a single charge line.
type DebitLineStatus string

const (
	DebitLineActive   DebitLineStatus = "active"
	DebitLineAnnulled DebitLineStatus = "annulled"
	DebitLineSettled  DebitLineStatus = "settled"
)

func (s DebitLineStatus) Validate() bool {
	switch s {
	case DebitLineActive, DebitLineAnnulled, DebitLineSettled:
		return true
	}
	return false
}

// DocumentSeries identifies the numbering series a document draws from.
type DocumentSeries string

const (
	SeriesDebit DocumentSeries = "debit"
)
