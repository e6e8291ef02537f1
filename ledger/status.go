package ledger

// Phase is one stage of a transaction's life. The sequence is strictly
// forward: Signing → Broadcasting → Included → Finalized, or any of the
// first three → Failed. There are no backward transitions.
type Phase int

const (
	PhaseSigning Phase = iota + 1
	PhaseBroadcasting
	PhaseIncluded
	PhaseFinalized
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseSigning:
		return "signing"
	case PhaseBroadcasting:
		return "broadcasting"
	case PhaseIncluded:
		return "included"
	case PhaseFinalized:
		return "finalized"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase ends the submission.
func (p Phase) Terminal() bool {
	return p == PhaseFinalized || p == PhaseFailed
}

// StatusEvent is one submission progress report. Which fields are set
// depends on the phase:
//
//   - Included: TxHash and BlockHash carry the provisional result.
//   - Finalized: TxHash, BlockHash, and for store calls StoredIndex and
//     StoredCID (the identifier the ledger recomputed). Err is set when the
//     chain included the transaction but its dispatch failed.
//   - Failed: Err carries the underlying cause.
type StatusEvent struct {
	Phase Phase

	TxHash      string
	BlockHash   string
	StoredIndex *uint64
	StoredCID   string

	Err error
}
