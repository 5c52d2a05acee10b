package verifier

// BlockState is a block's position in the single-step, idempotent state
// machine spec.md §4.5.4 defines. BlockInvalid is terminal: a hash that
// reaches it never transitions again.
type BlockState int

const (
	Received BlockState = iota
	HeaderValid
	BlockStored
	BlockValid
	BlockInvalid
)

func (s BlockState) String() string {
	switch s {
	case Received:
		return "Received"
	case HeaderValid:
		return "HeaderValid"
	case BlockStored:
		return "BlockStored"
	case BlockValid:
		return "BlockValid"
	case BlockInvalid:
		return "BlockInvalid"
	default:
		return "Unknown"
	}
}

// CanAdvanceTo reports whether from -> to is one of the transitions the
// state machine allows. Both the Received->HeaderValid->BlockStored->
// BlockValid happy path and a transition to BlockInvalid from any
// non-terminal state are legal; BlockInvalid has no outgoing transition
// (not even to itself), and advancing from any other state to itself is a
// no-op allowed by idempotence.
func (from BlockState) CanAdvanceTo(to BlockState) bool {
	if from == to {
		return from != BlockInvalid
	}
	if from == BlockInvalid {
		return false
	}
	if to == BlockInvalid {
		return true
	}
	return to == from+1
}
