package types

// ProposalShortID is the first 10 bytes of a transaction's tx_hash, the
// compact reference committed to by a block's proposals_hash and later
// resolved against a proposed/committed transaction (spec.md §4.3 proposal
// window).
type ProposalShortID [10]byte

// ProposalShortIDFromHash truncates a tx_hash into its short id.
func ProposalShortIDFromHash(h Hash256) ProposalShortID {
	var id ProposalShortID
	copy(id[:], h[:10])
	return id
}

// UncleBlock is a valid-but-not-canonical block referenced by a later
// block for partial PoW credit; it carries its header and the proposals it
// itself proposed, but not its transactions.
type UncleBlock struct {
	Header    Header            `json:"header"`
	Proposals []ProposalShortID `json:"proposals"`
}

// Block is a header together with the body it commits to: an ordered
// transaction list (transaction 0 is the cellbase), up to two uncles, the
// short ids it proposes, and an optional extension field.
type Block struct {
	Header       Header            `json:"header"`
	Transactions []Transaction     `json:"transactions"`
	Uncles       []UncleBlock      `json:"uncles"`
	Proposals    []ProposalShortID `json:"proposals"`
	Extension    []byte            `json:"extension"`
}

// Cellbase returns the block's first transaction, which must satisfy the
// cellbase shape (spec.md §3 Block, "Cellbase invariant").
func (b *Block) Cellbase() *Transaction {
	if len(b.Transactions) == 0 {
		return nil
	}
	return &b.Transactions[0]
}

// HasValidCellbasePosition reports whether transaction 0, and only
// transaction 0, satisfies the cellbase shape.
func (b *Block) HasValidCellbasePosition() bool {
	if len(b.Transactions) == 0 || !b.Transactions[0].IsCellbase() {
		return false
	}
	for _, tx := range b.Transactions[1:] {
		if tx.IsCellbase() {
			return false
		}
	}
	return true
}

// NonCellbaseTransactions returns every transaction after the cellbase.
func (b *Block) NonCellbaseTransactions() []Transaction {
	if len(b.Transactions) == 0 {
		return nil
	}
	return b.Transactions[1:]
}
