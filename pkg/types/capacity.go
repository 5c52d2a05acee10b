package types

import "fmt"

// Capacity is an unsigned 64-bit count of shannon, the ledger's minimum
// value unit. It also bounds the maximum serialized byte size a cell may
// occupy on-chain (see OccupiedCapacity).
type Capacity uint64

// ShannonsPerCKByte is the number of shannons in one CKByte, the unit in
// which occupied capacity is priced (one shannon per byte of on-chain data).
const ShannonsPerCKByte Capacity = 100_000_000

// Add returns c+other, or an error if the sum overflows uint64.
func (c Capacity) Add(other Capacity) (Capacity, error) {
	if c > ^Capacity(0)-other {
		return 0, fmt.Errorf("capacity overflow: %d + %d", c, other)
	}
	return c + other, nil
}

// Sub returns c-other, or an error if other > c.
func (c Capacity) Sub(other Capacity) (Capacity, error) {
	if other > c {
		return 0, fmt.Errorf("capacity underflow: %d - %d", c, other)
	}
	return c - other, nil
}

// SumCapacities adds a slice of capacities, returning an error on overflow.
func SumCapacities(cs []Capacity) (Capacity, error) {
	var total Capacity
	var err error
	for _, c := range cs {
		total, err = total.Add(c)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
