package types

import "testing"

func TestOccupiedCapacity(t *testing.T) {
	lock := Script{CodeHash: Hash256{1}, HashType: HashTypeType, Args: []byte("abc")}
	c := CellOutput{Capacity: 0, Lock: lock}
	data := []byte("hello world")

	occupied := c.OccupiedCapacity(data)
	want := Capacity(8 + lock.SerializedSize() + len(data))
	if occupied != want {
		t.Fatalf("want %d, got %d", want, occupied)
	}
}

func TestOccupiedCapacityWithType(t *testing.T) {
	lock := Script{CodeHash: Hash256{1}, HashType: HashTypeType}
	typ := Script{CodeHash: Hash256{2}, HashType: HashTypeData, Args: []byte("xy")}
	c := CellOutput{Capacity: 0, Lock: lock, Type: &typ}

	without := CellOutput{Capacity: 0, Lock: lock}.OccupiedCapacity(nil)
	with := c.OccupiedCapacity(nil)
	if with <= without {
		t.Fatalf("expected type script to increase occupied capacity")
	}
}

func TestCellOutputValidate(t *testing.T) {
	lock := Script{CodeHash: Hash256{1}, HashType: HashTypeType}
	data := []byte("x")
	c := CellOutput{Capacity: 0, Lock: lock}
	if err := c.Validate(data); err == nil {
		t.Fatalf("expected validation error for under-funded cell")
	}

	occupied := c.OccupiedCapacity(data)
	c.Capacity = occupied
	if err := c.Validate(data); err != nil {
		t.Fatalf("expected valid cell, got %v", err)
	}
}
