package vm

// Syscall selectors, placed in A7 per spec.md §4.4.4. Numeric values are
// this implementation's own assignment; nothing outside this repository
// needs to agree with them bit-for-bit.
const (
	SysLoadTxHash = iota + 2001
	SysLoadTransaction
	SysLoadScriptHash
	SysLoadScript
	SysLoadCell
	SysLoadInput
	SysLoadHeader
	SysLoadWitness
	SysLoadCellData
	SysLoadCellDataHash
	SysLoadCellByField
	SysLoadHeaderByField
	SysLoadInputByField
	SysDebug
	SysVMVersion
	SysCurrentCycles
	SysExec
	SysSpawn
	SysWait
	SysProcessID
	SysPipe
	SysRead
	SysWrite
	SysClose
	SysInheritedFd
	SysGetMemoryLimit
	SysSetContent
	SysVerifySignature
)

// Status codes returned in A0 after a syscall, per spec.md §4.4.4.
const (
	StatusSuccess     = 0
	StatusItemMissing = 2
)

// Source selects which index space load_cell/load_input/etc. addresses
// into (spec.md §4.4.4: "index source ∈ {inputs, outputs, cell_deps,
// header_deps, group_inputs, group_outputs}").
type Source uint64

const (
	SourceInput Source = iota
	SourceOutput
	SourceCellDep
	SourceHeaderDep
	SourceGroupInput
	SourceGroupOutput
)

// Field selects a single sub-field for load_*_by_field.
type Field uint64

const (
	FieldCapacity Field = iota
	FieldLockHash
	FieldTypeHash
	FieldOccupiedCapacity
	FieldDataHash
	FieldSince
	FieldNumber
	FieldTimestamp
	FieldEpoch
	FieldCompactTarget
	FieldParentHash
)
