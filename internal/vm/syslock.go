package vm

import "github.com/klingon-tech/cellnode/pkg/crypto"

// Assemble concatenates instrs into one bytecode blob, the production
// counterpart of the assembler tests use: spec.md treats bytecode as
// opaque, so anything that needs to emit script code — including this
// file's bundled lock — goes through EncodeInstruction the same way.
func Assemble(instrs ...Instruction) []byte {
	out := make([]byte, 0, len(instrs)*InstructionSize)
	for _, in := range instrs {
		out = append(out, EncodeInstruction(in)...)
	}
	return out
}

func instrOffset(n int) int64 { return int64(n) * InstructionSize }

// Memory layout the bundled secp256k1 lock below reads and writes in its
// own process's address space.
const (
	secp256k1HashAddr   = 0
	secp256k1HashLen    = 32
	secp256k1SigAddr    = 64
	secp256k1SigLen     = 64
	secp256k1PubKeyAddr = 128
	secp256k1PubKeyLen  = 33
)

// secp256k1LockCode is the reserved system lock script: it loads the
// transaction hash, loads its own group's first witness (signature ||
// compressed pubkey), and exits 0 only if verify_signature confirms the
// Schnorr signature over the hash. It does not fold witness lengths into
// the signed digest the way a full sighash_all commitment would — see
// DESIGN.md's C5 entry for why.
var secp256k1LockCode = Assemble(
	// load_tx_hash into secp256k1HashAddr
	Instruction{Op: OpLoadImm, Rd: RegA0, Imm: secp256k1HashAddr},
	Instruction{Op: OpLoadImm, Rd: RegA1, Imm: secp256k1HashLen},
	Instruction{Op: OpLoadImm, Rd: RegA2, Imm: 0},
	Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysLoadTxHash},
	Instruction{Op: OpEcall},

	// load_witness(group_input 0) into secp256k1SigAddr (sig||pubkey)
	Instruction{Op: OpLoadImm, Rd: RegA0, Imm: secp256k1SigAddr},
	Instruction{Op: OpLoadImm, Rd: RegA1, Imm: secp256k1SigLen + secp256k1PubKeyLen},
	Instruction{Op: OpLoadImm, Rd: RegA2, Imm: 0},
	Instruction{Op: OpLoadImm, Rd: RegA3, Imm: 0},
	Instruction{Op: OpLoadImm, Rd: RegA4, Imm: int64(SourceGroupInput)},
	Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysLoadWitness},
	Instruction{Op: OpEcall},

	// verify_signature(hash, sig, pubkey)
	Instruction{Op: OpLoadImm, Rd: RegA0, Imm: secp256k1HashAddr},
	Instruction{Op: OpLoadImm, Rd: RegA1, Imm: secp256k1HashLen},
	Instruction{Op: OpLoadImm, Rd: RegA2, Imm: secp256k1SigAddr},
	Instruction{Op: OpLoadImm, Rd: RegA3, Imm: secp256k1SigLen},
	Instruction{Op: OpLoadImm, Rd: RegA4, Imm: secp256k1PubKeyAddr},
	Instruction{Op: OpLoadImm, Rd: RegA5, Imm: secp256k1PubKeyLen},
	Instruction{Op: OpLoadImm, Rd: RegA7, Imm: SysVerifySignature},
	Instruction{Op: OpEcall}, // index 19

	Instruction{Op: OpMove, Rd: 1, Rs1: RegA1},                // index 20: save verify result
	Instruction{Op: OpJumpIfNotZero, Rs1: 1, Imm: instrOffset(24)}, // index 21

	Instruction{Op: OpLoadImm, Rd: RegA0, Imm: 1}, // index 22: failure exit code
	Instruction{Op: OpHalt},                       // index 23

	Instruction{Op: OpLoadImm, Rd: RegA0, Imm: 0}, // index 24: success exit code
	Instruction{Op: OpHalt},                       // index 25
)

// Secp256k1LockCodeHash is the data hash a script must name as its
// code_hash (with HashTypeData) to resolve to the bundled lock above.
var Secp256k1LockCodeHash = crypto.Hash(secp256k1LockCode)

// Secp256k1LockCode returns the bundled lock's bytecode.
func Secp256k1LockCode() []byte { return secp256k1LockCode }
