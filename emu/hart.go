package emu

import (
	"github.com/sarchlab/difftest/insts"
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// PC is the address of the instruction that was executed.
	PC uint64

	// Inst is the raw instruction word, 0 if the fetch faulted.
	Inst uint32

	// Trap is set if the instruction raised an exception.
	Trap *Trap
}

// Hart executes RV64IM + Zicsr instructions functionally.
type Hart struct {
	regFile *RegFile
	csr     *CSRFile
	bus     Bus
	decoder *insts.Decoder
	priv    Privilege

	alu        *ALU
	lsu        *LoadStoreUnit
	branchUnit *BranchUnit

	instructionCount uint64
	countersWritten  bool
}

// HartOption is a functional option for configuring the Hart.
type HartOption func(*Hart)

// WithBus sets the memory the hart fetches from and loads and stores to.
func WithBus(bus Bus) HartOption {
	return func(h *Hart) {
		h.bus = bus
	}
}

// WithEntry sets the reset PC.
func WithEntry(pc uint64) HartOption {
	return func(h *Hart) {
		h.regFile.PC = pc
	}
}

// WithHartID sets mhartid.
func WithHartID(id uint64) HartOption {
	return func(h *Hart) {
		h.csr.hartID = id
	}
}

// NewHart creates a hart in machine mode. Without WithBus it has no memory
// and every access faults.
func NewHart(opts ...HartOption) *Hart {
	h := &Hart{
		regFile: &RegFile{},
		csr:     NewCSRFile(0),
		decoder: insts.NewDecoder(),
		priv:    PrivMachine,
	}

	for _, opt := range opts {
		opt(h)
	}
	if h.bus == nil {
		h.bus = noMemory{}
	}

	h.alu = NewALU(h.regFile)
	h.lsu = NewLoadStoreUnit(h.regFile, h.bus)
	h.branchUnit = NewBranchUnit(h.regFile)

	return h
}

// RegFile returns the hart's register file.
func (h *Hart) RegFile() *RegFile {
	return h.regFile
}

// CSR returns the hart's CSR file.
func (h *Hart) CSR() *CSRFile {
	return h.csr
}

// Bus returns the hart's memory.
func (h *Hart) Bus() Bus {
	return h.bus
}

// Privilege returns the current privilege mode.
func (h *Hart) Privilege() Privilege {
	return h.priv
}

// PC returns the address of the next instruction.
func (h *Hart) PC() uint64 {
	return h.regFile.PC
}

// InstructionCount returns the number of instructions executed, including
// those that trapped.
func (h *Hart) InstructionCount() uint64 {
	return h.instructionCount
}

// Plan decodes word and reports the memory access it would perform from
// the current state.
func (h *Hart) Plan(word uint32) (Access, bool) {
	return h.lsu.Plan(h.decoder.Decode(word))
}

// Step fetches and executes a single instruction.
func (h *Hart) Step() StepResult {
	pc := h.regFile.PC

	word, err := h.bus.Load(pc, 4)
	if err != nil {
		t := accessFault(err, CauseFetchAccess, pc)
		h.retire(t)
		h.TakeTrap(t.Cause, pc, t.TVal)
		return StepResult{PC: pc, Trap: t}
	}

	return h.Execute(uint32(word))
}

// Execute runs an already fetched instruction word at the current PC.
func (h *Hart) Execute(word uint32) StepResult {
	pc := h.regFile.PC
	inst := h.decoder.Decode(word)

	t := h.execute(inst)
	h.retire(t)
	if t != nil {
		h.TakeTrap(t.Cause, pc, t.TVal)
	}

	return StepResult{PC: pc, Inst: word, Trap: t}
}

// retire advances the counters. A trapping instruction does not count as
// retired, and an explicit counter write suppresses the increment.
func (h *Hart) retire(t *Trap) {
	h.instructionCount++
	if h.countersWritten {
		h.countersWritten = false
		return
	}

	h.csr.mcycle++
	if t == nil {
		h.csr.minstret++
	}
}

func (h *Hart) execute(inst *insts.Instruction) *Trap {
	switch {
	case inst.Op == insts.OpUnknown:
		return illegal(inst.Raw)
	case inst.IsLoad(), inst.IsStore():
		if t := h.lsu.Execute(inst); t != nil {
			return t
		}
	case inst.IsBranch(), inst.Op == insts.OpJAL, inst.Op == insts.OpJALR:
		return h.branchUnit.Execute(inst)
	case inst.Format == insts.FormatCSR:
		if t := h.executeCSR(inst); t != nil {
			return t
		}
	case inst.Format == insts.FormatSystem:
		return h.executeSystem(inst)
	case inst.Op == insts.OpFENCE, inst.Op == insts.OpFENCEI:
	default:
		if !h.alu.Execute(inst) {
			return illegal(inst.Raw)
		}
	}

	h.regFile.PC += 4
	return nil
}

func (h *Hart) executeSystem(inst *insts.Instruction) *Trap {
	switch inst.Op {
	case insts.OpECALL:
		return &Trap{Cause: CauseUserEcall + uint64(h.priv)}
	case insts.OpEBREAK:
		return &Trap{Cause: CauseBreakpoint, TVal: h.regFile.PC}
	case insts.OpMRET:
		return h.mret(inst.Raw)
	case insts.OpSRET:
		return h.sret(inst.Raw)
	case insts.OpWFI:
		if h.priv == PrivUser || (h.priv == PrivSupervisor && h.csr.mstatus&MStatusTW != 0) {
			return illegal(inst.Raw)
		}
	case insts.OpSFENCEVMA:
		if h.priv == PrivUser || (h.priv == PrivSupervisor && h.csr.mstatus&MStatusTVM != 0) {
			return illegal(inst.Raw)
		}
	default:
		return illegal(inst.Raw)
	}

	h.regFile.PC += 4
	return nil
}

// executeCSR implements the Zicsr read-modify-write forms. CSRRW with rd=x0
// does not read; the set and clear forms with a zero source do not write.
func (h *Hart) executeCSR(inst *insts.Instruction) *Trap {
	num := inst.CSR
	writes := true
	src := h.regFile.ReadReg(inst.Rs1)
	if inst.Op >= insts.OpCSRRWI {
		src = uint64(inst.Imm)
	}
	switch inst.Op {
	case insts.OpCSRRS, insts.OpCSRRC, insts.OpCSRRSI, insts.OpCSRRCI:
		writes = inst.Rs1 != 0
	}

	if !h.csrAccessible(num, writes) {
		return illegal(inst.Raw)
	}

	old, ok := h.csr.Peek(num)
	if !ok {
		return illegal(inst.Raw)
	}

	if writes {
		v := src
		switch inst.Op {
		case insts.OpCSRRS, insts.OpCSRRSI:
			v = old | src
		case insts.OpCSRRC, insts.OpCSRRCI:
			v = old &^ src
		}
		if !h.csr.Poke(num, v) {
			return illegal(inst.Raw)
		}
		if num == insts.CSRMCycle || num == insts.CSRMInstret {
			h.countersWritten = true
		}
	}

	h.regFile.WriteReg(inst.Rd, old)
	return nil
}

func (h *Hart) csrAccessible(num uint16, writes bool) bool {
	if Privilege((num>>8)&3) > h.priv {
		return false
	}
	if writes && num>>10 == 3 {
		return false
	}
	if num == insts.CSRSATP && h.priv == PrivSupervisor && h.csr.mstatus&MStatusTVM != 0 {
		return false
	}
	return true
}
