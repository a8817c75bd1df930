package validator

// confinement is the per-register proof state inside one bundle.
type confinement struct {
	confined bool
	cleared  uint32
	cond     Cond
}

// maskChecker tracks which registers were confined by a qualifying mask
// earlier in the current bundle.
type maskChecker struct {
	dataMask uint32
	codeMask uint32
	exempt   RegisterList
	name     func(Register) string

	regs [MaxRegisters]confinement
	// dirty holds exempt registers that were clobbered and not yet
	// re-masked in this bundle.
	dirty   RegisterList
	dirtyAt [MaxRegisters]int
}

func newMaskChecker(t Target) *maskChecker {
	name := t.RegisterName
	if name == nil {
		name = Register.String
	}
	return &maskChecker{
		dataMask: t.DataMask,
		codeMask: t.CodeMask,
		exempt:   t.Exempt,
		name:     name,
	}
}

func (m *maskChecker) reset() {
	m.regs = [MaxRegisters]confinement{}
	m.dirty = 0
}

// endBundle reports exempt registers left unconfined and clears all state.
func (m *maskChecker) endBundle(vs *violations) {
	m.dirty.Each(func(r Register) {
		vs.add(m.dirtyAt[r], UnsafeMemoryReference,
			"%s is modified and not re-masked before the end of its bundle", m.name(r))
	})
	m.reset()
}

// check applies one instruction. Restricted uses are judged against the
// state before the instruction's own writes.
func (m *maskChecker) check(inst *Instruction, vs *violations, judgeUses bool) {
	if judgeUses {
		for _, u := range inst.Uses {
			m.use(inst, u, vs)
		}
	}

	inst.Defs.Each(func(r Register) {
		m.regs[r] = confinement{}
		if m.exempt.Contains(r) && !inst.BoundedDefs.Contains(r) && !m.dirty.Contains(r) {
			m.dirty = m.dirty.Add(r)
			m.dirtyAt[r] = inst.Offset
		}
	})

	if inst.SetsFlags {
		for i := range m.regs {
			if m.regs[i].confined && m.regs[i].cond != CondAlways {
				m.regs[i] = confinement{}
			}
		}
	}

	if mk := inst.Mask; mk != nil && mk.Reg < MaxRegisters && mk.Cleared&m.dataMask == m.dataMask {
		m.confine(inst, mk)
	}
}

func (m *maskChecker) confine(inst *Instruction, mk *Mask) {
	cond := inst.Cond
	if mk.Test {
		// A conditional test may leave stale flags behind.
		if inst.Cond != CondAlways {
			return
		}
		if st := m.regs[mk.Reg]; st.confined && st.cond == CondAlways {
			return
		}
		cond = mk.Under
	}
	m.regs[mk.Reg] = confinement{confined: true, cleared: mk.Cleared, cond: cond}
	if cond == CondAlways {
		m.dirty = m.dirty.Remove(mk.Reg)
	}
}

func (m *maskChecker) use(inst *Instruction, u Use, vs *violations) {
	kind, required := UnsafeMemoryReference, m.dataMask
	if u.Role == RoleBranchTarget {
		kind, required = UnsafeControlTransfer, m.codeMask
	}
	if u.Reg >= MaxRegisters {
		vs.add(inst.Offset, kind, "%s: register %d out of range", inst.Name, u.Reg)
		return
	}
	if u.Role == RoleMemoryBase && u.Bounded && m.exempt.Contains(u.Reg) && !m.dirty.Contains(u.Reg) {
		return
	}

	st := m.regs[u.Reg]
	m.regs[u.Reg] = confinement{}
	switch {
	case !st.confined:
		vs.add(inst.Offset, kind, "%s: %s used as %s without a mask in this bundle",
			inst.Name, m.name(u.Reg), u.Role)
	case st.cleared&required != required:
		vs.add(inst.Offset, kind, "%s: mask on %s clears %#x, %s needs %#x",
			inst.Name, m.name(u.Reg), st.cleared, u.Role, required)
	case st.cond != CondAlways && st.cond != inst.Cond:
		vs.add(inst.Offset, kind, "%s: %s was masked under a different condition",
			inst.Name, m.name(u.Reg))
	}
}
