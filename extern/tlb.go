package extern

import "math/rand"

// NumTLBSlots mirrors NUM_TLB: the number of hardware TLB entries.
const NumTLBSlots = 64

// SimTLB is a TLBDevice simulating the MIPS software-managed TLB:
// NumTLBSlots entries, each either invalid or holding a (vaddr page,
// paddr page | flags) translation. tlb_random is modeled by picking a
// uniformly random slot, since this core has no notion of a hardware
// replacement policy to emulate faithfully.
type SimTLB struct {
	entries [NumTLBSlots]TLBEntry
}

func NewSimTLB() *SimTLB {
	return &SimTLB{}
}

func (t *SimTLB) NumSlots() int { return NumTLBSlots }

func (t *SimTLB) Read(idx int) TLBEntry {
	return t.entries[idx]
}

func (t *SimTLB) Write(idx int, e TLBEntry) {
	t.entries[idx] = e
}

func (t *SimTLB) WriteRandom(e TLBEntry) {
	t.entries[rand.Intn(NumTLBSlots)] = e
}

func (t *SimTLB) Shootdown() {
	panic("dumbvm tried to do tlb shootdown?!")
}

// InvalidateAll clears every entry, standing in for as_activate's
// tlb_write(TLBHI_INVALID(i), TLBLO_INVALID(), i) loop.
func (t *SimTLB) InvalidateAll() {
	for i := range t.entries {
		t.entries[i] = TLBEntry{}
	}
}
