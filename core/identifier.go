package core

import "fmt"

// SlotTable is a free-list backed owner registry, used by render backends
// to hand out small integer handles for GPU-ish resources (image views,
// staging buffers) without growing an allocation per handle.
type SlotTable struct {
	owners []interface{}
}

// Acquire returns a free slot id for owner, reusing a released slot when
// one is available.
func (t *SlotTable) Acquire(owner interface{}) uint32 {
	if len(t.owners) == 0 {
		t.owners = make([]interface{}, 0, 64)
	}
	for i, o := range t.owners {
		if o == nil {
			t.owners[i] = owner
			return uint32(i)
		}
	}
	t.owners = append(t.owners, owner)
	return uint32(len(t.owners) - 1)
}

// Release frees id for reuse.
func (t *SlotTable) Release(id uint32) error {
	if len(t.owners) == 0 {
		return fmt.Errorf("slot table: release called before any acquire")
	}
	if id >= uint32(len(t.owners)) {
		return fmt.Errorf("slot table: id %d out of range (max=%d)", id, len(t.owners))
	}
	t.owners[id] = nil
	return nil
}

// Owner returns the owner registered at id, or nil if the slot is free or
// out of range.
func (t *SlotTable) Owner(id uint32) interface{} {
	if id >= uint32(len(t.owners)) {
		return nil
	}
	return t.owners[id]
}
