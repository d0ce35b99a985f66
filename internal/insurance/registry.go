package insurance

import (
	"github.com/ethereum/go-ethereum/common"
)

// Registry is the keyed store of Insurance records: one record per owner
// address at a time. It enforces key uniqueness and nothing else; all
// business rules live in the workflow engine, which is the registry's
// exclusive writer.
type Registry struct {
	records map[common.Address]*Insurance
}

func NewRegistry() *Registry {
	return &Registry{
		records: make(map[common.Address]*Insurance),
	}
}

// Get returns the record for an owner, or nil if none exists
func (r *Registry) Get(owner common.Address) *Insurance {
	return r.records[owner]
}

// InsuranceOf returns a copy of the owner's record, or the zero-value record
// if none exists. Callers distinguish "none" via Token.Asset == zero address.
func (r *Registry) InsuranceOf(owner common.Address) Insurance {
	rec, ok := r.records[owner]
	if !ok {
		return Insurance{}
	}
	return rec.Clone()
}

// Put writes a record under its owner key, overwriting any prior record
func (r *Registry) Put(rec *Insurance) {
	r.records[rec.Owner] = rec
}

// Remove deletes the record for an owner
func (r *Registry) Remove(owner common.Address) {
	delete(r.records, owner)
}

// Rekey moves a record to a new owner key on record admin change
func (r *Registry) Rekey(oldOwner, newOwner common.Address) {
	rec, ok := r.records[oldOwner]
	if !ok {
		return
	}
	delete(r.records, oldOwner)
	rec.Owner = newOwner
	r.records[newOwner] = rec
}

// Len returns the number of live records
func (r *Registry) Len() int {
	return len(r.records)
}

// ReservedTotal sums the insured amounts of live records for an asset.
// Used by the engine's post-transition cross-check against the ledger.
func (r *Registry) ReservedTotal(asset common.Address) int64 {
	var total int64
	for _, rec := range r.records {
		if rec.Token.Asset == asset {
			total += rec.Token.Amount
		}
	}
	return total
}

// All returns every live record (restore and projection paths)
func (r *Registry) All() []*Insurance {
	out := make([]*Insurance, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}
