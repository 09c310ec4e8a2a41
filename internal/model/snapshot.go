package model

// Snapshot is one fully reconciled view of the categorized collections and
// their derived indexes. A haltId lives in at most one collection.
type Snapshot struct {
	ActiveReg  Collection `json:"activeReg"`
	ActiveSSCB Collection `json:"activeSSCB"`
	Pending    Collection `json:"pending"`
	Lifted     Collection `json:"lifted"`

	// Every haltId observed this session. Never shrinks.
	HaltList IDSet `json:"-"`
	// haltIds currently in ActiveReg.
	ActiveRegHaltList IDSet `json:"-"`
	// REG haltIds flagged extended or remained.
	ExtendedRegHaltIDs IDSet `json:"-"`
}

// NewSnapshot returns an empty snapshot with initialized indexes.
func NewSnapshot() Snapshot {
	return Snapshot{
		HaltList:           IDSet{},
		ActiveRegHaltList:  IDSet{},
		ExtendedRegHaltIDs: IDSet{},
	}
}

// Clone deep-copies the collections and indexes.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		ActiveReg:          s.ActiveReg.Clone(),
		ActiveSSCB:         s.ActiveSSCB.Clone(),
		Pending:            s.Pending.Clone(),
		Lifted:             s.Lifted.Clone(),
		HaltList:           cloneSet(s.HaltList),
		ActiveRegHaltList:  cloneSet(s.ActiveRegHaltList),
		ExtendedRegHaltIDs: cloneSet(s.ExtendedRegHaltIDs),
	}
}

func cloneSet(s IDSet) IDSet {
	if s == nil {
		return IDSet{}
	}
	return s.Clone()
}

// Collection returns a pointer to the named collection.
func (s *Snapshot) Collection(name CollectionName) *Collection {
	switch name {
	case CollectionActiveReg:
		return &s.ActiveReg
	case CollectionActiveSSCB:
		return &s.ActiveSSCB
	case CollectionPending:
		return &s.Pending
	case CollectionLifted:
		return &s.Lifted
	}
	return nil
}

// Locate finds the collection currently holding id.
func (s *Snapshot) Locate(id string) (CollectionName, HaltRecord, bool) {
	for _, name := range CollectionNames {
		if r, ok := s.Collection(name).Get(id); ok {
			return name, r, true
		}
	}
	return "", HaltRecord{}, false
}

// NonExtendedCount is the number of active REG halts not flagged extended
// or remained.
func (s Snapshot) NonExtendedCount() int {
	return len(s.ActiveRegHaltList.Difference(s.ExtendedRegHaltIDs))
}

// Counts reports the size of every collection.
func (s Snapshot) Counts() map[CollectionName]int {
	return map[CollectionName]int{
		CollectionActiveReg:  len(s.ActiveReg),
		CollectionActiveSSCB: len(s.ActiveSSCB),
		CollectionPending:    len(s.Pending),
		CollectionLifted:     len(s.Lifted),
	}
}
