package reconcile

import "github.com/rickgao/haltwatch/internal/model"

// Categorize builds a snapshot from a fetch-all result. Placement follows
// status and type; no notifications are produced. A haltId listed twice
// keeps its last record.
func Categorize(records []model.HaltRecord) model.Snapshot {
	snap := model.NewSnapshot()
	for _, r := range records {
		if r.HaltID == "" {
			continue
		}
		snap.HaltList.Add(r.HaltID)
		place(&snap, home(r), r)
	}
	return snap
}

// home returns the collection a settled record belongs in.
func home(r model.HaltRecord) model.CollectionName {
	switch r.Status {
	case model.StatusResumed:
		return model.CollectionLifted
	case model.StatusHalted, model.StatusResumptionPending:
		if r.HaltType == model.HaltTypeSSCB {
			return model.CollectionActiveSSCB
		}
		return model.CollectionActiveReg
	default:
		return model.CollectionPending
	}
}

// place upserts r into the named collection after removing its haltId from
// every other collection, keeping the activeReg indexes in step. Reports
// whether r was appended rather than merged in place.
func place(snap *model.Snapshot, name model.CollectionName, r model.HaltRecord) bool {
	for _, other := range model.CollectionNames {
		if other == name {
			continue
		}
		snap.Collection(other).Remove(r.HaltID)
	}

	inserted := snap.Collection(name).Upsert(r)

	if name == model.CollectionActiveReg {
		snap.ActiveRegHaltList.Add(r.HaltID)
		syncExtended(snap, r)
	} else {
		snap.ActiveRegHaltList.Remove(r.HaltID)
		snap.ExtendedRegHaltIDs.Remove(r.HaltID)
	}
	return inserted
}

// syncExtended adds or removes r from extendedRegHaltIds.
func syncExtended(snap *model.Snapshot, r model.HaltRecord) {
	if r.IsExtendedReg() {
		snap.ExtendedRegHaltIDs.Add(r.HaltID)
	} else {
		snap.ExtendedRegHaltIDs.Remove(r.HaltID)
	}
}
