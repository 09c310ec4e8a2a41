package reconcile

import (
	"log/slog"
	"time"

	"github.com/rickgao/haltwatch/internal/metrics"
	"github.com/rickgao/haltwatch/internal/model"
)

// Notes collects notification messages for one flush, dropping repeats and
// keeping first-seen order.
type Notes struct {
	seen map[string]struct{}
	list []string
}

// Add records msg unless it was already added.
func (n *Notes) Add(msg string) {
	if n.seen == nil {
		n.seen = make(map[string]struct{})
	}
	if _, ok := n.seen[msg]; ok {
		return
	}
	n.seen[msg] = struct{}{}
	n.list = append(n.list, msg)
}

// List returns the messages in the order they were first added.
func (n *Notes) List() []string {
	return n.list
}

// Len returns the number of distinct messages.
func (n *Notes) Len() int {
	return len(n.list)
}

// Merger applies halt events to a snapshot. It holds no state between
// calls; the snapshot passed in is the flush's local copy.
type Merger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewMerger creates a Merger.
func NewMerger(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{logger: logger, now: time.Now}
}

// Apply folds e into snap and returns the collection that holds the
// haltId afterwards, or "" if the event changed nothing. Comparisons use
// snap as it stands, so earlier events of the same flush are visible.
func (m *Merger) Apply(snap *model.Snapshot, e model.HaltEvent, notes *Notes) model.CollectionName {
	id := e.HaltID
	snap.HaltList.Add(id)

	where, prev, found := snap.Locate(id)

	next := model.HaltRecord{HaltID: id}
	if found {
		next = prev
	}
	next.Apply(e)

	// Partial events inherit type and status from the record they update.
	haltType := e.TypeValue()
	if haltType == "" {
		haltType = prev.HaltType
		next.HaltType = haltType
	}
	status := e.StatusValue()
	if status == "" {
		status = prev.Status
	}

	symbol := next.Symbol
	if symbol == "" {
		symbol = id
	}

	metrics.EventsApplied.WithLabelValues(string(status)).Inc()

	switch {
	case status == model.StatusResumed && e.StateValue().IsTransit():
		if where != model.CollectionLifted {
			return ""
		}
		snap.Lifted.Upsert(next)
		return model.CollectionLifted

	case status == model.StatusResumed:
		if next.ResumptionTime == nil || next.ResumptionTime.IsZero() {
			ts := model.NewTimestamp(m.now())
			next.ResumptionTime = &ts
		}
		place(snap, model.CollectionLifted, next)
		notes.Add(symbol + " halt resumed")
		return model.CollectionLifted

	case status == model.StatusHalted && haltType == model.HaltTypeREG:
		inserted := place(snap, model.CollectionActiveReg, next)
		switch {
		case where == model.CollectionPending:
			notes.Add(symbol + " halt is now active from schedule")
		case inserted:
			notes.Add(symbol + " halt created")
		}
		flagNotes(notes, symbol, prev, next)
		return model.CollectionActiveReg

	case status == model.StatusResumptionPending && haltType == model.HaltTypeREG:
		if where != model.CollectionActiveReg {
			m.logger.Debug("resumption for unknown regulatory halt ignored", "halt_id", id)
			return ""
		}
		place(snap, model.CollectionActiveReg, next)
		notes.Add(symbol + " resumption time set")
		return model.CollectionActiveReg

	case (status == model.StatusResumptionPending || status == model.StatusHalted) &&
		haltType == model.HaltTypeSSCB:
		if place(snap, model.CollectionActiveSSCB, next) {
			notes.Add(symbol + " SSCB halt created")
		}
		return model.CollectionActiveSSCB

	case status == model.StatusHaltPending || status == model.StatusHaltScheduled:
		place(snap, model.CollectionPending, next)
		switch {
		case where != model.CollectionPending:
			notes.Add(symbol + " halt scheduled")
		case e.Action.IsCancel():
			notes.Add(symbol + " scheduled halt cancelled")
		default:
			notes.Add(symbol + " scheduled halt time updated")
		}
		return model.CollectionPending

	case status == model.StatusHaltPendingCancelled:
		// Cancelled entries stay in pending for audit visibility.
		if where != model.CollectionPending {
			m.logger.Debug("cancellation for unknown scheduled halt ignored", "halt_id", id)
			return ""
		}
		snap.Pending.Upsert(next)
		notes.Add(symbol + " scheduled halt cancelled")
		return model.CollectionPending

	default:
		m.logger.Warn("unrecognized halt status, placing in pending",
			"halt_id", id,
			"status", status,
			"halt_type", haltType,
		)
		place(snap, model.CollectionPending, next)
		return model.CollectionPending
	}
}

// flagNotes reports extend and remain changes between prev and next.
func flagNotes(notes *Notes, symbol string, prev, next model.HaltRecord) {
	if next.ExtendedHalt != prev.ExtendedHalt {
		if next.ExtendedHalt {
			notes.Add(symbol + " marked as extended")
		} else {
			notes.Add(symbol + " extension removed")
		}
	}
	if next.RemainedHalt != prev.RemainedHalt {
		if next.RemainedHalt {
			notes.Add(symbol + " marked as remained")
		} else {
			notes.Add(symbol + " remain removed")
		}
	}
}
