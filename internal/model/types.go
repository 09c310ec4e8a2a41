package model

import "time"

// HaltType selects which collection family a halt belongs to.
type HaltType string

const (
	HaltTypeREG  HaltType = "REG"  // Regulatory halt
	HaltTypeSSCB HaltType = "SSCB" // Single-stock circuit breaker
)

// Status is the settled lifecycle status of a halt.
type Status string

const (
	StatusHaltPending          Status = "HaltPending"
	StatusHaltScheduled        Status = "HaltScheduled"
	StatusHalted               Status = "Halted"
	StatusResumptionPending    Status = "ResumptionPending"
	StatusResumed              Status = "Resumed"
	StatusHaltPendingCancelled Status = "HaltPendingCancelled"
)

// State is the transit sub-status reported alongside Status.
type State string

// StateSent marks an acknowledgement of a request still in flight on the server.
const StateSent State = "Sent"

// IsTransit reports whether the state is a transitional acknowledgement.
func (s State) IsTransit() bool {
	return s == StateSent
}

// HaltRecord is one trading-halt lifecycle instance.
type HaltRecord struct {
	HaltID        string   `json:"haltId"`
	Symbol        string   `json:"symbol"`
	IssueName     string   `json:"issueName,omitempty"`
	ListingMarket string   `json:"listingMarket,omitempty"`
	AllIssue      bool     `json:"allIssue"`
	HaltType      HaltType `json:"haltType"`
	Status        Status   `json:"status"`
	State         State    `json:"state,omitempty"`

	HaltTime       *Timestamp `json:"haltTime,omitempty"`
	ResumptionTime *Timestamp `json:"resumptionTime,omitempty"`

	// Only meaningful for REG halts in Halted or ResumptionPending.
	ExtendedHalt bool `json:"extendedHalt"`
	RemainedHalt bool `json:"remainedHalt"`

	HaltReason   string `json:"haltReason,omitempty"`
	RemainReason string `json:"remainReason,omitempty"`
	SSCBSrc      string `json:"sscbSrc,omitempty"`
	Comment      string `json:"comment,omitempty"`

	CreatedBy        string     `json:"createdBy,omitempty"`
	CreatedTime      *Timestamp `json:"createdTime,omitempty"`
	LastModifiedBy   string     `json:"lastModifiedBy,omitempty"`
	LastModifiedTime *Timestamp `json:"lastModifiedTime,omitempty"`
}

// IsExtendedReg reports whether the record counts toward extendedRegHaltIds.
func (r HaltRecord) IsExtendedReg() bool {
	return r.HaltType == HaltTypeREG && (r.ExtendedHalt || r.RemainedHalt)
}

// HaltEvent is one push-stream message: a partial HaltRecord update.
type HaltEvent struct {
	HaltID        string    `json:"haltId"`
	Symbol        *string   `json:"symbol,omitempty"`
	IssueName     *string   `json:"issueName,omitempty"`
	ListingMarket *string   `json:"listingMarket,omitempty"`
	AllIssue      *bool     `json:"allIssue,omitempty"`
	HaltType      *HaltType `json:"haltType,omitempty"`
	Status        *Status   `json:"status,omitempty"`
	State         *State    `json:"state,omitempty"`

	HaltTime       *Timestamp `json:"haltTime,omitempty"`
	ResumptionTime *Timestamp `json:"resumptionTime,omitempty"`

	ExtendedHalt *bool `json:"extendedHalt,omitempty"`
	RemainedHalt *bool `json:"remainedHalt,omitempty"`

	HaltReason   *string `json:"haltReason,omitempty"`
	RemainReason *string `json:"remainReason,omitempty"`
	SSCBSrc      *string `json:"sscbSrc,omitempty"`
	Comment      *string `json:"comment,omitempty"`

	CreatedBy        *string    `json:"createdBy,omitempty"`
	CreatedTime      *Timestamp `json:"createdTime,omitempty"`
	LastModifiedBy   *string    `json:"lastModifiedBy,omitempty"`
	LastModifiedTime *Timestamp `json:"lastModifiedTime,omitempty"`

	Action    Action `json:"action,omitempty"`
	Heartbeat bool   `json:"heartbeat,omitempty"`

	// Local receive time, not part of the wire payload.
	ReceivedAt time.Time `json:"-"`
}

// StatusValue returns the event status, or "" when absent.
func (e HaltEvent) StatusValue() Status {
	if e.Status == nil {
		return ""
	}
	return *e.Status
}

// StateValue returns the event state, or "" when absent.
func (e HaltEvent) StateValue() State {
	if e.State == nil {
		return ""
	}
	return *e.State
}

// TypeValue returns the event halt type, or "" when absent.
func (e HaltEvent) TypeValue() HaltType {
	if e.HaltType == nil {
		return ""
	}
	return *e.HaltType
}

// SymbolValue returns the event symbol, or "" when absent.
func (e HaltEvent) SymbolValue() string {
	if e.Symbol == nil {
		return ""
	}
	return *e.Symbol
}

// NewRecord builds a record from an event with no prior state.
func NewRecord(e HaltEvent) HaltRecord {
	r := HaltRecord{HaltID: e.HaltID}
	r.Apply(e)
	return r
}

// Apply merges the fields present on e into r.
func (r *HaltRecord) Apply(e HaltEvent) {
	setString(&r.Symbol, e.Symbol)
	setString(&r.IssueName, e.IssueName)
	setString(&r.ListingMarket, e.ListingMarket)
	setBool(&r.AllIssue, e.AllIssue)
	if e.HaltType != nil {
		r.HaltType = *e.HaltType
	}
	if e.Status != nil {
		r.Status = *e.Status
	}
	if e.State != nil {
		r.State = *e.State
	}
	setTime(&r.HaltTime, e.HaltTime)
	setTime(&r.ResumptionTime, e.ResumptionTime)
	setBool(&r.ExtendedHalt, e.ExtendedHalt)
	setBool(&r.RemainedHalt, e.RemainedHalt)
	setString(&r.HaltReason, e.HaltReason)
	setString(&r.RemainReason, e.RemainReason)
	setString(&r.SSCBSrc, e.SSCBSrc)
	setString(&r.Comment, e.Comment)
	setString(&r.CreatedBy, e.CreatedBy)
	setTime(&r.CreatedTime, e.CreatedTime)
	setString(&r.LastModifiedBy, e.LastModifiedBy)
	setTime(&r.LastModifiedTime, e.LastModifiedTime)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func setTime(dst **Timestamp, src *Timestamp) {
	if src != nil {
		ts := *src
		*dst = &ts
	}
}
