package sim

import "fmt"

// EventKind names the four things that can happen on the timeline.
type EventKind string

const (
	EventArrival     EventKind = "arrival"
	EventDeparture   EventKind = "departure"
	EventBidUpdate   EventKind = "bid-update"
	EventPriceUpdate EventKind = "price-update"
)

// Event defines the interface for all simulation events.
// Events are ordered by Timestamp, ties broken by Seq (assigned at scheduling
// time, strictly increasing per simulator).
type Event interface {
	Timestamp() float64
	Seq() uint64
	Kind() EventKind
	Execute(*Simulator) error
}

// baseEvent provides the common ordering fields.
type baseEvent struct {
	time float64
	seq  uint64
	kind EventKind
}

func (e *baseEvent) Timestamp() float64 { return e.time }
func (e *baseEvent) Seq() uint64        { return e.seq }
func (e *baseEvent) Kind() EventKind    { return e.kind }

func (e *baseEvent) String() string {
	return fmt.Sprintf("%s@%.6f#%d", e.kind, e.time, e.seq)
}

// ArrivalEvent activates a pending player.
type ArrivalEvent struct {
	baseEvent
	Player PlayerID
}

// NewArrivalEvent creates an arrival with an explicit sequence number.
func NewArrivalEvent(t float64, id PlayerID, seq uint64) *ArrivalEvent {
	return &ArrivalEvent{baseEvent: baseEvent{time: t, seq: seq, kind: EventArrival}, Player: id}
}

func (e *ArrivalEvent) Execute(sim *Simulator) error {
	return sim.handleArrival(e)
}

// DepartureEvent removes a player from the active set.
type DepartureEvent struct {
	baseEvent
	Player PlayerID
}

// NewDepartureEvent creates a departure with an explicit sequence number.
func NewDepartureEvent(t float64, id PlayerID, seq uint64) *DepartureEvent {
	return &DepartureEvent{baseEvent: baseEvent{time: t, seq: seq, kind: EventDeparture}, Player: id}
}

func (e *DepartureEvent) Execute(sim *Simulator) error {
	return sim.handleDeparture(e)
}

// BidUpdateEvent lets one player revise its bid. Probe updates are one-shot
// revisions triggered by a departure and do not reschedule themselves.
type BidUpdateEvent struct {
	baseEvent
	Player PlayerID
	Probe  bool
}

// NewBidUpdateEvent creates a bid update with an explicit sequence number.
func NewBidUpdateEvent(t float64, id PlayerID, seq uint64) *BidUpdateEvent {
	return &BidUpdateEvent{baseEvent: baseEvent{time: t, seq: seq, kind: EventBidUpdate}, Player: id}
}

func (e *BidUpdateEvent) Execute(sim *Simulator) error {
	return sim.handleBidUpdate(e)
}

// PriceUpdateEvent lets the resource owner adjust the price.
type PriceUpdateEvent struct {
	baseEvent
}

// NewPriceUpdateEvent creates a price update with an explicit sequence number.
func NewPriceUpdateEvent(t float64, seq uint64) *PriceUpdateEvent {
	return &PriceUpdateEvent{baseEvent: baseEvent{time: t, seq: seq, kind: EventPriceUpdate}}
}

func (e *PriceUpdateEvent) Execute(sim *Simulator) error {
	return sim.handlePriceUpdate(e)
}
