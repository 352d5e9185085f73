// sim/simulator.go
package sim

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kelly-sim/kelly-sim/sim/trace"
)

// allocationSlack absorbs float rounding when checking sum(x) <= 1.
const allocationSlack = 1e-12

// Recorder observes the run for external metrics. Implementations must not
// touch simulator state.
type Recorder interface {
	EventProcessed(kind EventKind, stale bool)
	Converged(duration float64)
	PriceChanged(price float64)
}

type nopRecorder struct{}

func (nopRecorder) EventProcessed(EventKind, bool) {}
func (nopRecorder) Converged(float64)              {}
func (nopRecorder) PriceChanged(float64)           {}

// Option customizes a Simulator at construction.
type Option func(*Simulator)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Simulator) { s.recorder = r }
}

// Simulator is the event handler: it owns the clock, the event queue, the
// player registry and the active set, and is the only writer of bids and
// statuses. Player, ResourceOwner and KellyMechanism only compute values.
type Simulator struct {
	Clock   float64
	Horizon float64
	State   SimState
	// EventQueue has all pending events ordered by (timestamp, seq)
	EventQueue *EventHeap

	cfg      Config
	profiles []PlayerProfile
	policy   BiddingPolicy
	owner    *ResourceOwner
	kelly    KellyMechanism
	rng      *PartitionedRNG
	recorder Recorder

	players      map[PlayerID]*Player // every player ever created
	order        []PlayerID           // creation order
	active       []*Player            // ascending id
	allocations  map[PlayerID]float64
	lastBids     BidVector
	lastDistance float64
	nextID       PlayerID
	nextSeq      uint64

	// pending player of the Poisson arrival stream; the stream keeps exactly one
	streamPending PlayerID

	tracker          *convergenceTracker
	lastPerturbation float64
	perturbCause     string
	episodes         []Episode
	transitions      []Transition

	traces     map[PlayerID]*playerTrace
	decisions  *trace.SimulationTrace // nil unless trace_level is "decisions"
	timeSeries []Sample
	nextRecord float64

	eventsProcessed  int
	staleEvents      int
	rejectedArrivals int
}

// NewSimulator validates the configuration, seeds the initial population and
// schedules the first events. Configuration problems are returned here, before
// any event runs.
func NewSimulator(cfg Config, rng *PartitionedRNG, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, configErrorf("rng", "a seeded PartitionedRNG is required")
	}
	policy, err := NewBiddingPolicy(cfg)
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		Horizon:      cfg.SimulationTime,
		State:        StateRunning,
		EventQueue:   NewEventHeap(),
		cfg:          cfg,
		profiles:     cfg.Profiles(),
		policy:       policy,
		owner:        NewResourceOwner(cfg),
		kelly:        KellyMechanism{Delta: cfg.Delta},
		rng:          rng,
		recorder:     nopRecorder{},
		players:      make(map[PlayerID]*Player),
		allocations:  make(map[PlayerID]float64),
		tracker:      newConvergenceTracker(cfg.ConvergenceEpsilon, cfg.ConvergenceWindow),
		perturbCause: "start",
		traces:       make(map[PlayerID]*playerTrace),
	}
	if trace.TraceLevel(cfg.TraceLevel) == trace.TraceLevelDecisions {
		s.decisions = trace.NewSimulationTrace(trace.TraceLevelDecisions)
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, profile := range s.profiles {
		p := s.newPlayer(profile)
		s.activate(p)
	}
	s.reallocate()
	s.lastBids = s.bidVector()
	s.record()
	s.nextRecord = cfg.RecordInterval
	if cfg.ArrivalRate > 0 {
		s.scheduleArrival()
	}
	if cfg.PriceUpdateRate > 0 {
		s.schedulePriceUpdate()
	}

	logrus.Infof("Seeded %d players, policy=%s, horizon=%g, seed=%d",
		len(s.active), policy.Name(), s.Horizon, rng.Key())
	return s, nil
}

// Owner exposes the resource owner (read-only use).
func (s *Simulator) Owner() *ResourceOwner { return s.owner }

// Player returns the player with the given id, or nil.
func (s *Simulator) Player(id PlayerID) *Player { return s.players[id] }

// ActivePlayers returns the active players in ascending id order.
func (s *Simulator) ActivePlayers() []*Player { return slices.Clone(s.active) }

// Allocations returns a copy of the current allocation vector.
func (s *Simulator) Allocations() map[PlayerID]float64 {
	out := make(map[PlayerID]float64, len(s.allocations))
	for id, x := range s.allocations {
		out[id] = x
	}
	return out
}

// Bids returns the current bid vector of the active players.
func (s *Simulator) Bids() BidVector { return s.bidVector() }

// Episodes returns the convergence episodes recorded so far.
func (s *Simulator) Episodes() []Episode { return slices.Clone(s.episodes) }

// Transitions returns the state transitions recorded so far.
func (s *Simulator) Transitions() []Transition { return slices.Clone(s.transitions) }

// DecisionTrace returns the admission and bid records, or nil when tracing is off.
func (s *Simulator) DecisionTrace() *trace.SimulationTrace { return s.decisions }

// === Scheduling ===

func (s *Simulator) newSeq() uint64 {
	s.nextSeq++
	return s.nextSeq
}

// Schedule pushes an event into the queue.
func (s *Simulator) Schedule(ev Event) {
	s.EventQueue.Schedule(ev)
}

// InjectArrival schedules the arrival of a new player with the given profile.
func (s *Simulator) InjectArrival(t float64, profile PlayerProfile) PlayerID {
	p := s.newPlayer(profile)
	s.Schedule(NewArrivalEvent(t, p.ID, s.newSeq()))
	return p.ID
}

// InjectDeparture schedules a departure of player id at time t.
func (s *Simulator) InjectDeparture(t float64, id PlayerID) {
	s.Schedule(NewDepartureEvent(t, id, s.newSeq()))
}

// InjectBidUpdate schedules a one-shot bid update of player id at time t.
func (s *Simulator) InjectBidUpdate(t float64, id PlayerID) {
	ev := NewBidUpdateEvent(t, id, s.newSeq())
	ev.Probe = true
	s.Schedule(ev)
}

func (s *Simulator) scheduleArrival() {
	gap := s.rng.Exponential(SubsystemArrival, s.cfg.ArrivalRate)
	if math.IsInf(gap, 1) {
		return
	}
	profile := s.profiles[int(s.nextID)%len(s.profiles)]
	p := s.newPlayer(profile)
	s.streamPending = p.ID
	s.Schedule(NewArrivalEvent(s.Clock+gap, p.ID, s.newSeq()))
}

func (s *Simulator) scheduleDeparture(id PlayerID) {
	gap := s.rng.Exponential(SubsystemDeparture, s.cfg.DepartureRate)
	if math.IsInf(gap, 1) {
		return
	}
	s.Schedule(NewDepartureEvent(s.Clock+gap, id, s.newSeq()))
}

func (s *Simulator) scheduleBidUpdate(id PlayerID, probe bool) {
	gap := s.rng.Exponential(SubsystemBidding, s.cfg.BidUpdateRate)
	ev := NewBidUpdateEvent(s.Clock+gap, id, s.newSeq())
	ev.Probe = probe
	s.Schedule(ev)
}

func (s *Simulator) schedulePriceUpdate() {
	gap := s.rng.Exponential(SubsystemPricing, s.cfg.PriceUpdateRate)
	s.Schedule(NewPriceUpdateEvent(s.Clock+gap, s.newSeq()))
}

// === Event loop ===

// Step processes the next event. It returns false once the run has terminated.
func (s *Simulator) Step() (bool, error) {
	if s.State == StateTerminated {
		return false, nil
	}
	ev := s.EventQueue.Peek()
	if ev == nil || ev.Timestamp() > s.Horizon {
		s.terminate()
		return false, nil
	}
	s.EventQueue.PopNext()

	if ev.Timestamp() < s.Clock {
		return false, s.violation(fmt.Sprintf("clock went backwards: %g < %g", ev.Timestamp(), s.Clock))
	}
	s.owner.Accrue(ev.Timestamp()-s.Clock, s.owner.AggregateBid(s.active))
	s.Clock = ev.Timestamp()

	logrus.Debugf("[t=%.6f] Executing %s (seq %d)", s.Clock, ev.Kind(), ev.Seq())
	if err := ev.Execute(s); err != nil {
		return false, err
	}
	s.eventsProcessed++
	if err := s.checkInvariants(); err != nil {
		return false, err
	}
	s.maybeRecord()
	return true, nil
}

// ctxCheckInterval is how many events run between cancellation checks.
const ctxCheckInterval = 256

// Run processes events until the horizon is passed or the queue drains.
func (s *Simulator) Run() (*Results, error) {
	return s.RunContext(context.Background())
}

// RunContext is Run with cancellation. When ctx is done the run stops with
// ctx's error and no results.
func (s *Simulator) RunContext(ctx context.Context) (*Results, error) {
	for i := 0; ; i++ {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				logrus.Warnf("Simulation cancelled at t=%.6f after %d events", s.Clock, s.eventsProcessed)
				return nil, errors.Wrapf(err, "simulation stopped at t=%g", s.Clock)
			}
		}
		more, err := s.Step()
		if err != nil {
			logrus.Errorf("Simulation aborted at t=%.6f: %v", s.Clock, err)
			return nil, err
		}
		if !more {
			break
		}
	}
	return s.Results(), nil
}

func (s *Simulator) terminate() {
	if s.Clock < s.Horizon {
		s.owner.Accrue(s.Horizon-s.Clock, s.owner.AggregateBid(s.active))
		s.Clock = s.Horizon
	}
	s.record()
	s.transition(StateTerminated, "horizon")
	logrus.Infof("[t=%.6f] Simulation ended after %d events", s.Clock, s.eventsProcessed)
}

// === Event handlers ===

func (s *Simulator) handleArrival(e *ArrivalEvent) error {
	p := s.players[e.Player]
	if p == nil || p.Status != PlayerPending {
		s.stale(e)
		return nil
	}
	if p.ID == s.streamPending {
		s.streamPending = 0
		s.scheduleArrival()
	}
	s.recorder.EventProcessed(EventArrival, false)

	if s.cfg.MaxActivePlayers > 0 && len(s.active) >= s.cfg.MaxActivePlayers {
		p.Status = PlayerDeparted
		p.ArrivedAt, p.DepartedAt = s.Clock, s.Clock
		s.rejectedArrivals++
		s.recordAdmission(p.ID, false, "max_active_players")
		logrus.Warnf("[t=%.6f] Player %d turned away: %d players active", s.Clock, p.ID, len(s.active))
		return nil
	}

	s.recordAdmission(p.ID, true, "")
	s.activate(p)
	s.reallocate()
	s.perturb("arrival")
	logrus.Infof("[t=%.6f] Player %d arrived (%d active)", s.Clock, p.ID, len(s.active))
	return nil
}

func (s *Simulator) handleDeparture(e *DepartureEvent) error {
	p := s.players[e.Player]
	if p == nil || !p.IsActive() {
		s.stale(e)
		return nil
	}
	s.recorder.EventProcessed(EventDeparture, false)

	p.Status = PlayerDeparted
	p.DepartedAt = s.Clock
	s.active = slices.DeleteFunc(s.active, func(q *Player) bool { return q.ID == p.ID })
	s.reallocate()
	s.perturb("departure")
	logrus.Infof("[t=%.6f] Player %d departed (%d active)", s.Clock, p.ID, len(s.active))

	// one-shot probes measure how fast the survivors re-equilibrate
	for _, q := range s.active {
		s.scheduleBidUpdate(q.ID, true)
	}
	return nil
}

func (s *Simulator) handleBidUpdate(e *BidUpdateEvent) error {
	p := s.players[e.Player]
	if p == nil || !p.IsActive() {
		s.stale(e)
		return nil
	}
	s.recorder.EventProcessed(EventBidUpdate, false)

	others := s.owner.AggregateBidExcluding(s.active, p.ID)
	bid, err := s.policy.NextBid(p, BidContext{
		Others: others,
		Price:  s.owner.Price,
		Delta:  s.cfg.Delta,
		MinBid: s.cfg.MinBid,
	})
	if err != nil {
		return err
	}
	previous := p.Bid
	p.Bid = bid
	s.reallocate()

	x := s.allocations[p.ID]
	s.recordBid(p, e.Probe, previous, others, x)
	u, err := p.Utility(x)
	if err != nil {
		logrus.Debugf("[t=%.6f] player %d: %v; clamping share to %g", s.Clock, p.ID, err, MinShare)
		u, _ = p.Utility(MinShare)
	}
	s.traceFor(p.ID).record(bid, x, u, p.guardedPayoff(x, bid, s.owner.Price))

	cur := s.bidVector()
	dist := bidDistance(s.lastBids, cur, s.cfg.DistanceNorm)
	s.lastBids = cur
	s.lastDistance = dist
	s.observeDistance(dist, p.ID)

	if !e.Probe {
		s.scheduleBidUpdate(p.ID, false)
	}
	return nil
}

func (s *Simulator) handlePriceUpdate(e *PriceUpdateEvent) error {
	s.recorder.EventProcessed(EventPriceUpdate, false)
	observed := 0.0
	for _, id := range BidVector(s.allocations).IDs() {
		observed += s.allocations[id]
	}
	old := s.owner.Price
	price := s.owner.AdjustPrice(s.cfg.TargetUtilization, observed)
	s.recorder.PriceChanged(price)
	logrus.Debugf("[t=%.6f] Price %.6f -> %.6f (utilization %.4f)", s.Clock, old, price, observed)
	s.schedulePriceUpdate()
	return nil
}

// === State bookkeeping ===

func (s *Simulator) newPlayer(profile PlayerProfile) *Player {
	s.nextID++
	p := NewPlayer(s.nextID, profile, s.cfg.InitialBid)
	s.players[p.ID] = p
	s.order = append(s.order, p.ID)
	return p
}

func (s *Simulator) activate(p *Player) {
	p.Status = PlayerActive
	p.ArrivedAt = s.Clock
	i, _ := slices.BinarySearchFunc(s.active, p.ID, func(q *Player, id PlayerID) int { return int(q.ID - id) })
	s.active = slices.Insert(s.active, i, p)
	s.scheduleBidUpdate(p.ID, false)
	s.scheduleDeparture(p.ID)
}

func (s *Simulator) bidVector() BidVector {
	bids := make(BidVector, len(s.active))
	for _, p := range s.active {
		bids[p.ID] = p.Bid
	}
	return bids
}

func (s *Simulator) reallocate() {
	s.allocations = s.kelly.Allocate(s.bidVector())
}

func (s *Simulator) traceFor(id PlayerID) *playerTrace {
	t, ok := s.traces[id]
	if !ok {
		t = &playerTrace{}
		s.traces[id] = t
	}
	return t
}

func (s *Simulator) recordAdmission(id PlayerID, admitted bool, reason string) {
	if s.decisions == nil {
		return
	}
	s.decisions.RecordAdmission(trace.AdmissionRecord{
		PlayerID: int(id),
		Clock:    s.Clock,
		Admitted: admitted,
		Reason:   reason,
	})
}

// recordBid traces a revision together with the payoff it leaves on the table
// relative to the exact best response.
func (s *Simulator) recordBid(p *Player, probe bool, previous, others, share float64) {
	if s.decisions == nil {
		return
	}
	rec := trace.BidRecord{
		PlayerID:     int(p.ID),
		Clock:        s.Clock,
		Probe:        probe,
		PreviousBid:  previous,
		NewBid:       p.Bid,
		BestResponse: math.NaN(),
		Others:       others,
		Share:        share,
	}
	if br, err := p.BestResponse(others, s.owner.Price, s.cfg.Delta, s.cfg.MinBid); err == nil {
		rec.BestResponse = br
		best := p.guardedPayoff(s.kelly.Share(br, others), br, s.owner.Price)
		rec.Regret = max(best-p.guardedPayoff(share, p.Bid, s.owner.Price), 0)
	}
	s.decisions.RecordBid(rec)
}

func (s *Simulator) stale(ev Event) {
	s.staleEvents++
	s.recorder.EventProcessed(ev.Kind(), true)
	logrus.Debugf("[t=%.6f] Ignoring stale %s (seq %d)", s.Clock, ev.Kind(), ev.Seq())
}

// perturb marks a population change: the streak restarts and, if the run had
// converged, it becomes perturbed.
func (s *Simulator) perturb(cause string) {
	s.tracker.reset()
	s.lastPerturbation = s.Clock
	s.perturbCause = cause
	if s.State == StateConverged {
		s.transition(StatePerturbed, cause)
	}
}

func (s *Simulator) observeDistance(dist float64, id PlayerID) {
	small := s.tracker.observe(dist, id)
	switch {
	case !small && s.State == StateConverged:
		s.perturb("drift")
	case small && s.State != StateConverged && s.tracker.settled(s.active):
		duration := s.Clock - s.lastPerturbation
		s.episodes = append(s.episodes, Episode{
			Cause:       s.perturbCause,
			Start:       s.lastPerturbation,
			ConvergedAt: s.Clock,
			Duration:    duration,
		})
		s.recorder.Converged(duration)
		s.transition(StateConverged, s.perturbCause)
	}
}

func (s *Simulator) transition(to SimState, cause string) {
	if s.State == to {
		return
	}
	s.transitions = append(s.transitions, Transition{Time: s.Clock, From: s.State, To: to, Cause: cause})
	logrus.Infof("[t=%.6f] %s -> %s (%s)", s.Clock, s.State, to, cause)
	s.State = to
}

// checkInvariants aborts the run on negative bids, out-of-range shares or
// over-allocation.
func (s *Simulator) checkInvariants() error {
	if !(s.owner.Price > 0) {
		return s.violation(fmt.Sprintf("price %g is not positive", s.owner.Price))
	}
	total := 0.0
	for _, p := range s.active {
		if p.Bid < 0 || math.IsNaN(p.Bid) {
			return s.violation(fmt.Sprintf("player %d bid %g is negative", p.ID, p.Bid))
		}
		x := s.allocations[p.ID]
		if x < 0 || x > 1 || math.IsNaN(x) {
			return s.violation(fmt.Sprintf("player %d allocation %g outside [0,1]", p.ID, x))
		}
		total += x
	}
	if total > 1+allocationSlack {
		return s.violation(fmt.Sprintf("allocations sum to %g > 1", total))
	}
	return nil
}

func (s *Simulator) violation(reason string) error {
	return errors.WithStack(&InvariantViolation{
		Reason: reason,
		Snapshot: Snapshot{
			Clock:       s.Clock,
			Price:       s.owner.Price,
			Bids:        s.bidVector(),
			Allocations: s.Allocations(),
		},
	})
}

// === Reporting ===

func (s *Simulator) maybeRecord() {
	if s.cfg.RecordInterval <= 0 {
		s.record()
		return
	}
	if s.Clock < s.nextRecord {
		return
	}
	s.record()
	for s.nextRecord <= s.Clock {
		s.nextRecord += s.cfg.RecordInterval
	}
}

func (s *Simulator) record() {
	s.timeSeries = append(s.timeSeries, Sample{
		Time:                  s.Clock,
		AggregateBid:          s.owner.AggregateBid(s.active),
		Allocations:           s.Allocations(),
		DistanceToEquilibrium: s.kelly.NashGap(s.active, s.owner, s.cfg.MinBid),
		BidDistance:           s.lastDistance,
		ActivePlayers:         len(s.active),
		Price:                 s.owner.Price,
	})
}

// Results assembles the summary, per-player statistics and time series.
func (s *Simulator) Results() *Results {
	finalState := s.State
	if finalState == StateTerminated && len(s.transitions) > 0 {
		finalState = s.transitions[len(s.transitions)-1].From
	}
	aggregate := s.owner.AggregateBid(s.active)

	summary := Summary{
		RunID:              uuid.NewString(),
		Seed:               int64(s.rng.Key()),
		FinalState:         finalState,
		EquilibriumReached: finalState == StateConverged,
		FinalSocialWelfare: SocialWelfare(s.active, s.allocations, s.owner.Price, s.cfg.Welfare),
		FinalRevenue:       s.owner.Revenue(aggregate),
		CumulativeRevenue:  s.owner.CumulativeRevenue,
		FinalPrice:         s.owner.Price,
		NashGap:            s.kelly.NashGap(s.active, s.owner, s.cfg.MinBid),
		EndTime:            s.Clock,
		ActivePlayers:      len(s.active),
		EventsProcessed:    s.eventsProcessed,
		StaleEvents:        s.staleEvents,
		RejectedArrivals:   s.rejectedArrivals,
		Episodes:           slices.Clone(s.episodes),
	}
	if summary.EquilibriumReached && len(s.episodes) > 0 {
		d := s.episodes[len(s.episodes)-1].Duration
		summary.ConvergenceTime = &d
	}
	if ratio, ok := EfficiencyRatio(s.active, s.allocations); ok {
		summary.EfficiencyRatio = &ratio
	}

	players := make([]PlayerStats, 0, len(s.order))
	for _, id := range s.order {
		p := s.players[id]
		if p.Status == PlayerPending {
			continue
		}
		players = append(players, s.traces[id].stats(p, s.allocations[id]))
	}

	results := &Results{
		Summary:     summary,
		Players:     players,
		Transitions: slices.Clone(s.transitions),
		TimeSeries:  slices.Clone(s.timeSeries),
	}
	if s.decisions != nil {
		results.Trace = trace.Summarize(s.decisions)
	}
	return results
}
