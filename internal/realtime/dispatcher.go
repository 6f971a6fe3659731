package realtime

import (
	"log"
	"sync"

	"github.com/taskstream/taskstream/internal/stats"
	"github.com/taskstream/taskstream/internal/types"
)

// Dispatcher routes events to room member sessions. Delivery is
// best-effort at-least-once: a full send queue drops the event for that
// session only and never blocks the publisher. Publishes to the same
// room are serialized, so per-room, per-publisher ordering holds; no
// cross-room ordering is promised.
//
// Overflow policy is drop-newest: the incoming event is discarded and
// the client recovers via a sequence-number gap refresh.
type Dispatcher struct {
	log   *log.Logger
	stats stats.StatsProvider
	rooms *RoomDirectory

	mu     sync.Mutex
	roomMu map[string]*sync.Mutex
	seq    map[string]int64
}

func NewDispatcher(logger *log.Logger, sp stats.StatsProvider, rooms *RoomDirectory) *Dispatcher {
	sp.RegisterMetric(stats.NumEventsPublished)
	sp.RegisterMetric(stats.NumEventsDropped)

	return &Dispatcher{
		log:    logger,
		stats:  sp,
		rooms:  rooms,
		roomMu: make(map[string]*sync.Mutex),
		seq:    make(map[string]int64),
	}
}

// Publish fans the event out to every member of its target rooms. An
// event with a TargetUserId additionally resolves to that user's
// private room, regardless of workspace membership. Publish never
// returns a delivery error; per-session drops are logged and counted.
func (d *Dispatcher) Publish(ev *Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	// events are immutable: stamp the timestamp on a copy, never on the
	// caller's struct
	stamped := *ev
	if stamped.Timestamp.IsZero() {
		stamped.Timestamp = Now()
	}

	rooms := make([]string, 0, len(ev.Rooms)+1)
	rooms = append(rooms, ev.Rooms...)
	if ev.TargetUserId != 0 {
		rooms = append(rooms, types.UserRoom(ev.TargetUserId))
	}

	for _, roomId := range rooms {
		d.publishToRoom(roomId, &stamped, nil)
	}

	d.stats.Incr(stats.NumEventsPublished)
	return nil
}

// Relay delivers an ephemeral event (typing) to a room, skipping the
// originating session. Relayed events bypass sequence assignment.
func (d *Dispatcher) Relay(roomId string, ev *Event, skip *Session) {
	relayed := *ev
	if relayed.Timestamp.IsZero() {
		relayed.Timestamp = Now()
	}

	unlock := d.lockRoom(roomId)
	defer unlock()

	d.deliver(roomId, &relayed, skip)
}

func (d *Dispatcher) publishToRoom(roomId string, ev *Event, skip *Session) {
	unlock := d.lockRoom(roomId)
	defer unlock()

	// Sequence numbers are scoped per room; an event targeting several
	// rooms carries a distinct sequence on each. A publisher-supplied
	// sequence is passed through untouched.
	delivered := *ev
	if delivered.Seq == 0 {
		d.mu.Lock()
		d.seq[roomId]++
		delivered.Seq = d.seq[roomId]
		d.mu.Unlock()
	}

	d.deliver(roomId, &delivered, skip)
}

func (d *Dispatcher) deliver(roomId string, ev *Event, skip *Session) {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: ev.Timestamp},
		Room:        roomId,
		Event:       ev,
	}

	for _, member := range d.rooms.MembersOf(roomId) {
		if member == skip {
			continue
		}

		if !member.queueMessage(msg) {
			d.log.Printf("%v: %q event for session %q in room %q", ErrDeliveryDropped, ev.Kind, member.id, roomId)
			d.stats.Incr(stats.NumEventsDropped)
		}
	}
}

// NextSeq reserves the next sequence number for a room. Used by the
// mutation pipeline when it wants to stamp events itself.
func (d *Dispatcher) NextSeq(roomId string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq[roomId]++
	return d.seq[roomId]
}

// lockRoom serializes publishes for one room without blocking others.
func (d *Dispatcher) lockRoom(roomId string) func() {
	d.mu.Lock()
	mu, ok := d.roomMu[roomId]
	if !ok {
		mu = &sync.Mutex{}
		d.roomMu[roomId] = mu
	}
	d.mu.Unlock()

	mu.Lock()
	return mu.Unlock
}
