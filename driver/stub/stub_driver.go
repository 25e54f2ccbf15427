package stub

import (
	"sync"
	"time"

	proto "github.com/ystepanoff/rssilock/protocol"
	"github.com/ystepanoff/rssilock/transport"
)

// Responder answers one decoded command with the events the controller
// emits for it. Returning nil keeps the controller silent.
type Responder func(cmd *proto.Command) []proto.Event

// Peer describes the single remote device the simulated controller can page.
type Peer struct {
	Address proto.Address
	InRange bool
	Paired  bool
	// RSSI values are consumed one per Read_RSSI; the last one repeats.
	RSSI []int8
	// Unreadable makes Read_RSSI complete with an error status.
	Unreadable bool
}

// Driver simulates an HCI controller for host-side testing. Commands
// written by the host are decoded and answered with the event sequence a
// BR/EDR controller would produce.
type Driver struct {
	mu         sync.Mutex
	rxBuf      ringBuffer
	txBuf      ringBuffer
	filter     []byte
	filterSets int
	peer       Peer
	conns      map[uint16]proto.Address
	nextHandle uint16
	authEnable uint8
	resets     int
	responders map[proto.Opcode]Responder
}

func New(peer Peer) *Driver {
	return &Driver{
		filter:     make([]byte, proto.FilterSize),
		peer:       peer,
		conns:      make(map[uint16]proto.Address),
		nextHandle: 0x0b,
		responders: make(map[proto.Opcode]Responder),
	}
}

func (d *Driver) Filter() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]byte, len(d.filter))
	copy(out, d.filter)
	return out, nil
}

func (d *Driver) SetFilter(f []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filter = make([]byte, len(f))
	copy(d.filter, f)
	d.filterSets++
	return nil
}

func (d *Driver) Write(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	frame := make([]byte, len(data))
	copy(frame, data)
	d.txBuf.push(frame)

	cmd, err := proto.DecodeCommand(frame)
	if err != nil {
		return err
	}
	var events []proto.Event
	if r, ok := d.responders[cmd.Opcode]; ok {
		events = r(cmd)
	} else {
		events = d.respond(cmd)
	}
	for _, ev := range events {
		raw, err := proto.EncodeEvent(ev)
		if err != nil {
			return err
		}
		d.rxBuf.push(raw)
	}
	return nil
}

// Read returns the next pending event that passes the installed filter.
func (d *Driver) Read(timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		d.mu.Lock()
		frame, ok := d.rxBuf.pop()
		pass := ok && d.passes(frame)
		d.mu.Unlock()
		if pass {
			out := make([]byte, len(frame))
			copy(out, frame)
			return out, nil
		}
		if ok {
			continue
		}

		if time.Now().After(deadline) {
			return nil, transport.ErrReadTimeout
		}
		time.Sleep(1 * time.Millisecond)
	}
}

// Reset drops every connection, like cycling the adapter.
func (d *Driver) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
	d.conns = make(map[uint16]proto.Address)
	d.rxBuf = ringBuffer{}
	return nil
}

func (d *Driver) Close() error { return nil }

// InjectRx queues a raw frame as if the controller had sent it.
func (d *Driver) InjectRx(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	frame := make([]byte, len(data))
	copy(frame, data)
	d.rxBuf.push(frame)
}

// InjectEvent queues an encoded event.
func (d *Driver) InjectEvent(ev proto.Event) error {
	raw, err := proto.EncodeEvent(ev)
	if err != nil {
		return err
	}
	d.InjectRx(raw)
	return nil
}

// Respond overrides the default reaction to op. A nil responder restores it.
func (d *Driver) Respond(op proto.Opcode, r Responder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r == nil {
		delete(d.responders, op)
		return
	}
	d.responders[op] = r
}

func (d *Driver) SetPeer(p Peer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peer = p
}

func (d *Driver) GetTxLog() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.txBuf.snapshot()
}

func (d *Driver) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}

// FilterSets counts SetFilter calls, installs and restores alike.
func (d *Driver) FilterSets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.filterSets
}

// Connections reports the number of live ACL links.
func (d *Driver) Connections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *Driver) AuthenticationEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.authEnable == 1
}

func (d *Driver) passes(frame []byte) bool {
	if len(frame) < 2 || frame[0] != proto.PacketTypeEvent {
		return true
	}
	f, err := proto.ParseFilter(d.filter)
	if err != nil {
		return false
	}
	return f.Passes(proto.EventCode(frame[1]))
}

func (d *Driver) respond(cmd *proto.Command) []proto.Event {
	status := func(s proto.Status) *proto.CommandStatus {
		return &proto.CommandStatus{Status: s, NumCommands: 1, Opcode: cmd.Opcode}
	}
	complete := func(rp ...byte) *proto.CommandComplete {
		return &proto.CommandComplete{NumCommands: 1, Opcode: cmd.Opcode, ReturnParams: rp}
	}

	switch cmd.Opcode {
	case proto.OpCreateConnection:
		cc, err := proto.ParseCreateConnection(cmd)
		if err != nil {
			return []proto.Event{status(proto.StatusInvalidParameters)}
		}
		for _, addr := range d.conns {
			if addr == cc.Address {
				return []proto.Event{
					status(proto.StatusSuccess),
					&proto.ConnectionComplete{Status: proto.StatusConnectionAlreadyExists, Address: cc.Address, LinkType: 1},
				}
			}
		}
		if cc.Address != d.peer.Address || !d.peer.InRange {
			return []proto.Event{
				status(proto.StatusSuccess),
				&proto.ConnectionComplete{Status: proto.StatusPageTimeout, Address: cc.Address, LinkType: 1},
			}
		}
		h := d.nextHandle
		d.nextHandle++
		if d.nextHandle > proto.MaxHandle {
			d.nextHandle = 1
		}
		d.conns[h] = cc.Address
		return []proto.Event{
			status(proto.StatusSuccess),
			&proto.ConnectionComplete{Status: proto.StatusSuccess, Handle: h, Address: cc.Address, LinkType: 1},
		}

	case proto.OpAuthenticationRequested:
		hc, err := proto.ParseHandleCommand(cmd)
		if err != nil {
			return []proto.Event{status(proto.StatusInvalidParameters)}
		}
		if _, ok := d.conns[hc.Handle]; !ok {
			return []proto.Event{status(proto.StatusUnknownConnectionID)}
		}
		result := proto.StatusSuccess
		if !d.peer.Paired {
			result = proto.StatusPINOrKeyMissing
		}
		return []proto.Event{
			status(proto.StatusSuccess),
			&proto.AuthenticationComplete{Status: result, Handle: hc.Handle},
		}

	case proto.OpReadRSSI:
		hc, err := proto.ParseHandleCommand(cmd)
		if err != nil {
			return []proto.Event{complete(byte(proto.StatusInvalidParameters))}
		}
		res := proto.RSSIResult{Handle: hc.Handle}
		if _, ok := d.conns[hc.Handle]; !ok {
			res.Status = proto.StatusUnknownConnectionID
		} else if d.peer.Unreadable {
			res.Status = proto.StatusCommandDisallowed
		} else {
			res.RSSI = d.nextRSSI()
		}
		return []proto.Event{complete(res.ReturnParams()...)}

	case proto.OpDisconnect:
		dc, err := proto.ParseDisconnect(cmd)
		if err != nil {
			return []proto.Event{status(proto.StatusInvalidParameters)}
		}
		if _, ok := d.conns[dc.Handle]; !ok {
			return []proto.Event{status(proto.StatusUnknownConnectionID)}
		}
		delete(d.conns, dc.Handle)
		return []proto.Event{
			status(proto.StatusSuccess),
			&proto.DisconnectionComplete{Status: proto.StatusSuccess, Handle: dc.Handle, Reason: uint8(proto.StatusLocalHostTerminated)},
		}

	case proto.OpReset:
		d.conns = make(map[uint16]proto.Address)
		return []proto.Event{complete(byte(proto.StatusSuccess))}

	case proto.OpReadAuthenticationEnable:
		return []proto.Event{complete(byte(proto.StatusSuccess), d.authEnable)}

	case proto.OpWriteAuthenticationEnable:
		if len(cmd.Params) != 1 {
			return []proto.Event{complete(byte(proto.StatusInvalidParameters))}
		}
		d.authEnable = cmd.Params[0]
		return []proto.Event{complete(byte(proto.StatusSuccess))}

	case proto.OpWriteSimplePairingMode:
		return []proto.Event{complete(byte(proto.StatusSuccess))}
	}

	return []proto.Event{status(proto.StatusUnknownCommand)}
}

func (d *Driver) nextRSSI() int8 {
	switch len(d.peer.RSSI) {
	case 0:
		return 0
	case 1:
		return d.peer.RSSI[0]
	}
	v := d.peer.RSSI[0]
	d.peer.RSSI = d.peer.RSSI[1:]
	return v
}

const ringCapacity = 64

type ringBuffer struct {
	data       [ringCapacity][]byte
	head, tail int // head = next pop, tail = next push
	count      int
}

func (rb *ringBuffer) push(frame []byte) {
	if rb.count == ringCapacity {
		// Overwrite the oldest when buffer is full to keep memory bounded
		rb.data[rb.tail] = nil
		rb.head = (rb.head + 1) % ringCapacity
		rb.count--
	}
	rb.data[rb.tail] = frame
	rb.tail = (rb.tail + 1) % ringCapacity
	rb.count++
}

func (rb *ringBuffer) pop() ([]byte, bool) {
	if rb.count == 0 {
		return nil, false
	}
	frame := rb.data[rb.head]
	rb.data[rb.head] = nil
	rb.head = (rb.head + 1) % ringCapacity
	rb.count--
	return frame, true
}

func (rb *ringBuffer) snapshot() [][]byte {
	out := make([][]byte, rb.count)
	idx := 0
	i := rb.head
	for c := 0; c < rb.count; c++ {
		p := rb.data[i]
		cp := make([]byte, len(p))
		copy(cp, p)
		out[idx] = cp
		idx++
		i = (i + 1) % ringCapacity
	}
	return out
}
