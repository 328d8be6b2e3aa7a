package engine

import (
	"fmt"
	"sort"
)

// Progress within this of 1 counts as delivered, so speeds such as 0.1 per
// tick finish on the tick arithmetic says they should.
const completionEpsilon = 1e-9

// SendResult is a connection's answer to a send request.
type SendResult int

const (
	SendStarted     SendResult = iota // sending (or already sending) from this sender
	SendBusy                          // sending from the other end; try later
	SendUnavailable                   // every method is disabled; stalled
	SendAlreadySent                   // the message has already crossed
)

func (r SendResult) String() string {
	switch r {
	case SendStarted:
		return "started"
	case SendBusy:
		return "busy"
	case SendUnavailable:
		return "unavailable"
	case SendAlreadySent:
		return "already sent"
	}
	return fmt.Sprintf("SendResult(%d)", int(r))
}

// MethodState is one method on one connection.
type MethodState struct {
	ID    string
	Speed float64 // fraction of the connection covered per tick

	// Actions currently disabling the method, with multiplicity.
	blocked map[ActionID]int
}

// Usable reports whether no action is disabling the method.
func (m *MethodState) Usable() bool {
	return len(m.blocked) == 0
}

// Blocks returns how many disables are outstanding on the method.
func (m *MethodState) Blocks() int {
	n := 0
	for _, c := range m.blocked {
		n += c
	}
	return n
}

func (m *MethodState) block(cause ActionID) {
	if m.blocked == nil {
		m.blocked = make(map[ActionID]int)
	}
	m.blocked[cause]++
}

func (m *MethodState) unblock(cause ActionID) {
	n, ok := m.blocked[cause]
	if !ok {
		panic(fmt.Sprintf("engine: method %q enabled by action %d which never disabled it", m.ID, cause))
	}
	if n == 1 {
		delete(m.blocked, cause)
		return
	}
	m.blocked[cause] = n - 1
}

// Connection carries the message between two people over its methods.
type Connection struct {
	ID       int
	People   [2]int
	Distance float64
	Methods  []MethodState // fastest first
	Sent     bool

	sending   bool
	sender    int
	current   int // index into Methods; -1 while stalled
	progress  float64
	startTick uint64
}

func newConnection(id, a, b int, dist float64, methods []MethodState) *Connection {
	// Stable: equal speeds keep catalog order.
	sort.SliceStable(methods, func(i, j int) bool {
		return methods[i].Speed > methods[j].Speed
	})
	return &Connection{
		ID:       id,
		People:   [2]int{a, b},
		Distance: dist,
		Methods:  methods,
		current:  -1,
	}
}

// Other returns the person at the other end from p.
func (c *Connection) Other(p int) int {
	if c.People[0] == p {
		return c.People[1]
	}
	return c.People[0]
}

// Sending reports whether a send is in flight (possibly stalled).
func (c *Connection) Sending() bool { return c.sending }

// Sender returns the sending person, or -1.
func (c *Connection) Sender() int {
	if !c.sending {
		return -1
	}
	return c.sender
}

// Progress returns how far the current send has got, in [0, 1).
func (c *Connection) Progress() float64 { return c.progress }

// CurrentMethod returns the method in use, or "" when idle or stalled.
func (c *Connection) CurrentMethod() string {
	if !c.sending || c.current < 0 {
		return ""
	}
	return c.Methods[c.current].ID
}

// Stalled reports whether a send is in flight with no usable method.
func (c *Connection) Stalled() bool {
	return c.sending && c.current < 0
}

// Method returns the state of the named method, or nil.
func (c *Connection) Method(id string) *MethodState {
	if i := c.methodIndex(id); i >= 0 {
		return &c.Methods[i]
	}
	return nil
}

func (c *Connection) methodIndex(id string) int {
	for i := range c.Methods {
		if c.Methods[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Connection) fastestUsable() int {
	for i := range c.Methods {
		if c.Methods[i].Usable() {
			return i
		}
	}
	return -1
}

// send starts (or re-checks) a send from sender.
func (c *Connection) send(w *World, sender int) SendResult {
	if c.Sent {
		return SendAlreadySent
	}
	if c.sending {
		if c.sender != sender {
			return SendBusy
		}
		if c.current < 0 {
			c.current = c.fastestUsable()
		}
		if c.current < 0 {
			return SendUnavailable
		}
		return SendStarted
	}

	c.sending = true
	c.sender = sender
	c.progress = 0
	c.startTick = w.tick
	c.current = c.fastestUsable()
	if c.current < 0 {
		return SendUnavailable
	}
	return SendStarted
}

// resend picks a new method after the current one was disabled. Switching
// restarts progress; running out of methods stalls the send where it is
// and tells the sender.
func (c *Connection) resend(w *World) {
	if i := c.fastestUsable(); i >= 0 {
		c.current = i
		c.progress = 0
		return
	}
	c.current = -1
	w.people[c.sender].stalled(w, c.ID)
}

// cancel abandons the send in flight.
func (c *Connection) cancel() {
	c.sending = false
	c.sender = -1
	c.current = -1
	c.progress = 0
}

func (c *Connection) update(w *World) {
	if !c.sending || c.current < 0 || c.startTick == w.tick {
		return
	}
	c.progress += c.Methods[c.current].Speed
	if c.progress < 1-completionEpsilon {
		return
	}

	sender := c.sender
	receiver := c.Other(sender)
	c.Sent = true
	c.cancel()
	w.people[sender].finished(w, c.ID)
	w.people[receiver].receive(w, c.ID)
}

// disable adds cause to the method's blockers. Methods this connection does
// not offer are ignored.
func (c *Connection) disable(w *World, method string, cause ActionID) {
	i := c.methodIndex(method)
	if i < 0 {
		return
	}
	m := &c.Methods[i]
	wasUsable := m.Usable()
	m.block(cause)
	if c.sending && wasUsable && i == c.current {
		c.resend(w)
	}
}

// enable removes one occurrence of cause from the method's blockers.
func (c *Connection) enable(method string, cause ActionID) {
	i := c.methodIndex(method)
	if i < 0 {
		return
	}
	m := &c.Methods[i]
	m.unblock(cause)
	if !c.sending || !m.Usable() || i == c.current {
		return
	}
	if c.current < 0 {
		// Stalled: carry on from where it stopped.
		c.current = i
		return
	}
	cur := c.Methods[c.current]
	if 1/m.Speed < (1-c.progress)/cur.Speed {
		c.current = i
		c.progress = 0
	}
}
