// Package hook implements the named synchronous hook-chain bus spec §6 and
// §9 name: a registry of named chains, each callback in a chain returning
// either Ok(value) or Stop(acc), with any Stop short-circuiting the rest of
// the chain. Grounded on the Event/Hook vocabulary in
// other_examples/0d9f612e_axmq-ax__hook-hook.go.go and the by-name,
// ID()-registered hook style in
// other_examples/16bd833b_getmockd-mockd__pkg-mqtt-hooks.go.go, narrowed to
// a by-name registry of independent chains (rather than axmq's one
// all-methods Hook interface) since the five chains the connection engine
// calls are unrelated to one another; the next-handler wrapping in
// gonzalop-mq's examples/middleware is the closest the chosen teacher's pack
// comes to a chain-of-responsibility shape and confirms the "call the next
// one until a stop" control flow.
package hook

import "sync"

// Name identifies a hook chain the engine invokes.
type Name string

const (
	ClientConnected    Name = "client.connected"
	ClientDisconnected Name = "client.disconnected"
	ClientSubscribe    Name = "client.subscribe"
	ClientUnsubscribe  Name = "client.unsubscribe"
	MessageDelivered   Name = "message.delivered"
)

// Result is the outcome of a single callback in a chain. Stop short-
// circuits the remaining callbacks; the engine treats any Stop uniformly
// per call site (spec §9).
type Result struct {
	Stop  bool
	Value interface{}
}

// Ok returns a non-stopping result carrying value.
func Ok(value interface{}) Result { return Result{Value: value} }

// Stopped returns a stopping result carrying acc.
func Stopped(acc interface{}) Result { return Result{Stop: true, Value: acc} }

// Func is a single hook callback.
type Func func(args interface{}) Result

// Bus is a registry of named hook chains.
type Bus struct {
	mu    sync.RWMutex
	chain map[Name][]Func
}

// NewBus returns an empty hook bus.
func NewBus() *Bus {
	return &Bus{chain: map[Name][]Func{}}
}

// Register appends fn to name's chain.
func (b *Bus) Register(name Name, fn Func) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chain[name] = append(b.chain[name], fn)
}

// Run executes name's chain in registration order, stopping at the first
// Stop result. When the chain is empty, Run returns a non-stopping Ok(nil)
// so call sites never need to special-case "no hooks registered".
func (b *Bus) Run(name Name, args interface{}) Result {
	b.mu.RLock()
	fns := append([]Func(nil), b.chain[name]...)
	b.mu.RUnlock()

	for _, fn := range fns {
		res := fn(args)
		if res.Stop {
			return res
		}
	}
	return Ok(nil)
}
