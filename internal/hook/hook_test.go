package hook

import "testing"

func TestRun_EmptyChainReturnsNonStoppingOk(t *testing.T) {
	b := NewBus()

	res := b.Run(ClientConnected, nil)

	if res.Stop {
		t.Fatal("empty chain must not stop")
	}
	if res.Value != nil {
		t.Fatalf("empty chain must return nil value, got %v", res.Value)
	}
}

func TestRun_ExecutesCallbacksInRegistrationOrder(t *testing.T) {
	b := NewBus()
	var order []int
	b.Register(ClientSubscribe, func(interface{}) Result { order = append(order, 1); return Ok(nil) })
	b.Register(ClientSubscribe, func(interface{}) Result { order = append(order, 2); return Ok(nil) })
	b.Register(ClientSubscribe, func(interface{}) Result { order = append(order, 3); return Ok(nil) })

	b.Run(ClientSubscribe, nil)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected callbacks in order [1 2 3], got %v", order)
	}
}

func TestRun_StopShortCircuitsRemainingCallbacks(t *testing.T) {
	b := NewBus()
	var ran2, ran3 bool
	b.Register(ClientUnsubscribe, func(interface{}) Result { return Stopped("halted") })
	b.Register(ClientUnsubscribe, func(interface{}) Result { ran2 = true; return Ok(nil) })
	b.Register(ClientUnsubscribe, func(interface{}) Result { ran3 = true; return Ok(nil) })

	res := b.Run(ClientUnsubscribe, nil)

	if !res.Stop {
		t.Fatal("expected a stopping result")
	}
	if res.Value != "halted" {
		t.Fatalf("expected stopped value %q, got %v", "halted", res.Value)
	}
	if ran2 || ran3 {
		t.Fatal("callbacks after a Stop must not run")
	}
}

func TestRun_PassesArgsThroughToCallback(t *testing.T) {
	b := NewBus()
	type payload struct{ n int }
	var seen *payload
	b.Register(MessageDelivered, func(args interface{}) Result {
		seen = args.(*payload)
		return Ok(nil)
	})

	b.Run(MessageDelivered, &payload{n: 42})

	if seen == nil || seen.n != 42 {
		t.Fatalf("callback did not receive the args passed to Run")
	}
}

func TestRun_ChainsAreIndependentByName(t *testing.T) {
	b := NewBus()
	var connectedRan, disconnectedRan bool
	b.Register(ClientConnected, func(interface{}) Result { connectedRan = true; return Ok(nil) })
	b.Register(ClientDisconnected, func(interface{}) Result { disconnectedRan = true; return Ok(nil) })

	b.Run(ClientConnected, nil)

	if !connectedRan {
		t.Fatal("client.connected chain should have run")
	}
	if disconnectedRan {
		t.Fatal("client.disconnected chain must not run when client.connected fires")
	}
}
