// Package acl implements the AccessControl collaborator (spec §6) against a
// static credential table and a per-user allow-list of topic filter
// patterns. Authentication back-end implementations are a named Non-goal;
// this is the in-memory reference fixture the rest of the module is
// exercised against, not a pluggable backend.
package acl

import (
	"context"
	"errors"
	"sync"

	"github.com/beaconmq/beacon/internal/engine"
)

// ErrBadCredentials is returned by Authenticate when a registered user's
// password does not match.
var ErrBadCredentials = errors.New("acl: bad credentials")

// Rule grants a client (or, with ClientID/Username left empty, any client)
// permission to Action a topic filter.
type Rule struct {
	ClientID []byte
	Username []byte
	Action   engine.Action
	Filter   []byte
}

// user is one entry in the static credential table.
type user struct {
	password []byte
	isSuper  bool
}

// List is the static, allow-list AccessControl reference implementation.
type List struct {
	mu    sync.RWMutex
	users map[string]user
	rules []Rule
}

// New builds an empty List; callers seed it with AddUser/AddRule before
// wiring it into engine.InitParams.
func New() *List {
	return &List{users: map[string]user{}}
}

// AddUser registers a static credential. An empty username matches
// anonymous CONNECTs (no username supplied).
func (l *List) AddUser(username, password []byte, isSuper bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users[string(username)] = user{password: password, isSuper: isSuper}
}

// AddRule appends an ACL rule. Every rule is an allow rule: an action is
// permitted when any rule matches it, and there are no deny rules.
func (l *List) AddRule(r Rule) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rules = append(l.rules, r)
}

// Authenticate implements engine.AccessControl. A client with no registered
// username is treated as anonymous and always authenticates (spec Non-goal:
// authentication back-end implementations are out of scope; this fixture
// only gates super-user elevation).
func (l *List) Authenticate(_ context.Context, creds engine.Credentials, password []byte) (engine.AuthResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	u, ok := l.users[string(creds.Username)]
	if !ok {
		return engine.AuthResult{}, nil
	}
	if string(u.password) != string(password) {
		return engine.AuthResult{}, ErrBadCredentials
	}
	return engine.AuthResult{IsSuper: u.isSuper}, nil
}

// CheckACL implements engine.AccessControl: first matching rule wins;
// no match denies.
func (l *List) CheckACL(_ context.Context, creds engine.Credentials, action engine.Action, topic []byte) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, r := range l.rules {
		if r.Action != action {
			continue
		}
		if len(r.ClientID) > 0 && string(r.ClientID) != string(creds.ClientID) {
			continue
		}
		if len(r.Username) > 0 && string(r.Username) != string(creds.Username) {
			continue
		}
		if filterMatches(r.Filter, topic) {
			return true
		}
	}
	return false
}

// filterMatches reports whether an MQTT topic filter (with +/# wildcards)
// matches topic.
func filterMatches(filter, topic []byte) bool {
	fLevels := split(filter)
	tLevels := split(topic)
	for i, fl := range fLevels {
		if string(fl) == "#" {
			return true
		}
		if i >= len(tLevels) {
			return false
		}
		if string(fl) == "+" {
			continue
		}
		if string(fl) != string(tLevels[i]) {
			return false
		}
	}
	return len(fLevels) == len(tLevels)
}

func split(b []byte) [][]byte {
	var out [][]byte
	start := 0
	for i, c := range b {
		if c == '/' {
			out = append(out, b[start:i])
			start = i + 1
		}
	}
	out = append(out, b[start:])
	return out
}
