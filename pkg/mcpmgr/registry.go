package mcpmgr

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ConnectionStatus represents the lifecycle of a registry entry.
type ConnectionStatus string

const (
	StatusConnecting ConnectionStatus = "connecting"
	StatusConnected  ConnectionStatus = "connected"
)

// Connection is a live session to one named server. It is owned by exactly
// one registry entry.
type Connection struct {
	ID          uuid.UUID
	Name        string
	Transport   TransportKind
	ConnectedAt time.Time

	session *mcp.ClientSession
}

// Session returns the underlying SDK session.
func (c *Connection) Session() *mcp.ClientSession { return c.session }

// ServerSummary captures the observable state of a registry entry.
type ServerSummary struct {
	Name         string           `json:"name"`
	Transport    TransportKind    `json:"transport"`
	Status       ConnectionStatus `json:"status"`
	ConnectionID string           `json:"connectionId,omitempty"`
	ConnectedAt  *time.Time       `json:"connectedAt,omitempty"`
}

type registryEntry struct {
	transport TransportKind
	conn      *Connection

	// pending is open while a connect for the name is in flight and is
	// closed once it commits or releases.
	pending   chan struct{}
	cancelled bool
}

// reservation is held by the single Connect allowed to establish a name.
type reservation struct {
	name  string
	entry *registryEntry
}

// Registry maps server names to connections. A name is either absent,
// reserved by an in-flight connect, or bound to one live connection.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// IsConnected reports whether name has a committed connection.
func (r *Registry) IsConnected(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Get returns the committed connection for name.
func (r *Registry) Get(name string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok || e.conn == nil {
		return nil, false
	}
	return e.conn, true
}

// Names returns the connected server names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for name, e := range r.entries {
		if e.conn != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Summaries returns one summary per entry, connecting ones included, sorted
// by name.
func (r *Registry) Summaries() []ServerSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ServerSummary, 0, len(r.entries))
	for name, e := range r.entries {
		s := ServerSummary{Name: name, Transport: e.transport, Status: StatusConnecting}
		if e.conn != nil {
			at := e.conn.ConnectedAt
			s.Status = StatusConnected
			s.ConnectionID = e.conn.ID.String()
			s.ConnectedAt = &at
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// reserve claims name for the caller. When name is already connected it
// returns connected=true; when another connect is in flight it returns a
// channel that is closed once that connect resolves.
func (r *Registry) reserve(name string, kind TransportKind) (res *reservation, wait <-chan struct{}, connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		if e.conn != nil {
			return nil, nil, true
		}
		return nil, e.pending, false
	}
	e := &registryEntry{transport: kind, pending: make(chan struct{})}
	r.entries[name] = e
	return &reservation{name: name, entry: e}, nil, false
}

// commit binds conn to the reservation. It returns false when the name was
// disconnected in the meantime; the caller then owns conn and must close it.
func (r *Registry) commit(res *reservation, conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer close(res.entry.pending)
	if res.entry.cancelled || r.entries[res.name] != res.entry {
		return false
	}
	res.entry.conn = conn
	return true
}

// release abandons a reservation that produced no connection.
func (r *Registry) release(res *reservation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[res.name] == res.entry {
		delete(r.entries, res.name)
	}
	close(res.entry.pending)
}

// remove drops name. A committed connection is returned for the caller to
// close; a pending reservation is cancelled so its connect discards the
// session it produces.
func (r *Registry) remove(name string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	delete(r.entries, name)
	if e.conn == nil {
		e.cancelled = true
		return nil, false
	}
	return e.conn, true
}

// removeConn drops name only while it is still bound to conn.
func (r *Registry) removeConn(name string, conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok && e.conn == conn {
		delete(r.entries, name)
		return true
	}
	return false
}

// drain empties the registry, cancelling reservations, and returns the
// committed connections.
func (r *Registry) drain() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	var conns []*Connection
	for name, e := range r.entries {
		if e.conn != nil {
			conns = append(conns, e.conn)
		} else {
			e.cancelled = true
		}
		delete(r.entries, name)
	}
	return conns
}
