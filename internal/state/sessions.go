package state

import (
	"fmt"

	"github.com/ncopds/ncopds/internal/config"
)

func (m *Machine) connection(name string) (config.Connection, bool) {
	for _, c := range m.connections {
		if c.Name == name {
			return c, true
		}
	}
	return config.Connection{}, false
}

// Connections returns the configured connections in order.
func (m *Machine) Connections() []config.Connection {
	return append([]config.Connection(nil), m.connections...)
}

// ActiveSession returns the key of the active back-stack.
func (m *Machine) ActiveSession() string {
	return m.active
}

// SwitchConnection makes the named connection's session active, creating it
// at the connection root if it does not exist, and re-loads its top.
// LocalSession switches to the downloads directory.
func (m *Machine) SwitchConnection(name string) error {
	root := Local(m.downloadDir)
	if name != LocalSession {
		conn, ok := m.connection(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownConnection, name)
		}
		root = Remote(conn.Name, conn.URL)
	}

	s, ok := m.sessions[name]
	if !ok {
		s = &session{stack: []Location{root}}
		m.sessions[name] = s
	}
	m.active = name
	m.filter = ""
	m.load(s.top())
	return nil
}

// NextConnection cycles through the configured connections in order. From
// the local directory it goes to the first connection.
func (m *Machine) NextConnection() error {
	if len(m.connections) == 0 {
		return ErrUnknownConnection
	}
	next := 0
	for i, c := range m.connections {
		if c.Name == m.active {
			next = (i + 1) % len(m.connections)
			break
		}
	}
	return m.SwitchConnection(m.connections[next].Name)
}

// OpenLocal switches to the downloads directory session.
func (m *Machine) OpenLocal() {
	// The local root always exists on disk, so this cannot fail.
	_ = m.SwitchConnection(LocalSession)
}

// AddConnection adds a connection for this run. Persisting it is the
// caller's business.
func (m *Machine) AddConnection(conn config.Connection) error {
	if err := conn.Validate(); err != nil {
		return err
	}
	if _, exists := m.connection(conn.Name); exists {
		return fmt.Errorf("%w: %s", config.ErrDuplicateConnection, conn.Name)
	}
	m.connections = append(m.connections, conn)
	return nil
}
