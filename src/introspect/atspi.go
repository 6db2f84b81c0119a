package introspect

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	atspiRegistry   = "org.a11y.atspi.Registry"
	atspiRootPath   = dbus.ObjectPath("/org/a11y/atspi/accessible/root")
	ifaceAccessible = "org.a11y.atspi.Accessible"
	ifaceText       = "org.a11y.atspi.Text"

	rolePasswordText = 40

	stateActive  = 1
	stateDefunct = 6
	stateFocused = 12
	stateShowing = 25

	defaultMaxDepth = 40
	defaultMaxNodes = 4000
	callTimeout     = 250 * time.Millisecond

	// focusReuse is how long a focused element found by FocusedElementSecure
	// serves the FocusedSelectedText call that follows it.
	focusReuse = 500 * time.Millisecond
)

// node is one accessible object in the AT-SPI tree.
type node interface {
	Role() (uint32, error)
	State() (stateSet, error)
	Children() ([]node, error)
	SelectedText() (string, error)
}

// stateSet is the AT-SPI state bitfield, least significant word first.
type stateSet []uint32

func (s stateSet) has(bit uint) bool {
	word := int(bit / 32)
	if word >= len(s) {
		return false
	}
	return s[word]&(1<<(bit%32)) != 0
}

// ATSPI finds the focused element by walking the accessibility bus used by
// GTK, Qt, Firefox and Chromium on Linux desktops.
//
// Availability is fixed when the adapter is built. A bus that cannot be
// reached later surfaces as an error from the focus queries.
type ATSPI struct {
	mu        sync.Mutex
	conn      *dbus.Conn
	root      func() (node, error)
	available bool
	maxDepth  int
	maxNodes  int

	focusMu sync.Mutex
	last    node
	lastAt  time.Time
	now     func() time.Time
}

func NewATSPI() *ATSPI {
	a := &ATSPI{
		available: desktopSession(),
		maxDepth:  defaultMaxDepth,
		maxNodes:  defaultMaxNodes,
		now:       time.Now,
	}
	a.root = a.dbusRoot
	return a
}

// desktopSession reports whether there is a graphical session whose
// applications could publish an accessibility tree.
func desktopSession() bool {
	for _, key := range []string{"AT_SPI_BUS_ADDRESS", "WAYLAND_DISPLAY", "DISPLAY"} {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

// Available reports whether this session has an accessibility surface. It
// does not touch the bus.
func (a *ATSPI) Available() bool { return a.available }

func (a *ATSPI) FocusedElementSecure() (bool, error) {
	n, err := a.focused()
	if err != nil {
		return false, err
	}
	a.remember(n)
	role, err := n.Role()
	if err != nil {
		return false, mapCallError(err)
	}
	return role == rolePasswordText, nil
}

func (a *ATSPI) FocusedSelectedText() (string, error) {
	n := a.recall()
	if n == nil {
		var err error
		if n, err = a.focused(); err != nil {
			return "", err
		}
	}
	text, err := n.SelectedText()
	if err != nil {
		return "", mapCallError(err)
	}
	return text, nil
}

// Close drops the accessibility bus connection.
func (a *ATSPI) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}

func (a *ATSPI) remember(n node) {
	a.focusMu.Lock()
	defer a.focusMu.Unlock()
	a.last, a.lastAt = n, a.clock()
}

// recall hands out the remembered element once, while it is fresh.
func (a *ATSPI) recall() node {
	a.focusMu.Lock()
	defer a.focusMu.Unlock()
	n := a.last
	a.last = nil
	if n == nil || a.clock().Sub(a.lastAt) > focusReuse {
		return nil
	}
	return n
}

func (a *ATSPI) clock() time.Time {
	if a.now == nil {
		return time.Now()
	}
	return a.now()
}

func (a *ATSPI) focused() (node, error) {
	root, err := a.root()
	if err != nil {
		return nil, err
	}
	return findFocused(root, a.maxDepth, a.maxNodes)
}

// findFocused walks the tree breadth-first. Only the active window of each
// application is entered, and below it subtrees that are not showing are
// skipped; neither can hold focus.
func findFocused(root node, maxDepth, maxNodes int) (node, error) {
	type item struct {
		n     node
		depth int
	}
	queue := []item{{n: root}}
	visited := 0

	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		visited++
		if visited > maxNodes {
			break
		}

		if it.depth > 0 {
			st, err := it.n.State()
			if err != nil || st.has(stateDefunct) {
				continue
			}
			if st.has(stateFocused) {
				return it.n, nil
			}
			if it.depth == 2 && !st.has(stateActive) {
				continue
			}
			if it.depth > 1 && !st.has(stateShowing) {
				continue
			}
		}
		if it.depth >= maxDepth {
			continue
		}

		children, err := it.n.Children()
		if err != nil {
			if it.depth == 0 {
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			continue
		}
		for _, c := range children {
			queue = append(queue, item{n: c, depth: it.depth + 1})
		}
	}
	return nil, ErrNoFocusedElement
}

func (a *ATSPI) dbusRoot() (node, error) {
	conn, err := a.bus()
	if err != nil {
		return nil, err
	}
	return dbusNode{conn: conn, dest: atspiRegistry, path: atspiRootPath}, nil
}

func (a *ATSPI) bus() (*dbus.Conn, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn != nil && a.conn.Connected() {
		return a.conn, nil
	}

	addr, err := busAddress()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	conn, err := dbus.Connect(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %v", ErrUnavailable, addr, err)
	}
	a.conn = conn
	return conn, nil
}

// busAddress asks the session bus where the accessibility bus lives.
func busAddress() (string, error) {
	if addr := os.Getenv("AT_SPI_BUS_ADDRESS"); addr != "" {
		return addr, nil
	}
	session, err := dbus.SessionBus()
	if err != nil {
		return "", fmt.Errorf("session bus: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	var addr string
	err = session.Object("org.a11y.Bus", "/org/a11y/bus").
		CallWithContext(ctx, "org.a11y.Bus.GetAddress", 0).Store(&addr)
	if err != nil {
		return "", fmt.Errorf("org.a11y.Bus.GetAddress: %w", err)
	}
	if addr == "" {
		return "", errors.New("accessibility bus reported an empty address")
	}
	return addr, nil
}

type dbusNode struct {
	conn *dbus.Conn
	dest string
	path dbus.ObjectPath
}

func (n dbusNode) call(method string, args []interface{}, out ...interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return n.conn.Object(n.dest, n.path).CallWithContext(ctx, method, 0, args...).Store(out...)
}

func (n dbusNode) Role() (uint32, error) {
	var role uint32
	err := n.call(ifaceAccessible+".GetRole", nil, &role)
	return role, err
}

func (n dbusNode) State() (stateSet, error) {
	var st []uint32
	err := n.call(ifaceAccessible+".GetState", nil, &st)
	return stateSet(st), err
}

func (n dbusNode) Children() ([]node, error) {
	var refs []struct {
		Name string
		Path dbus.ObjectPath
	}
	if err := n.call(ifaceAccessible+".GetChildren", nil, &refs); err != nil {
		return nil, err
	}
	out := make([]node, 0, len(refs))
	for _, r := range refs {
		out = append(out, dbusNode{conn: n.conn, dest: r.Name, path: r.Path})
	}
	return out, nil
}

func (n dbusNode) SelectedText() (string, error) {
	var count int32
	if err := n.call(ifaceText+".GetNSelections", nil, &count); err != nil {
		return "", err
	}
	if count == 0 {
		return "", nil
	}
	var start, end int32
	if err := n.call(ifaceText+".GetSelection", []interface{}{int32(0)}, &start, &end); err != nil {
		return "", err
	}
	if end <= start {
		return "", nil
	}
	var text string
	err := n.call(ifaceText+".GetText", []interface{}{start, end}, &text)
	return text, err
}

// mapCallError turns D-Bus failures into the package's error vocabulary.
func mapCallError(err error) error {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		switch dbusErr.Name {
		case "org.freedesktop.DBus.Error.UnknownMethod",
			"org.freedesktop.DBus.Error.UnknownInterface",
			"org.freedesktop.DBus.Error.UnknownObject":
			return fmt.Errorf("%w: %s", ErrNoAttributeSupport, dbusErr.Name)
		case "org.freedesktop.DBus.Error.AccessDenied":
			return fmt.Errorf("%w: %s", ErrPermissionDenied, dbusErr.Name)
		}
	}
	return err
}
