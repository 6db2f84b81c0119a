package clipboard

import (
	"errors"
	"strings"
	"sync"

	atotto "github.com/atotto/clipboard"
	"golang.design/x/clipboard"
)

// NativeBackend talks to the OS pasteboard through golang.design/x/clipboard.
type NativeBackend struct {
	once    sync.Once
	initErr error
}

func (n *NativeBackend) Name() string { return "native" }

func (n *NativeBackend) Init() error {
	n.once.Do(func() {
		n.initErr = clipboard.Init()
	})
	return n.initErr
}

func (n *NativeBackend) ReadText() (string, error) {
	if err := n.Init(); err != nil {
		return "", err
	}
	// nil means the clipboard holds no text; that is not an error.
	return string(clipboard.Read(clipboard.FmtText)), nil
}

func (n *NativeBackend) WriteText(text string) error {
	if err := n.Init(); err != nil {
		return err
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// ReadImage returns the PNG on the clipboard, or nil when it holds none.
func (n *NativeBackend) ReadImage() ([]byte, error) {
	if err := n.Init(); err != nil {
		return nil, err
	}
	return clipboard.Read(clipboard.FmtImage), nil
}

func (n *NativeBackend) WriteImage(png []byte) error {
	if err := n.Init(); err != nil {
		return err
	}
	clipboard.Write(clipboard.FmtImage, png)
	return nil
}

// CLIBackend shells out to pbcopy/xclip/xsel/wl-copy via atotto/clipboard.
// It needs no cgo and works under headless X servers.
type CLIBackend struct{}

var errNoClipboardTool = errors.New("no clipboard utility found (install xclip, xsel or wl-clipboard)")

func (CLIBackend) Name() string { return "cli" }

func (CLIBackend) Init() error {
	if atotto.Unsupported {
		return errNoClipboardTool
	}
	return nil
}

func (c CLIBackend) ReadText() (string, error) {
	if err := c.Init(); err != nil {
		return "", err
	}
	return atotto.ReadAll()
}

func (c CLIBackend) WriteText(text string) error {
	if err := c.Init(); err != nil {
		return err
	}
	return atotto.WriteAll(text)
}

// NewBackend picks a backend by configuration name ("native" or "cli").
func NewBackend(name string) Backend {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cli":
		return CLIBackend{}
	default:
		return &NativeBackend{}
	}
}
