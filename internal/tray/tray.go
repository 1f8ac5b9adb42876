// Package tray provides the system tray menu for mudra.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/scribe"
)

// TailLength is how many trailing characters of the text the status line shows.
const TailLength = 24

// Controller is the pipeline as driven from the menu.
type Controller interface {
	Snapshot() scribe.Snapshot
	ToggleArmed() bool
	Reset()
}

// Tray represents the system tray application.
type Tray struct {
	controller Controller
	onOpen     func()
	onQuit     func()
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuStatus *systray.MenuItem
}

// New creates a Tray driving c.
func New(c Controller) *Tray {
	return &Tray{controller: c}
}

// OnOpen sets the callback for the "Open Preview..." item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit exits the tray loop.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra sign language scribe")

	snap := t.controller.Snapshot()

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(snap.Armed), "Start or stop sampling")
	systray.AddSeparator()
	t.menuStatus = systray.AddMenuItem(statusTitle(snap), "Current status")
	t.menuStatus.Disable()
	t.mu.Unlock()

	menuClear := systray.AddMenuItem("Clear", "Clear the text")
	menuOpen := systray.AddMenuItem("Open Preview...", "Open the preview in a browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuClear.ClickedCh:
				t.controller.Reset()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) handleToggle() {
	armed := t.controller.ToggleArmed()

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(armed))
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Update refreshes the menu from a pipeline event. It is safe to call
// before the tray is ready.
func (t *Tray) Update(ev scribe.Event) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuStatus != nil {
		t.menuStatus.SetTitle(statusTitle(ev.State))
	}
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(ev.State.Armed))
	}
}

func toggleTitle(armed bool) string {
	if armed {
		return "■ Stop"
	}
	return "▶ Start"
}

func statusTitle(snap scribe.Snapshot) string {
	text := tail(snap.Text, TailLength)
	if text == "" {
		return snap.Status
	}
	return snap.Status + ": " + text
}

// tail returns the last n runes of s, prefixed with an ellipsis when cut.
func tail(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "…" + string(r[len(r)-n:])
}
