// Package ui renders the system tray: build status at a glance plus a quit
// entry. Everything else happens through the HTTP API.
package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/clipsmith/clipsmith-agent/internal/clips"
)

type Tray struct {
	orchestrator *clips.Orchestrator
	logger       *slog.Logger

	statusItem *systray.MenuItem
	buildsItem *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	Orchestrator *clips.Orchestrator
	Logger       *slog.Logger
	OnQuit       func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		orchestrator: cfg.Orchestrator,
		logger:       cfg.Logger,
		onQuit:       cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Clipsmith")
	systray.SetTooltip("Clipsmith Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.buildsItem = systray.AddMenuItem("Builds: 0", "Active clip builds")
	t.buildsItem.Disable()

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Clipsmith Agent")

	go func() {
		for range quitItem.ClickedCh {
			t.logger.Info("quit requested from tray")
			if t.onQuit != nil {
				t.onQuit()
			}
			systray.Quit()
			return
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

// RefreshBuilds updates the menu from the orchestrator's registry. Called by
// the event loop whenever a build starts or finishes.
func (t *Tray) RefreshBuilds() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.statusItem == nil || t.buildsItem == nil {
		return
	}

	active := t.orchestrator.ActiveCount()
	if active > 0 {
		t.statusItem.SetTitle("Status: Building")
	} else {
		t.statusItem.SetTitle("Status: Idle")
	}
	t.buildsItem.SetTitle(fmt.Sprintf("Builds: %d", active))
}

func (t *Tray) Quit() {
	systray.Quit()
}
