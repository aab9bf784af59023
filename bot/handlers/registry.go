// Package handlers wires user commands and button presses to the bot's
// engines: the setup dialogue, the discovery engine, and the resolver.
package handlers

import (
	"fmt"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/magbot/bot/discovery"
	"github.com/m3rciful/magbot/bot/scheduler"
	"github.com/m3rciful/magbot/bot/seedr"
	"github.com/m3rciful/magbot/bot/session"
	"github.com/m3rciful/magbot/bot/setup"
	"github.com/m3rciful/magbot/bot/vault"
	tg "github.com/m3rciful/magbot/core/telegram"
	"github.com/m3rciful/magbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/magbot/core/telegram/helpers"
	"github.com/m3rciful/magbot/core/telegram/state"
)

// TaskKindNotify delivers a one-shot "task complete" notice via the scheduler.
const TaskKindNotify = "notify"

// Deps collects everything the handlers need.
type Deps struct {
	Store     session.Store
	States    state.Manager
	Lifecycle *session.Lifecycle
	Engine    *discovery.Engine
	Resolver  *seedr.Resolver
	Flow      *setup.Flow
	Uploaders map[session.Provider]vault.Uploader
	Scheduler *scheduler.Scheduler
	Notifier  session.Notifier
	// ServiceAccount is the bot-level conversion account used when the
	// user's own provider carries no Seedr credentials.
	ServiceAccount seedr.Credentials
}

type handlers struct {
	Deps
}

// BuildRegistry registers all commands and callbacks on a fresh registry.
func BuildRegistry(d Deps) *tg.Registry {
	h := &handlers{Deps: d}
	reg := tg.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.cmdStart,
		Description: "What this bot does",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     h.cmdHelp,
		Description: "How to use the bot",
	})
	reg.RegisterCommand("/setup", commands.Command{
		Handler:     d.Flow.CmdSetup,
		Description: "Pick a storage and connect it",
	})
	reg.RegisterCommand("/search", commands.Command{
		Handler:     h.cmdSearch,
		Description: "Search for content by name",
	})
	reg.RegisterCommand("/status", commands.Command{
		Handler:     h.cmdStatus,
		Description: "Show your current session",
	})
	reg.RegisterCommand("/abort", commands.Command{
		Handler:     d.Flow.Abort,
		Description: "Cancel an in-progress setup",
		Hidden:      true,
	})

	_ = reg.RegisterCallback(setup.CallbackProviderKey, d.Flow.HandleProviderPick)
	_ = reg.RegisterCallback(setup.CallbackCancelKey, d.Flow.HandleCancel)
	_ = reg.RegisterCallback(callbackDownloadKey, h.handleDownload)

	if d.Scheduler != nil && d.Notifier != nil {
		notifier := d.Notifier
		d.Scheduler.RegisterExecutor(TaskKindNotify, func(t scheduler.Task) {
			_ = notifier.Notify(t.ChatID, t.Payload)
		})
	}

	return reg
}

func (h *handlers) cmdStart(c tele.Context) error {
	return tghelpers.SendText(c,
		"Hi! I turn magnet links into files in your own cloud storage.\n\n"+
			"1. /setup - connect a storage\n"+
			"2. /search <name> - find something\n"+
			"3. Tap a result and I do the rest.")
}

func (h *handlers) cmdHelp(c tele.Context) error {
	return tghelpers.SendText(c,
		"/setup - pick a storage back-end and connect it\n"+
			"/search <name> - look for content\n"+
			"/status - show your session\n"+
			"/abort - cancel an in-progress setup\n\n"+
			"Credentials live in memory only and are wiped automatically after the session expires.")
}

func (h *handlers) cmdStatus(c tele.Context) error {
	sess, ok := h.Store.Get(c.Sender().ID)
	if !ok || !sess.Configured {
		return tghelpers.SendText(c, "Not set up yet. Run /setup to connect a storage.")
	}
	text := fmt.Sprintf("Storage: %s\nConfigured: yes", sess.Provider)
	if h.Lifecycle.CanSchedule() {
		text += fmt.Sprintf("\nSession lifetime: %s from the last setup", h.Lifecycle.TTL())
	} else {
		text += "\nExpiry timer unavailable: the session will not be wiped automatically"
	}
	return tghelpers.SendText(c, text)
}
