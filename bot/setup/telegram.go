package setup

import (
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/magbot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/magbot/core/telegram/helpers"
	"github.com/m3rciful/magbot/core/telegram/keyboard"
	"github.com/m3rciful/magbot/core/telegram/state"
)

// Callback keys used by the setup dialogue.
const (
	CallbackProviderKey = "setup_provider"
	CallbackCancelKey   = "setup_cancel"
)

// Flow glues the dialogue engine to Telegram: it renders replies, keeps the
// FSM position in the state manager, and feeds user input to the Machine.
type Flow struct {
	machine *Machine
	states  state.Manager
}

// NewFlow builds the Telegram glue and registers the credential-state
// handlers with the FSM registry.
func NewFlow(machine *Machine, states state.Manager) *Flow {
	f := &Flow{machine: machine, states: states}
	for _, st := range CredentialStates() {
		state.RegisterHandler(st, f.handleStep)
	}
	return f
}

// CmdSetup handles /setup: entry point and restart-from-anywhere fallback.
func (f *Flow) CmdSetup(c tele.Context) error {
	userID := c.Sender().ID
	next, reply := f.machine.Start(tghelpers.BuildContext(c), userID, c.Chat().ID)
	f.apply(userID, next, reply)
	return f.send(c, reply)
}

// HandleProviderPick consumes the provider-menu callback.
func (f *Flow) HandleProviderPick(c tele.Context) error {
	userID := c.Sender().ID
	choice := callbacks.CallbackPayload(c)
	next, reply, err := f.machine.ChooseProvider(tghelpers.BuildContext(c), userID, c.Chat().ID, choice)
	if err != nil {
		return err
	}
	f.apply(userID, next, reply)
	return f.edit(c, reply)
}

// HandleCancel aborts an in-progress dialogue from the inline cancel button.
func (f *Flow) HandleCancel(c tele.Context) error {
	userID := c.Sender().ID
	reply, err := f.machine.Abort(userID, c.Chat().ID)
	if err != nil {
		return err
	}
	f.states.ClearState(userID)
	return f.edit(c, reply)
}

// Abort cancels the dialogue from the /abort command.
func (f *Flow) Abort(c tele.Context) error {
	userID := c.Sender().ID
	if !f.states.InProgress(userID) {
		return tghelpers.SendText(c, "Nothing to cancel.")
	}
	reply, err := f.machine.Abort(userID, c.Chat().ID)
	if err != nil {
		return err
	}
	f.states.ClearState(userID)
	return f.send(c, reply)
}

// handleStep consumes one free-text (or forwarded) input for whichever
// credential state the user is currently in.
func (f *Flow) handleStep(c tele.Context) error {
	userID := c.Sender().ID
	current := f.states.GetState(userID)

	input := c.Text()
	if current == StateChannelForward {
		msg := c.Message()
		if msg == nil || msg.OriginalChat == nil {
			return tghelpers.SendText(c, "That wasn't a forward. Forward me any message from your channel.")
		}
		input = strconv.FormatInt(msg.OriginalChat.ID, 10)
	}

	next, reply, err := f.machine.Advance(tghelpers.BuildContext(c), userID, c.Chat().ID, current, input)
	if err != nil {
		return err
	}
	f.apply(userID, next, reply)
	return f.send(c, reply)
}

func (f *Flow) apply(userID int64, next state.State, reply Reply) {
	if reply.Done || next == state.StateIdle {
		f.states.ClearState(userID)
		return
	}
	f.states.SetState(userID, next)
}

func (f *Flow) send(c tele.Context, reply Reply) error {
	if markup := f.markupFor(reply); markup != nil {
		return tghelpers.SendText(c, reply.Text, &tele.SendOptions{ReplyMarkup: markup})
	}
	return tghelpers.SendText(c, reply.Text)
}

func (f *Flow) edit(c tele.Context, reply Reply) error {
	if markup := f.markupFor(reply); markup != nil {
		return c.EditOrSend(reply.Text, markup)
	}
	return c.EditOrSend(reply.Text)
}

func (f *Flow) markupFor(reply Reply) *tele.ReplyMarkup {
	if !reply.ShowProviders {
		if reply.Done {
			return nil
		}
		return keyboard.SingleCancelMarkup(CallbackCancelKey)
	}
	buttons := make([]keyboard.InlineBtn, 0, len(providerOrder))
	for _, p := range providerOrder {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   providerLabels[p],
			Unique: CallbackProviderKey,
			Data:   string(p),
		})
	}
	return keyboard.InlineButtonsNPerRow(buttons, 2)
}
