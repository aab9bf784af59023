// Package setup drives the multi-step onboarding dialogue: provider choice,
// credential collection with inline validation, and finalisation that arms
// the session expiry timer.
package setup

import (
	"github.com/m3rciful/magbot/bot/session"
	"github.com/m3rciful/magbot/core/telegram/state"
)

// Dialogue states. Every credential field gets its own state so a prompt is
// never ambiguous about which field it collects.
const (
	StateProviderSelect state.State = "setup.provider"

	StateMegaEmail    state.State = "setup.mega.email"
	StateMegaPassword state.State = "setup.mega.password"

	StateDropboxToken state.State = "setup.dropbox.token"

	StateWebdavURL  state.State = "setup.webdav.url"
	StateWebdavUser state.State = "setup.webdav.user"
	StateWebdavPass state.State = "setup.webdav.pass"

	StateChannelForward state.State = "setup.channel.forward"

	StateSeedrEmail    state.State = "setup.seedr.email"
	StateSeedrPassword state.State = "setup.seedr.password"
)

// step is one credential-collection position in a provider's flow.
type step struct {
	state  state.State
	field  string
	prompt string
}

// flows is the transition table: the fixed credential sequence per provider.
// Providers absent from the map (local) need no credentials at all.
var flows = map[session.Provider][]step{
	session.ProviderMega: {
		{StateMegaEmail, session.FieldEmail, "Send me your Mega e-mail address."},
		{StateMegaPassword, session.FieldPassword, "Now send your Mega password."},
	},
	session.ProviderDropbox: {
		{StateDropboxToken, session.FieldToken, "Send me your Dropbox access token."},
	},
	session.ProviderWebdav: {
		{StateWebdavURL, session.FieldWebdavURL, "Send me the WebDAV URL of your share."},
		{StateWebdavUser, session.FieldWebdavUser, "Send the WebDAV username."},
		{StateWebdavPass, session.FieldWebdavPass, "Send the WebDAV password."},
	},
	session.ProviderChannel: {
		{StateChannelForward, session.FieldChannelID, "Forward me any message from your channel (the bot must be an admin there)."},
	},
	session.ProviderSeedrLocal: {
		{StateSeedrEmail, session.FieldEmail, "Send me your Seedr e-mail address."},
		{StateSeedrPassword, session.FieldPassword, "Now send your Seedr password."},
	},
	session.ProviderSeedrCloud: {
		{StateSeedrEmail, session.FieldEmail, "Send me your Seedr e-mail address."},
		{StateSeedrPassword, session.FieldPassword, "Now send your Seedr password."},
	},
}

// providerLabels maps menu labels to provider keys, in display order.
var providerOrder = []session.Provider{
	session.ProviderLocal,
	session.ProviderMega,
	session.ProviderDropbox,
	session.ProviderWebdav,
	session.ProviderChannel,
	session.ProviderSeedrLocal,
	session.ProviderSeedrCloud,
}

var providerLabels = map[session.Provider]string{
	session.ProviderLocal:      "📄 Just give me links",
	session.ProviderMega:       "☁️ Mega",
	session.ProviderDropbox:    "📦 Dropbox",
	session.ProviderWebdav:     "🗄 WebDAV",
	session.ProviderChannel:    "📣 Telegram channel",
	session.ProviderSeedrLocal: "🌱 Seedr → link",
	session.ProviderSeedrCloud: "🌱 Seedr → keep in cloud",
}

// CredentialStates lists every state that consumes a free-text step, for
// FSM handler registration.
func CredentialStates() []state.State {
	seen := make(map[state.State]struct{})
	var out []state.State
	for _, flow := range flows {
		for _, st := range flow {
			if _, ok := seen[st.state]; ok {
				continue
			}
			seen[st.state] = struct{}{}
			out = append(out, st.state)
		}
	}
	return out
}

// flowFor returns the credential sequence for a provider.
func flowFor(p session.Provider) []step {
	return flows[p]
}

// stepIndex locates the position of st within the provider's flow.
func stepIndex(p session.Provider, st state.State) (int, bool) {
	for i, s := range flows[p] {
		if s.state == st {
			return i, true
		}
	}
	return 0, false
}

// parseProvider maps a callback payload to a known provider.
func parseProvider(raw string) (session.Provider, bool) {
	p := session.Provider(raw)
	if p == session.ProviderLocal {
		return p, true
	}
	if _, ok := flows[p]; ok {
		return p, true
	}
	return session.ProviderNone, false
}
