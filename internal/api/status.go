package api

import (
	"context"
	"fmt"

	"github.com/nimda/waxmpp/internal/core"
)

// SetStatus sets the local account's status text ("about").
func (a *ApiSurface) SetStatus(text string) error {
	n := core.NewNode("iq").
		SetAttr("type", "set").
		SetAttr("to", serverJID()).
		AddChild(core.NewNode("status").SetAttr("xmlns", "status").SetText(text))
	result, err := a.requestIQ(n, defaultRequestTimeout)
	if err != nil {
		return err
	}
	if result.AttrOr("type", "") == "error" {
		return wrapRequestError(result)
	}
	return nil
}

// GetStatus fetches the status text of the given JID.
func (a *ApiSurface) GetStatus(jid string) (string, error) {
	n := core.NewNode("iq").
		SetAttr("type", "get").
		SetAttr("to", serverJID()).
		AddChild(core.NewNode("status").SetAttr("xmlns", "status").
			AddChild(core.NewNode("user").SetAttr("jid", jid)))
	result, err := a.requestIQ(n, defaultRequestTimeout)
	if err != nil {
		return "", err
	}
	if result.AttrOr("type", "") == "error" {
		return "", wrapRequestError(result)
	}
	status := result.Child("status")
	if status == nil {
		return "", fmt.Errorf("api: status result missing status node")
	}
	return core.NormalizeText(status.Payload), nil
}

// GetProfilePicture fetches the current profile picture JPEG bytes for
// the given JID, or nil if it has none set.
func (a *ApiSurface) GetProfilePicture(ctx context.Context, jid string) ([]byte, error) {
	n := core.NewNode("iq").
		SetAttr("type", "get").
		SetAttr("to", jid).
		AddChild(core.NewNode("picture").SetAttr("xmlns", "w:profile:picture").SetAttr("type", "image"))
	result, err := a.requestIQWithContext(ctx, n)
	if err != nil {
		return nil, err
	}
	if result.AttrOr("type", "") == "error" {
		return nil, wrapRequestError(result)
	}
	pic := result.Child("picture")
	if pic == nil {
		return nil, nil
	}
	return pic.Payload, nil
}

// RequestContactsSync asks the server to confirm which of the given
// phone numbers are registered WhatsApp users, returning their JIDs.
func (a *ApiSurface) RequestContactsSync(numbers []string) ([]string, error) {
	sync := core.NewNode("sync").SetAttr("xmlns", "urn:xmpp:whatsapp:sync")
	users := core.NewNode("user")
	for _, num := range numbers {
		users.AddChild(core.NewNode("user").SetText(num))
	}
	sync.AddChild(users)
	n := core.NewNode("iq").
		SetAttr("type", "get").
		SetAttr("to", serverJID()).
		AddChild(sync)

	result, err := a.requestIQ(n, defaultRequestTimeout)
	if err != nil {
		return nil, err
	}
	if result.AttrOr("type", "") == "error" {
		return nil, wrapRequestError(result)
	}
	resultSync := result.Child("sync")
	if resultSync == nil {
		return nil, nil
	}
	in := resultSync.Child("in")
	if in == nil {
		return nil, nil
	}
	jids := make([]string, 0, len(in.Children))
	for _, c := range in.Children {
		if c.Tag == "user" {
			jids = append(jids, c.Text())
		}
	}
	return jids, nil
}
