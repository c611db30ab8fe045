package api

import "github.com/nimda/waxmpp/internal/core"

// PrivacySettings controls who can see the local account's last-seen,
// profile picture, and status. Each field is one of "all", "contacts",
// or "none".
type PrivacySettings struct {
	LastSeen       string
	ProfilePicture string
	Status         string
}

// SetPrivacySettings pushes privacy category values to the server. Zero
// fields are left unchanged.
func (a *ApiSurface) SetPrivacySettings(settings PrivacySettings) error {
	privacy := core.NewNode("privacy").SetAttr("xmlns", "privacy")
	addCategory := func(name, value string) {
		if value == "" {
			return
		}
		privacy.AddChild(core.NewNode("category").SetAttr("name", name).SetAttr("value", value))
	}
	addCategory("last", settings.LastSeen)
	addCategory("profile", settings.ProfilePicture)
	addCategory("status", settings.Status)

	n := core.NewNode("iq").
		SetAttr("type", "set").
		SetAttr("to", serverJID()).
		AddChild(privacy)
	result, err := a.requestIQ(n, defaultRequestTimeout)
	if err != nil {
		return err
	}
	if result.AttrOr("type", "") == "error" {
		return wrapRequestError(result)
	}
	return nil
}
