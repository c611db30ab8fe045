package api

import (
	"fmt"

	"github.com/nimda/waxmpp/internal/core"
)

// GroupInfo describes one group the local account is a participant of.
type GroupInfo struct {
	JID          string
	Subject      string
	Owner        string
	Participants []string
}

func groupIQ(typ, action string) *core.Node {
	return core.NewNode("iq").
		SetAttr("type", typ).
		SetAttr("to", serverJID()).
		AddChild(core.NewNode("group").SetAttr("xmlns", "w:g").SetAttr("action", action))
}

// CreateGroup creates a new group with the given subject and initial
// participants, returning its JID.
func (a *ApiSurface) CreateGroup(subject string, participants []string) (string, error) {
	n := groupIQ("set", "create")
	group := n.Child("group")
	group.SetAttr("subject", subject)
	for _, jid := range participants {
		group.AddChild(core.NewNode("participant").SetAttr("jid", jid))
	}

	result, err := a.requestIQ(n, defaultRequestTimeout)
	if err != nil {
		return "", err
	}
	if result.AttrOr("type", "") == "error" {
		return "", wrapRequestError(result)
	}
	resultGroup := result.Child("group")
	if resultGroup == nil {
		return "", fmt.Errorf("api: create-group result missing group node")
	}
	gjid, ok := resultGroup.Attr("jid")
	if !ok {
		return "", fmt.Errorf("api: create-group result missing jid")
	}
	return gjid, nil
}

func (a *ApiSurface) modifyParticipants(groupJID, action string, jids []string) error {
	n := groupIQ("set", action)
	n.SetAttr("to", groupJID)
	group := n.Child("group")
	for _, jid := range jids {
		group.AddChild(core.NewNode("participant").SetAttr("jid", jid))
	}
	result, err := a.requestIQ(n, defaultRequestTimeout)
	if err != nil {
		return err
	}
	if result.AttrOr("type", "") == "error" {
		return wrapRequestError(result)
	}
	return nil
}

// AddGroupParticipants invites jids to the given group.
func (a *ApiSurface) AddGroupParticipants(groupJID string, jids []string) error {
	return a.modifyParticipants(groupJID, "add", jids)
}

// RemoveGroupParticipants removes jids from the given group.
func (a *ApiSurface) RemoveGroupParticipants(groupJID string, jids []string) error {
	return a.modifyParticipants(groupJID, "remove", jids)
}

// LeaveGroup removes the local account from the given group.
func (a *ApiSurface) LeaveGroup(groupJID string) error {
	n := core.NewNode("iq").
		SetAttr("type", "set").
		SetAttr("to", serverJID()).
		AddChild(core.NewNode("leave").SetAttr("xmlns", "w:g").
			AddChild(core.NewNode("group").SetAttr("id", groupJID)))
	result, err := a.requestIQ(n, defaultRequestTimeout)
	if err != nil {
		return err
	}
	if result.AttrOr("type", "") == "error" {
		return wrapRequestError(result)
	}
	return nil
}

// GetGroupParticipants fetches the current participant list of a group.
func (a *ApiSurface) GetGroupParticipants(groupJID string) ([]string, error) {
	n := core.NewNode("iq").
		SetAttr("type", "get").
		SetAttr("to", groupJID).
		AddChild(core.NewNode("query").SetAttr("xmlns", "w:g"))
	result, err := a.requestIQ(n, defaultRequestTimeout)
	if err != nil {
		return nil, err
	}
	if result.AttrOr("type", "") == "error" {
		return nil, wrapRequestError(result)
	}
	group := result.Child("group")
	if group == nil {
		return nil, fmt.Errorf("api: group-participants result missing group node")
	}
	participants := make([]string, 0, len(group.Children))
	for _, c := range group.Children {
		if c.Tag != "participant" {
			continue
		}
		if jid, ok := c.Attr("jid"); ok {
			participants = append(participants, jid)
		}
	}
	return participants, nil
}

// RequestGroupList fetches every group the local account currently
// participates in.
func (a *ApiSurface) RequestGroupList() ([]GroupInfo, error) {
	n := core.NewNode("iq").
		SetAttr("type", "get").
		SetAttr("to", serverJID()).
		AddChild(core.NewNode("list").SetAttr("xmlns", "w:g"))
	result, err := a.requestIQ(n, defaultRequestTimeout)
	if err != nil {
		return nil, err
	}
	if result.AttrOr("type", "") == "error" {
		return nil, wrapRequestError(result)
	}
	list := result.Child("groups")
	if list == nil {
		return nil, nil
	}
	groups := make([]GroupInfo, 0, len(list.Children))
	for _, g := range list.Children {
		if g.Tag != "group" {
			continue
		}
		info := GroupInfo{
			JID:     g.AttrOr("jid", ""),
			Subject: g.AttrOr("subject", ""),
			Owner:   g.AttrOr("owner", ""),
		}
		for _, p := range g.Children {
			if p.Tag != "participant" {
				continue
			}
			if jid, ok := p.Attr("jid"); ok {
				info.Participants = append(info.Participants, jid)
			}
		}
		groups = append(groups, info)
	}
	return groups, nil
}
