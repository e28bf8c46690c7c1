package family

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"familyvault/internal/api"
	"familyvault/internal/dom"
	"familyvault/internal/model"
	"familyvault/internal/repository"
)

// LoadMembers renders the member grid. Depending on which candidate
// answered, members arrive under "members", inside "familyGroup" or
// inside the first of "familyGroups". Failures are logged only.
func (c *Controller) LoadMembers(ctx context.Context) ([]model.Member, error) {
	env, err := c.api.Call(ctx, api.ListMembers, api.Request{})
	if err != nil {
		c.log.WarnContext(ctx, "load family members", slog.String("error", err.Error()))
		return nil, err
	}
	members, err := membersOf(env)
	if err != nil {
		c.log.WarnContext(ctx, "decode family members", slog.String("error", err.Error()))
		return nil, err
	}

	c.doc.SetHTML(ElemFamilyGrid, "")
	if len(members) == 0 {
		c.doc.SetHTML(ElemFamilyGrid, `<p class="empty-state">No family members yet. Invite someone to get started.</p>`)
		return members, nil
	}
	for i, m := range members {
		c.doc.Append(ElemFamilyGrid, dom.Element{
			ID:    fmt.Sprintf("member-%d", i),
			Attrs: map[string]string{"class": "member-card", "data-status": m.Status},
			HTML:  renderMember(m),
		})
	}
	c.doc.Show(ElemFamilySection)
	return members, nil
}

// ClearFamilyData empties the family view and drops cached family
// entries from local storage.
func (c *Controller) ClearFamilyData(ctx context.Context) {
	c.doc.SetHTML(ElemFamilyGrid, "")
	c.doc.SetHTML(ElemPending, "")
	if c.storage == nil {
		return
	}
	if err := c.storage.Remove(ctx, repository.KeyInvitations, repository.KeyMembers); err != nil {
		c.log.WarnContext(ctx, "clear cached family data", slog.String("error", err.Error()))
	}
}

func membersOf(env *model.Envelope) ([]model.Member, error) {
	var members []model.Member
	if ok, err := env.Decode("members", &members); ok || err != nil {
		return members, err
	}
	var group model.FamilyGroup
	if ok, err := env.Decode("familyGroup", &group); ok || err != nil {
		return group.Members, err
	}
	var groups []model.FamilyGroup
	if _, err := env.Decode("familyGroups", &groups); err != nil || len(groups) == 0 {
		return nil, err
	}
	return groups[0].Members, nil
}

func renderMember(m model.Member) string {
	var b strings.Builder
	name := m.DisplayName()
	initial := "?"
	if name != "" {
		initial = strings.ToUpper(string([]rune(name)[:1]))
	}
	fmt.Fprintf(&b, `<div class="avatar">%s</div>`, dom.Text(initial))
	fmt.Fprintf(&b, `<h4>%s</h4>`, dom.Text(name))
	if m.Email != "" && m.Email != name {
		fmt.Fprintf(&b, `<p class="email">%s</p>`, dom.Text(m.Email))
	}
	role := m.Role
	if role == "" {
		role = model.RoleMember
	}
	fmt.Fprintf(&b, `<span class="badge role-%s">%s</span>`, dom.Text(role), dom.Text(capitalize(role)))
	status := m.Status
	if status == "" {
		status = model.MemberActive
	}
	fmt.Fprintf(&b, `<span class="badge status-%s">%s</span>`, dom.Text(status), dom.Text(status))
	if joined := formatDate(m.JoinedAt); joined != "" {
		fmt.Fprintf(&b, `<p class="joined">Joined %s</p>`, joined)
	}
	return b.String()
}

// formatDate renders an RFC 3339 timestamp as a short date and passes
// anything else through unchanged.
func formatDate(s string) string {
	if s == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(dateLayout)
	}
	return dom.Text(s)
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}
