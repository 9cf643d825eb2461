package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/humanistchoir/members/apps/web/echo"
	"github.com/humanistchoir/members/core/event"
	"github.com/humanistchoir/members/core/page"
	"github.com/humanistchoir/members/core/user"
	"github.com/humanistchoir/members/tests"
)

type httpErr struct {
	Error string `json:"error"`
}

func TestAdminAPIPermissions(t *testing.T) {
	a := setup(t)

	tests := []struct {
		name     string
		as       []user.User
		wantCode int
	}{
		{name: "anonymous", wantCode: http.StatusUnauthorized},
		{name: "member", as: []user.User{a.member}, wantCode: http.StatusForbidden},
		{name: "admin", as: []user.User{a.admin}, wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.sendJSON(t, http.MethodGet, "/admin/api/users", nil, tt.as...)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode != http.StatusOK {
				var he httpErr
				decode(t, rec, &he)
				assert.NotEmpty(t, he.Error)
			}
		})
	}
}

func TestAdminPages(t *testing.T) {
	a := setup(t)

	rec := a.sendJSON(t, http.MethodPost, "/admin/api/pages", page.NewFlatPage{URL: "about", Title: "About"}, a.admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var p page.FlatPage
	decode(t, rec, &p)
	assert.Equal(t, "/about/", p.URL)

	rec = a.sendJSON(t, http.MethodPost, "/admin/api/pages", page.NewFlatPage{URL: "/about/", Title: "Again"}, a.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var fields map[string]string
	decode(t, rec, &fields)
	assert.Contains(t, fields, "url")

	content := "Hello"
	rec = a.sendJSON(t, http.MethodPut, fmt.Sprintf("/admin/api/pages/%d", p.ID),
		page.UpdateFlatPage{URL: "/about/", Title: "About us", Content: &content}, a.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.get(t, "/about/")
	assert.Contains(t, rec.Body.String(), "About us")

	rec = a.sendJSON(t, http.MethodDelete, fmt.Sprintf("/admin/api/pages?id=%d", p.ID), nil, a.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var del DeletedResponse
	decode(t, rec, &del)
	assert.Equal(t, 1, del.Deleted)

	rec = a.sendJSON(t, http.MethodGet, fmt.Sprintf("/admin/api/pages/%d", p.ID), nil, a.admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminEvents(t *testing.T) {
	a := setup(t)

	rec := a.sendJSON(t, http.MethodPost, "/admin/api/event-types", event.NewEventType{Label: "Rehearsal"}, a.admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var et event.EventType
	decode(t, rec, &et)

	rec = a.sendJSON(t, http.MethodPost, "/admin/api/events", event.NewEvent{
		Title:       "Tuesday rehearsals",
		EventTypeID: et.ID,
		Recurring: event.RecurringForm{
			StartTime: "2025-09-02T19:00",
			EndTime:   "21:00",
			Days:      []int{1},
			Count:     3,
			Location:  "Conway Hall",
		},
	}, a.admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var detail EventDetail
	decode(t, rec, &detail)
	assert.True(t, detail.RecurringCollapsed)

	rec = a.sendJSON(t, http.MethodGet, fmt.Sprintf("/admin/api/occurrences?event=%d", detail.ID), nil, a.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var occs []event.Occurrence
	decode(t, rec, &occs)
	assert.Len(t, occs, 3)

	rec = a.sendJSON(t, http.MethodPost, "/admin/api/events", event.NewEvent{Title: "No type"}, a.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.sendJSON(t, http.MethodDelete, fmt.Sprintf("/admin/api/events/%d", detail.ID), nil, a.admin)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.sendJSON(t, http.MethodGet, fmt.Sprintf("/admin/api/events/%d", detail.ID), nil, a.admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminExportAttendance(t *testing.T) {
	a := setup(t)
	e := testutil.CreateEvent(t, a.evtRepo, "Tuesday rehearsals", "Rehearsal")

	rec := a.sendJSON(t, http.MethodPost, fmt.Sprintf("/admin/api/events/%d/export-attendance", e.ID), nil, a.admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp ExportResponse
	decode(t, rec, &resp)
	assert.Equal(t, "console://Tuesday_rehearsals", resp.URL)
	assert.Contains(t, a.sheets.String(), "Ann Alto")
}

func TestAdminInvitations(t *testing.T) {
	a := setup(t)

	rec := a.sendJSON(t, http.MethodPost, "/admin/api/invitations", map[string]string{"email": "Soprano@Test.test"}, a.admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item InvitationItem
	decode(t, rec, &item)
	assert.Equal(t, "soprano@test.test", item.Email)
	assert.Equal(t, "pending", item.Status)

	rec = a.sendJSON(t, http.MethodPost, "/admin/api/invitations", map[string]string{"email": "ann@test.test"}, a.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.sendJSON(t, http.MethodPost, "/admin/api/invitations/resend", IDsRequest{IDs: []int64{item.ID}}, a.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var ok SuccessResponse
	decode(t, rec, &ok)
	assert.Equal(t, "1 invitation have been resent.", ok.Success)

	rec = a.sendJSON(t, http.MethodGet, "/admin/api/invitations", nil, a.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []InvitationItem
	decode(t, rec, &items)
	assert.Len(t, items, 1)
}

func TestAdminUsers(t *testing.T) {
	a := setup(t)

	rec := a.sendJSON(t, http.MethodGet, "/admin/api/users?ordering=-first_name", nil, a.admin)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []user.User
	decode(t, rec, &users)
	if assert.Len(t, users, 2) {
		assert.Equal(t, "Clara", users[0].FirstName)
		assert.Equal(t, "Ann", users[1].FirstName)
	}

	// an admin cannot hand out a role above their own
	rec = a.sendJSON(t, http.MethodPut, fmt.Sprintf("/admin/api/users/%d", a.member.ID),
		map[string]interface{}{"roles": []string{user.RoleAdminOwner}}, a.admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.sendJSON(t, http.MethodDelete, fmt.Sprintf("/admin/api/users?id=%d", a.admin.ID), nil, a.admin)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.sendJSON(t, http.MethodDelete, fmt.Sprintf("/admin/api/users?id=%d", a.member.ID), nil, a.admin)
	assert.Equal(t, http.StatusOK, rec.Code)

	// the deleted member's session no longer works
	rec = a.get(t, "/songs/", a.member)
	assert.Equal(t, http.StatusFound, rec.Code)
}
