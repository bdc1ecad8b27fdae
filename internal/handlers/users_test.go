package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/circlesocial/backend/internal/models"
)

func TestToggleFriendTwice(t *testing.T) {
	ts := newTestServer(t)
	ann, token := ts.session("ann")
	bo, _ := ts.session("bo")

	rec := ts.doJSON(http.MethodPatch, "/api/v1/user/"+ann.ID+"/friendId", token, map[string]string{"friendId": bo.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp toggleFriendResponse
	decode(t, rec, &resp)
	if !resp.User.HasFriend(bo.ID) || !resp.Friend.HasFriend(ann.ID) {
		t.Fatalf("expected mirrored edge got %v / %v", resp.User.Friends, resp.Friend.Friends)
	}

	rec = ts.do(http.MethodGet, "/api/v1/user/"+ann.ID+"/friends", token, nil, "")
	var friends []models.User
	decode(t, rec, &friends)
	if len(friends) != 1 || friends[0].ID != bo.ID {
		t.Fatalf("expected bo as only friend got %+v", friends)
	}

	rec = ts.do(http.MethodPatch, "/api/v1/user/"+ann.ID+"/"+bo.ID, token, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &resp)
	if len(resp.User.Friends) != 0 || len(resp.Friend.Friends) != 0 {
		t.Fatalf("expected edge removed got %v / %v", resp.User.Friends, resp.Friend.Friends)
	}
}

func TestToggleFriendFailures(t *testing.T) {
	ts := newTestServer(t)
	ann, token := ts.session("ann")
	bo, _ := ts.session("bo")

	cases := []struct {
		name   string
		path   string
		status int
	}{
		{name: "self", path: "/api/v1/user/" + ann.ID + "/" + ann.ID, status: http.StatusBadRequest},
		{name: "unknown friend", path: "/api/v1/user/" + ann.ID + "/ghost", status: http.StatusNotFound},
		{name: "acting for someone else", path: "/api/v1/user/" + bo.ID + "/" + ann.ID, status: http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expectMessage(t, ts.do(http.MethodPatch, tc.path, token, nil, ""), tc.status)
		})
	}

	rec := ts.doJSON(http.MethodPatch, "/api/v1/user/"+ann.ID+"/friendId", token, map[string]string{})
	expectMessage(t, rec, http.StatusBadRequest)

	// The caller check runs before the body is read.
	rec = ts.do(http.MethodPatch, "/api/v1/user/"+bo.ID+"/friendId", token, strings.NewReader("{"), "application/json")
	expectMessage(t, rec, http.StatusForbidden)
}

func TestUserDirectoryAndProfile(t *testing.T) {
	ts := newTestServer(t)
	ann, annToken := ts.session("ann")
	_, boToken := ts.session("bo")

	rec := ts.do(http.MethodGet, "/api/v1/user", "", nil, "")
	var all []models.User
	decode(t, rec, &all)
	if len(all) != 2 {
		t.Fatalf("expected 2 users got %d", len(all))
	}

	rec = ts.do(http.MethodGet, "/api/v1/user/"+ann.ID, boToken, nil, "")
	var viewed models.User
	decode(t, rec, &viewed)
	if viewed.ViewedProfile != 1 {
		t.Fatalf("expected one profile view got %d", viewed.ViewedProfile)
	}

	expectMessage(t, ts.do(http.MethodGet, "/api/v1/user/ghost", annToken, nil, ""), http.StatusNotFound)

	rec = ts.doJSON(http.MethodPatch, "/api/v1/user/"+ann.ID, annToken, map[string]string{"location": "Lisbon"})
	var updated models.User
	decode(t, rec, &updated)
	if updated.Location != "Lisbon" {
		t.Fatalf("expected updated location got %+v", updated)
	}

	expectMessage(t, ts.doJSON(http.MethodPatch, "/api/v1/user/"+ann.ID, boToken, map[string]string{"location": "Oslo"}), http.StatusForbidden)
	expectMessage(t, ts.doJSON(http.MethodPatch, "/api/v1/user/"+ann.ID, annToken, map[string]string{}), http.StatusBadRequest)
}
