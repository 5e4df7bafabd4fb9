package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/keyhaven/vault-sync-backend/internal/config"
	"github.com/keyhaven/vault-sync-backend/internal/repository"
	"github.com/keyhaven/vault-sync-backend/internal/service"
	"github.com/keyhaven/vault-sync-backend/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testHandlers(t *testing.T) (*repository.Repositories, *Handlers) {
	t.Helper()
	repos := repository.NewRepositories()
	services := service.NewServices(&service.ServiceDeps{
		Config: &config.Config{JWTSecret: "test-secret", JWTExpiry: 1, InvitationsAllowed: true},
		Repos:  repos,
	})
	return repos, NewHandlers(services)
}

func TestHandleServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", service.ErrNotFound, http.StatusNotFound},
		{"not member", service.ErrNotMember, http.StatusNotFound},
		{"unauthorized", service.ErrUnauthorized, http.StatusForbidden},
		{"import role", service.ErrImportRole, http.StatusForbidden},
		{"last owner", service.ErrLastOwner, http.StatusConflict},
		{"already member", service.ErrAlreadyMember, http.StatusConflict},
		{"invalid role", service.ErrInvalidRole, http.StatusBadRequest},
		{"invalid key", service.ErrInvalidKey, http.StatusBadRequest},
		{"org mismatch", service.ErrOrgMismatch, http.StatusBadRequest},
		{"not implemented", service.ErrNotImplemented, http.StatusBadRequest},
		{"wrapped sentinel", fmt.Errorf("user owner@x: %w", service.ErrLastOwner), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			handleServiceError(c, tt.err, "fallback")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("body: %v", err)
			}
			if body["error"] != tt.err.Error() {
				t.Errorf("error message = %q, want %q", body["error"], tt.err.Error())
			}
		})
	}

	// An unrecognized error must hide its message behind the fallback.
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	handleServiceError(c, errors.New("pq: connection reset"), "Something went wrong")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["error"] != "Something went wrong" {
		t.Errorf("error message = %q, internals leaked", body["error"])
	}
}

func TestMembershipListEnvelope(t *testing.T) {
	repos, h := testHandlers(t)
	ctx := context.Background()

	user := &repository.User{Email: "owner@example.com", Name: "Owner"}
	if err := repos.UserRepo.Create(ctx, user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	org := &repository.Organization{Name: "Acme"}
	if err := repos.OrgRepo.Create(ctx, org); err != nil {
		t.Fatalf("seed org: %v", err)
	}
	membership := &repository.Membership{
		UserID:         user.ID,
		OrganizationID: org.ID,
		Role:           types.RoleOwner,
		Status:         types.StatusConfirmed,
		AccessAll:      true,
	}
	if err := repos.MembershipRepo.Create(ctx, membership); err != nil {
		t.Fatalf("seed membership: %v", err)
	}

	r := gin.New()
	r.GET("/organizations/:orgId/users", h.Membership.List)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/organizations/"+org.ID+"/users", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data []struct {
			Id     string `json:"Id"`
			Email  string `json:"Email"`
			Type   int    `json:"Type"`
			Status int    `json:"Status"`
		} `json:"Data"`
		Object            string           `json:"Object"`
		ContinuationToken *json.RawMessage `json:"ContinuationToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Object != "list" {
		t.Errorf("Object = %q, want list", envelope.Object)
	}
	if !strings.Contains(rec.Body.String(), `"ContinuationToken":null`) {
		t.Errorf("envelope missing null ContinuationToken: %s", rec.Body.String())
	}
	if len(envelope.Data) != 1 {
		t.Fatalf("Data = %d entries, want 1", len(envelope.Data))
	}
	got := envelope.Data[0]
	if got.Id != membership.ID || got.Email != "owner@example.com" {
		t.Errorf("member = %+v", got)
	}
	// Owner serializes as wire code 0, Confirmed as 2.
	if got.Type != 0 || got.Status != 2 {
		t.Errorf("Type/Status = %d/%d, want 0/2", got.Type, got.Status)
	}
}

func TestReinviteEndpoint(t *testing.T) {
	_, h := testHandlers(t)

	r := gin.New()
	r.POST("/organizations/:orgId/users/:orgUserId/reinvite", h.Membership.Reinvite)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/organizations/any/users/any/reinvite", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["error"] != service.ErrNotImplemented.Error() {
		t.Errorf("error = %q", body["error"])
	}
}
