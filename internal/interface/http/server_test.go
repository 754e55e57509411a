package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pp-arena/pp-arena/internal/application/query"
	"github.com/pp-arena/pp-arena/internal/domain/shared"
	"github.com/pp-arena/pp-arena/internal/domain/tournament"
)

type stubParticipantRepo struct {
	participants []*tournament.Participant
}

func (s *stubParticipantRepo) FindByUserID(_ context.Context, userID shared.OsuUserID) (*tournament.Participant, error) {
	for _, p := range s.participants {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, shared.ErrParticipantNotFound
}

func (s *stubParticipantRepo) FindAll(context.Context) ([]*tournament.Participant, error) {
	return s.participants, nil
}

func (s *stubParticipantRepo) Save(context.Context, *tournament.Participant) error      { return nil }
func (s *stubParticipantRepo) SaveAll(context.Context, []*tournament.Participant) error { return nil }
func (s *stubParticipantRepo) DeleteAll(context.Context) error                          { return nil }
func (s *stubParticipantRepo) Count(context.Context) (int, error) {
	return len(s.participants), nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	config := DefaultConfig()
	config.Auth.AdminPasswordHash = string(hash)
	config.Auth.JWTSecret = "test-secret"

	repo := &stubParticipantRepo{
		participants: []*tournament.Participant{
			{
				UserID:       shared.OsuUserID(1),
				Nickname:     shared.Nickname("mrekk"),
				RatingStart:  shared.PP(4500),
				RatingEnd:    shared.PP(4600),
				Points:       shared.Points(500),
				Position:     shared.Position(1),
				RegisteredAt: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			},
		},
	}

	return NewServer(config, Dependencies{
		GetLeaderboard: query.NewGetLeaderboardHandler(repo, nil),
	})
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_GetLeaderboard(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool                      `json:"success"`
		Data    query.GetLeaderboardResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data.Rows, 1)
	assert.Equal(t, "mrekk", resp.Data.Rows[0].Nickname)
	assert.Equal(t, 500, resp.Data.Rows[0].Points)
}

func TestServer_AdminRequiresToken(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/close", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServer_AdminLogin(t *testing.T) {
	srv := newTestServer(t)

	body := strings.NewReader(`{"username": "admin", "password": "hunter2"}`)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/login", body))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data loginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.Token)
	assert.True(t, resp.Data.ExpiresAt.After(time.Now()))
}

func TestServer_AdminLoginWrongPassword(t *testing.T) {
	srv := newTestServer(t)

	body := strings.NewReader(`{"username": "admin", "password": "wrong"}`)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/login", body))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
