package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/VALX-GALAXY/SportsInn-sub001/models"
	"github.com/VALX-GALAXY/SportsInn-sub001/services"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Tournament{}, &models.TournamentApplication{}))

	hub := services.NewLiveHub()
	svc := services.NewTournamentService(db, nil, nil, hub, false)

	app := fiber.New()
	SetupTournamentRoutes(app, svc, hub)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

var academyHeaders = map[string]string{
	"X-User-ID":    "academy-1",
	"X-User-Name":  "Elite Academy",
	"X-User-Roles": "academy",
}

func playerHeaders(id, name string) map[string]string {
	return map[string]string{
		"X-User-ID":    id,
		"X-User-Name":  name,
		"X-User-Roles": "player",
	}
}

func TestCreateTournamentAuth(t *testing.T) {
	app := newTestApp(t)

	body := fiber.Map{"title": "Cup"}

	// No gateway user context at all.
	resp := doJSON(t, app, http.MethodPost, "/tournaments", body, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// A player cannot create tournaments.
	resp = doJSON(t, app, http.MethodPost, "/tournaments", body, playerHeaders("player-1", "P One"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/tournaments", body, academyHeaders)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Tournament
	decodeBody(t, resp, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "academy-1", created.CreatedBy)
}

func TestCreateTournamentRejectsBadDeadline(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/tournaments", fiber.Map{
		"title":    "Cup",
		"deadline": "next tuesday",
	}, academyHeaders)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTournamentFlowOverHTTP(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/tournaments", fiber.Map{
		"title":     "Valaxia Open",
		"entry_fee": 15,
		"location":  "Karachi",
		"vacancies": 16,
	}, academyHeaders)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Tournament
	decodeBody(t, resp, &created)

	// Public listing shows it.
	resp = doJSON(t, app, http.MethodGet, "/tournaments?page=1&limit=10", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page models.TournamentPage
	decodeBody(t, resp, &page)
	require.Len(t, page.Data, 1)
	assert.Equal(t, created.ID, page.Data[0].ID)
	assert.False(t, page.HasMore)

	// Player applies.
	resp = doJSON(t, app, http.MethodPost, "/tournaments/"+created.ID+"/apply", nil, playerHeaders("player-1", "P One"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var applied models.Tournament
	decodeBody(t, resp, &applied)
	require.Len(t, applied.Applicants, 1)
	assert.Equal(t, models.ApplicationStatusApplied, applied.Applicants[0].Status)

	// Second apply conflicts.
	resp = doJSON(t, app, http.MethodPost, "/tournaments/"+created.ID+"/apply", nil, playerHeaders("player-1", "P One"))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Creator approves.
	resp = doJSON(t, app, http.MethodPut, "/tournaments/"+created.ID+"/applicants/player-1/approve", nil, academyHeaders)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var decided models.Tournament
	decodeBody(t, resp, &decided)
	require.Len(t, decided.Applicants, 1)
	assert.Equal(t, models.ApplicationStatusSelected, decided.Applicants[0].Status)

	// Application history reflects the decision.
	resp = doJSON(t, app, http.MethodGet, "/tournaments/applications/player-1", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []models.UserApplication
	decodeBody(t, resp, &history)
	require.Len(t, history, 1)
	assert.Equal(t, models.ApplicationStatusSelected, history[0].Application.Status)
}

func TestDecideRequiresCreatorOrAdmin(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/tournaments", fiber.Map{"title": "Cup"}, academyHeaders)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Tournament
	decodeBody(t, resp, &created)

	resp = doJSON(t, app, http.MethodPost, "/tournaments/"+created.ID+"/apply", nil, playerHeaders("player-1", "P One"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// Another player cannot reject.
	resp = doJSON(t, app, http.MethodPut, "/tournaments/"+created.ID+"/applicants/player-1/reject", nil, playerHeaders("player-2", "P Two"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// An admin can.
	resp = doJSON(t, app, http.MethodPut, "/tournaments/"+created.ID+"/applicants/player-1/reject", nil, map[string]string{
		"X-User-ID":    "admin-1",
		"X-User-Roles": "admin",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetTournamentNotFound(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/tournaments/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteTournament(t *testing.T) {
	app := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/tournaments", fiber.Map{"title": "Cup"}, academyHeaders)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.Tournament
	decodeBody(t, resp, &created)

	// A different academy cannot delete someone else's tournament.
	resp = doJSON(t, app, http.MethodDelete, "/tournaments/"+created.ID, nil, map[string]string{
		"X-User-ID":    "academy-2",
		"X-User-Roles": "academy",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, http.MethodDelete, "/tournaments/"+created.ID, nil, academyHeaders)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/tournaments/"+created.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
