package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"ofactrack/internal/ofac/ledger"
	"ofactrack/internal/ofac/models"
	"ofactrack/internal/ofac/panel"
	"ofactrack/internal/ofac/service"
	dErrors "ofactrack/pkg/domain-errors"
)

var april = time.Date(2022, time.April, 30, 0, 0, 0, 0, time.UTC)

// fakeService serves a canned panel and ledger state.
type fakeService struct {
	panel    *panel.Panel
	state    *ledger.State
	runErr   error
	runCalls int
}

func (f *fakeService) BuildPanel(ctx context.Context, params service.PanelParams) (*panel.Panel, error) {
	return f.panel, nil
}

func (f *fakeService) Ledger(ctx context.Context) (*ledger.State, error) {
	return f.state, nil
}

func (f *fakeService) MonthlyUpdate(ctx context.Context, params service.RunParams) (*service.RunResult, error) {
	f.runCalls++
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &service.RunResult{ReportDate: april, ActivePairs: 1, PanelRows: 1}, nil
}

type HandlerSuite struct {
	suite.Suite
	svc    *fakeService
	server *httptest.Server
	token  string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.svc = &fakeService{
		panel: &panel.Panel{Rows: []models.PanelRow{
			{Country: "Cuba", Date: april, YrQtr: "2022Q2", YrMon: "2022-04", Levels: 2, Additions: 2, Change: 2},
			{Country: "Syria", Date: april, YrQtr: "2022Q2", YrMon: "2022-04", Levels: 1, Additions: 1, Change: 1},
		}},
		state: ledger.Restore([]*models.LedgerEntry{{
			Key:             models.PairKey{EntityID: 540, Country: "Cuba"},
			Name:            "MORGUL SHIPPING",
			Type:            models.TypeEntity,
			ProgramCategory: models.CategorySDN,
			ReportDate:      april,
			AddDate:         april,
			Spells:          []models.Spell{{Start: april}},
		}}),
	}

	s.token = "super-secret-admin-token"
	hash, err := bcrypt.GenerateFromPassword([]byte(s.token), bcrypt.MinCost)
	s.Require().NoError(err)

	h := New(s.svc, nil, time.Minute, zap.NewNop())
	auth := NewAdminAuth(string(hash), "", zap.NewNop())
	s.server = httptest.NewServer(NewRouter(h, auth, nil))
	s.T().Cleanup(s.server.Close)
}

func (s *HandlerSuite) get(path string) (*http.Response, []byte) {
	resp, err := http.Get(s.server.URL + path)
	s.Require().NoError(err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp, body
}

func (s *HandlerSuite) TestPanelFull() {
	resp, body := s.get("/v1/panel")
	s.Equal(http.StatusOK, resp.StatusCode)

	var got PanelResponse
	s.Require().NoError(json.Unmarshal(body, &got))
	s.Len(got.Rows, 2)
	s.Empty(got.Country)
}

func (s *HandlerSuite) TestPanelByCountry() {
	resp, body := s.get("/v1/panel?country=Cuba")
	s.Equal(http.StatusOK, resp.StatusCode)

	var got PanelResponse
	s.Require().NoError(json.Unmarshal(body, &got))
	s.Equal("Cuba", got.Country)
	s.Require().Len(got.Rows, 1)
	s.Equal(2, got.Rows[0].Levels)
	s.Equal("2022-04-30", got.Rows[0].Date)
}

func (s *HandlerSuite) TestPanelUnknownCountry() {
	resp, _ := s.get("/v1/panel?country=Atlantis")
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *HandlerSuite) TestCountries() {
	resp, body := s.get("/v1/countries")
	s.Equal(http.StatusOK, resp.StatusCode)

	var got CountriesResponse
	s.Require().NoError(json.Unmarshal(body, &got))
	s.Equal([]string{"Cuba", "Syria"}, got.Countries)
}

func (s *HandlerSuite) TestLedgerEntity() {
	resp, body := s.get("/v1/ledger/540")
	s.Equal(http.StatusOK, resp.StatusCode)

	var got LedgerEntityResponse
	s.Require().NoError(json.Unmarshal(body, &got))
	s.Equal(540, got.EntityID)
	s.Require().Len(got.Pairs, 1)
	s.Equal("Cuba", got.Pairs[0].Country)
	s.True(got.Pairs[0].Active)
	s.Equal("2022-04-30", got.Pairs[0].AddDate)
	s.Require().Len(got.Pairs[0].Spells, 1)
	s.Nil(got.Pairs[0].Spells[0].End)
}

func (s *HandlerSuite) TestLedgerEntityNotFound() {
	resp, _ := s.get("/v1/ledger/999")
	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *HandlerSuite) TestLedgerEntityBadID() {
	resp, _ := s.get("/v1/ledger/abc")
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *HandlerSuite) postRun(token string) *http.Response {
	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/v1/runs", nil)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	resp.Body.Close()
	return resp
}

func (s *HandlerSuite) TestRunRequiresToken() {
	resp := s.postRun("")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Zero(s.svc.runCalls)
}

func (s *HandlerSuite) TestRunRejectsWrongToken() {
	resp := s.postRun("wrong-token")
	s.Equal(http.StatusForbidden, resp.StatusCode)
	s.Zero(s.svc.runCalls)
}

func (s *HandlerSuite) TestRunWithAdminToken() {
	resp := s.postRun(s.token)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(1, s.svc.runCalls)
}

func (s *HandlerSuite) TestRunMapsTemporalOrderToConflict() {
	s.svc.runErr = dErrors.New(dErrors.CodeTemporalOrder, "older than ledger head")
	resp := s.postRun(s.token)
	s.Equal(http.StatusConflict, resp.StatusCode)
}

func (s *HandlerSuite) TestHealthz() {
	resp, body := s.get("/healthz")
	s.Equal(http.StatusOK, resp.StatusCode)

	var got map[string]string
	s.Require().NoError(json.Unmarshal(body, &got))
	s.Equal("ok", got["status"])
}

func (s *HandlerSuite) TestMetricsEndpoint() {
	resp, _ := s.get("/metrics")
	s.Equal(http.StatusOK, resp.StatusCode)
}

func TestAdminAuthJWT(t *testing.T) {
	auth := NewAdminAuth("", "signing-key", zap.NewNop())

	adminToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("signing-key"))
	if err != nil {
		t.Fatal(err)
	}
	if !auth.authorized(adminToken) {
		t.Error("admin JWT should be accepted")
	}

	userToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "user",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("signing-key"))
	if err != nil {
		t.Fatal(err)
	}
	if auth.authorized(userToken) {
		t.Error("non-admin JWT should be rejected")
	}

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": "admin",
	}).SignedString([]byte("other-key"))
	if err != nil {
		t.Fatal(err)
	}
	if auth.authorized(forged) {
		t.Error("JWT signed with another key should be rejected")
	}
}

func TestAdminAuthUnconfiguredRejectsAll(t *testing.T) {
	auth := NewAdminAuth("", "", zap.NewNop())
	if auth.authorized("anything") {
		t.Error("unconfigured auth must reject every token")
	}
}
