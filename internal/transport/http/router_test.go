package httptransport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"subsidyledger/internal/access"
	"subsidyledger/internal/control"
	"subsidyledger/internal/dispute"
	"subsidyledger/internal/funds"
	"subsidyledger/internal/jwttoken"
	"subsidyledger/internal/ledger"
	"subsidyledger/internal/oracle"
	"subsidyledger/internal/platform/logger"
	"subsidyledger/internal/sources"
	id "subsidyledger/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	server *httptest.Server
	tokens *jwttoken.Manager
}

func newEnv(t *testing.T) *env {
	t.Helper()

	log := logger.New()
	authz := access.NewService(access.NewInMemoryRoleStore())
	pool := funds.NewPool(authz)
	ctl := control.NewService(control.NewInMemoryStore(), authz)
	src := sources.NewService(sources.NewInMemoryStore(), authz)
	orc := oracle.NewService(oracle.NewInMemoryStore(), src, ctl, authz)
	led := ledger.NewService(ledger.NewInMemoryStore(), pool, authz, authz, ctl, ledger.WithOracle(orc))
	disp := dispute.NewService(dispute.NewInMemoryStore(), led, authz, authz)
	tokens := jwttoken.NewManager([]byte("test-secret"), "subsidyledger", time.Hour)

	router := NewRouter(Deps{
		Logger:   log,
		Tokens:   tokens,
		Pool:     pool,
		Ledger:   led,
		Disputes: disp,
		Oracle:   orc,
		Sources:  src,
		Control:  ctl,
		Access:   authz,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &env{server: server, tokens: tokens}
}

func (e *env) bearer(t *testing.T, identity id.Identity, roles ...id.Role) string {
	t.Helper()
	raw, err := e.tokens.Mint(identity, roles, time.Now())
	require.NoError(t, err)
	return "Bearer " + raw
}

func (e *env) do(t *testing.T, method, path, auth string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, buf)
	require.NoError(t, err)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, raw
}

func TestRouter_AuthBoundary(t *testing.T) {
	e := newEnv(t)

	t.Run("missing token is 401", func(t *testing.T) {
		resp, _ := e.do(t, http.MethodGet, "/funds", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token is 401", func(t *testing.T) {
		resp, _ := e.do(t, http.MethodGet, "/funds", "Bearer junk", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("healthz is public", func(t *testing.T) {
		resp, _ := e.do(t, http.MethodGet, "/healthz", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("wrong role is 403", func(t *testing.T) {
		provider := e.bearer(t, "dp-1", id.RoleDataProvider)
		resp, body := e.do(t, http.MethodPost, "/funds", provider, map[string]uint64{"amount": 100})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Contains(t, string(body), "unauthorized")
	})
}

func TestRouter_EndToEndFlow(t *testing.T) {
	e := newEnv(t)
	gov := e.bearer(t, "gov-1", id.RoleGovernment)
	operator := e.bearer(t, "op-1", id.RoleOracleOperator)
	provider := e.bearer(t, "dp-1", id.RoleDataProvider)

	resp, _ := e.do(t, http.MethodPost, "/funds", gov, map[string]uint64{"amount": 10_000})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Register a project and attach a milestone.
	resp, body := e.do(t, http.MethodPost, "/projects", gov, map[string]any{
		"producer": "farm-1", "name": "Solar Farm", "total_subsidy": 5_000,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var project struct {
		ID     uint64 `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(body, &project))
	assert.Equal(t, "pending", project.Status)

	deadline := time.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339)
	resp, body = e.do(t, http.MethodPost, fmt.Sprintf("/projects/%d/milestones", project.ID), gov, map[string]any{
		"description": "install capacity", "subsidy_amount": 2_000,
		"target_value": 100, "verification_source": "sensor-1", "deadline": deadline,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var milestone struct {
		ID uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &milestone))

	// Admit the source and feed it a verified reading.
	resp, _ = e.do(t, http.MethodPost, "/sources", operator, map[string]string{
		"key": "sensor-1", "type": "iot_device",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = e.do(t, http.MethodPost, "/oracle/data", provider, map[string]any{
		"source": "sensor-1", "value": 120,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var point struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(body, &point))

	resp, _ = e.do(t, http.MethodPost, "/oracle/data/"+point.ID+"/verify", operator, map[string]bool{"verified": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Verify the milestone from the oracle window; payment rides along.
	from := time.Now().Add(-time.Hour).Format(time.RFC3339)
	to := time.Now().Add(time.Hour).Format(time.RFC3339)
	resp, body = e.do(t, http.MethodPost, fmt.Sprintf("/milestones/%d/verify", milestone.ID), operator, map[string]any{
		"oracle_from": from, "oracle_to": to,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var verified struct {
		Status      string `json:"status"`
		Paid        bool   `json:"paid"`
		ActualValue uint64 `json:"actual_value"`
	}
	require.NoError(t, json.Unmarshal(body, &verified))
	assert.Equal(t, "verified", verified.Status)
	assert.True(t, verified.Paid)
	assert.Equal(t, uint64(120), verified.ActualValue)

	// Project completed, pool reflects the disbursement.
	resp, body = e.do(t, http.MethodGet, fmt.Sprintf("/projects/%d", project.ID), gov, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"completed"`)

	resp, body = e.do(t, http.MethodGet, "/funds", gov, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var poolStatus struct {
		Available uint64 `json:"available"`
	}
	require.NoError(t, json.Unmarshal(body, &poolStatus))
	assert.Equal(t, uint64(8_000), poolStatus.Available)
}

func TestRouter_ErrorMapping(t *testing.T) {
	e := newEnv(t)
	gov := e.bearer(t, "gov-1", id.RoleGovernment)
	operator := e.bearer(t, "op-1", id.RoleOracleOperator)
	provider := e.bearer(t, "dp-1", id.RoleDataProvider)

	t.Run("unknown milestone is 404", func(t *testing.T) {
		resp, _ := e.do(t, http.MethodPost, "/milestones/99/verify", operator, map[string]any{
			"actual_value": 10, "success": true,
		})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("untrusted source submission is 403", func(t *testing.T) {
		resp, body := e.do(t, http.MethodPost, "/oracle/data", provider, map[string]any{
			"source": "rogue", "value": 1,
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Contains(t, string(body), "untrusted_source")
	})

	t.Run("oversubscribed registration is 422", func(t *testing.T) {
		resp, body := e.do(t, http.MethodPost, "/projects", gov, map[string]any{
			"producer": "farm-1", "name": "Big Farm", "total_subsidy": 1,
		})
		_ = body
		// Empty pool: even one unit oversubscribes.
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("paused system is 503", func(t *testing.T) {
		resp, _ := e.do(t, http.MethodPost, "/admin/pause", gov, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
		defer func() {
			resp, _ := e.do(t, http.MethodPost, "/admin/unpause", gov, nil)
			require.Equal(t, http.StatusNoContent, resp.StatusCode)
		}()

		resp, _ = e.do(t, http.MethodPost, "/projects", gov, map[string]any{
			"producer": "farm-1", "name": "Solar Farm", "total_subsidy": 100,
		})
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("bad path id is 400", func(t *testing.T) {
		resp, _ := e.do(t, http.MethodGet, "/projects/zero", gov, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
