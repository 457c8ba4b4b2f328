package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc, _, _, _, _ := newTestService()
	server := httptest.NewServer(NewHTTPServer(svc, "http://localhost:3000").Handler())
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, payload
}

func signUpHTTP(t *testing.T, server *httptest.Server) string {
	t.Helper()
	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/auth/signup", "", map[string]any{
		"email":       "dm@example.com",
		"displayName": "The DM",
		"password":    "long enough password",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d, payload = %v", resp.StatusCode, payload)
	}
	token, _ := payload["token"].(string)
	if token == "" {
		t.Fatalf("signup payload = %v", payload)
	}
	return token
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["ok"] != true {
		t.Fatalf("payload = %v", payload)
	}
	if got := resp.Header.Get("X-Request-ID"); got == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	server := newTestServer(t)

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/monsters", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestSignUpSignInAndSession(t *testing.T) {
	server := newTestServer(t)
	signUpHTTP(t, server)

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/auth/signin", "", map[string]any{
		"email":    "DM@Example.com",
		"password": "long enough password",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signin status = %d, payload = %v", resp.StatusCode, payload)
	}
	token := payload["token"].(string)

	resp, payload = doJSON(t, http.MethodGet, server.URL+"/api/session", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("session status = %d", resp.StatusCode)
	}
	if payload["authenticated"] != true || payload["userName"] != "The DM" {
		t.Fatalf("session payload = %v", payload)
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	server := newTestServer(t)
	signUpHTTP(t, server)

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/auth/signup", "", map[string]any{
		"email":       "dm@example.com",
		"displayName": "Another DM",
		"password":    "long enough password",
	})
	if resp.StatusCode != http.StatusConflict || payload["code"] != "EMAIL_EXISTS" {
		t.Fatalf("status = %d, payload = %v", resp.StatusCode, payload)
	}
}

func TestCreateMonsterValidationError(t *testing.T) {
	server := newTestServer(t)
	token := signUpHTTP(t, server)

	m := validMonster()
	m.Abilities.Cha = 99
	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/monsters", token, m)
	if resp.StatusCode != http.StatusUnprocessableEntity || payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("status = %d, payload = %v", resp.StatusCode, payload)
	}
}

func TestMonsterLifecycle(t *testing.T) {
	server := newTestServer(t)
	token := signUpHTTP(t, server)

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/monsters", token, validMonster())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, payload = %v", resp.StatusCode, payload)
	}
	monsterID := payload["id"].(string)

	resp, payload = doJSON(t, http.MethodGet, server.URL+"/api/monsters/"+monsterID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	if payload["Name"] != "Goblin" || payload["id"] != monsterID {
		t.Fatalf("get payload = %v", payload)
	}

	resp, payload = doJSON(t, http.MethodDelete, server.URL+"/api/monsters/"+monsterID, token, nil)
	if resp.StatusCode != http.StatusOK || payload["success"] != true {
		t.Fatalf("delete status = %d, payload = %v", resp.StatusCode, payload)
	}

	resp, payload = doJSON(t, http.MethodGet, server.URL+"/api/monsters/"+monsterID, token, nil)
	if resp.StatusCode != http.StatusNotFound || payload["code"] != "NOT_FOUND" {
		t.Fatalf("get after delete status = %d, payload = %v", resp.StatusCode, payload)
	}
}

func TestEditFeatureScopeThisOverHTTP(t *testing.T) {
	server := newTestServer(t)
	token := signUpHTTP(t, server)

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/features", token, map[string]any{
		"Name": "Bite", "Content": "Melee attack.", "Category": "Actions",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create feature status = %d, payload = %v", resp.StatusCode, payload)
	}
	featureID := payload["id"].(string)

	var monsterIDs []string
	for i := 0; i < 2; i++ {
		m := validMonster()
		m.Name = fmt.Sprintf("Goblin %d", i+1)
		m.FeatureIds = []string{featureID}
		resp, payload = doJSON(t, http.MethodPost, server.URL+"/api/monsters", token, m)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create monster status = %d", resp.StatusCode)
		}
		monsterIDs = append(monsterIDs, payload["id"].(string))
	}

	resp, payload = doJSON(t, http.MethodPut, server.URL+"/api/features/"+featureID, token, map[string]any{
		"Name": "Savage Bite", "Content": "Meaner melee attack.", "Category": "Actions",
		"editScope": "this", "monsterId": monsterIDs[0],
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit status = %d, payload = %v", resp.StatusCode, payload)
	}
	forkID, _ := payload["featureId"].(string)
	if forkID == "" || forkID == featureID {
		t.Fatalf("scope this should mint a fork, payload = %v", payload)
	}

	// The untouched monster still references the original feature.
	resp, payload = doJSON(t, http.MethodGet, server.URL+"/api/features/"+featureID+"/usage", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("usage status = %d", resp.StatusCode)
	}
	if payload["count"].(float64) != 1 {
		t.Fatalf("usage payload = %v", payload)
	}
}

func TestEditFeatureScopeThisRequiresMonsterID(t *testing.T) {
	server := newTestServer(t)
	token := signUpHTTP(t, server)

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/features", token, map[string]any{
		"Name": "Bite", "Content": "Melee attack.", "Category": "Actions",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create feature status = %d", resp.StatusCode)
	}
	featureID := payload["id"].(string)

	resp, payload = doJSON(t, http.MethodPut, server.URL+"/api/features/"+featureID, token, map[string]any{
		"Name": "Bite", "Content": "Melee attack.", "Category": "Actions",
		"editScope": "this",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity || payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("status = %d, payload = %v", resp.StatusCode, payload)
	}
}

func TestCombatSaveOverHTTP(t *testing.T) {
	server := newTestServer(t)
	token := signUpHTTP(t, server)

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/combat/save", token, map[string]any{
		"sessionId": "active", "monsters": []any{},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("missing version status = %d, payload = %v", resp.StatusCode, payload)
	}

	resp, payload = doJSON(t, http.MethodPost, server.URL+"/api/combat/save", token, map[string]any{
		"sessionId": "active", "monsters": []any{}, "version": 0,
	})
	if resp.StatusCode != http.StatusOK || payload["version"].(float64) != 1 {
		t.Fatalf("first save status = %d, payload = %v", resp.StatusCode, payload)
	}

	for _, version := range []int{1, 2} {
		resp, payload = doJSON(t, http.MethodPost, server.URL+"/api/combat/save", token, map[string]any{
			"sessionId": "active", "monsters": []any{}, "version": version,
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("save version %d status = %d, payload = %v", version, resp.StatusCode, payload)
		}
	}

	resp, payload = doJSON(t, http.MethodPost, server.URL+"/api/combat/save", token, map[string]any{
		"sessionId": "active", "monsters": []any{}, "version": 1,
	})
	if resp.StatusCode != http.StatusConflict || payload["code"] != "CONFLICT" {
		t.Fatalf("conflict status = %d, payload = %v", resp.StatusCode, payload)
	}
}

func TestClampSearchPage(t *testing.T) {
	cases := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{20, 0, 20, 0},
		{1000000, 0, maxSearchLimit, 0},
		{0, 0, defaultSearchLimit, 0},
		{-5, -10, defaultSearchLimit, 0},
		{maxSearchLimit, 40, maxSearchLimit, 40},
	}
	for _, tc := range cases {
		gotLimit, gotOffset := clampSearchPage(tc.limit, tc.offset)
		if gotLimit != tc.wantLimit || gotOffset != tc.wantOffset {
			t.Errorf("clampSearchPage(%d, %d) = (%d, %d), want (%d, %d)",
				tc.limit, tc.offset, gotLimit, gotOffset, tc.wantLimit, tc.wantOffset)
		}
	}
}

func TestSearchAcceptsOversizedLimit(t *testing.T) {
	server := newTestServer(t)
	token := signUpHTTP(t, server)

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/search?q=goblin&limit=1000000", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, payload = %v", resp.StatusCode, payload)
	}
}

func TestFeatureCategoryWireValues(t *testing.T) {
	server := newTestServer(t)
	token := signUpHTTP(t, server)

	// The stored category values are the plural stat-block section names.
	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/features", token, map[string]any{
		"Name": "Frightful Presence", "Content": "Nearby creatures are frightened.", "Category": "LegendaryActions",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, payload = %v", resp.StatusCode, payload)
	}
	featureID := payload["id"].(string)

	resp, payload = doJSON(t, http.MethodGet, server.URL+"/api/features/"+featureID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	f := payload["feature"].(map[string]any)
	if f["Category"] != "LegendaryActions" {
		t.Fatalf("feature payload = %v", payload)
	}

	// Singular display labels are not valid stored values.
	resp, payload = doJSON(t, http.MethodPost, server.URL+"/api/features", token, map[string]any{
		"Name": "Bite", "Content": "Melee attack.", "Category": "Action",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity || payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("singular category status = %d, payload = %v", resp.StatusCode, payload)
	}
}

func TestRefreshAndLogoutOverHTTP(t *testing.T) {
	server := newTestServer(t)

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/auth/signup", "", map[string]any{
		"email":       "dm@example.com",
		"displayName": "The DM",
		"password":    "long enough password",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d", resp.StatusCode)
	}
	token := payload["token"].(string)
	refreshToken := payload["refreshToken"].(string)

	resp, payload = doJSON(t, http.MethodPost, server.URL+"/api/session/refresh", "", map[string]any{
		"refreshToken": refreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, payload = %v", resp.StatusCode, payload)
	}
	newRefresh := payload["refreshToken"].(string)
	if newRefresh == refreshToken {
		t.Fatal("refresh token not rotated")
	}

	resp, _ = doJSON(t, http.MethodPost, server.URL+"/api/session/logout", token, map[string]any{
		"refreshToken": newRefresh,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}

	resp, payload = doJSON(t, http.MethodGet, server.URL+"/api/monsters", token, nil)
	if resp.StatusCode != http.StatusUnauthorized || payload["code"] != "UNAUTHORIZED" {
		t.Fatalf("status after logout = %d, payload = %v", resp.StatusCode, payload)
	}
}
