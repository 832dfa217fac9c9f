// workers/role_sync_worker.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"elo-ladder-system/services"
)

// GatewayRoleSyncer pushes tier role assignments to the chat gateway,
// which owns the actual role membership. One request per batch; the
// gateway answers with per-player results so a single failed member
// never aborts the rest.
type GatewayRoleSyncer struct {
	baseURL      string // e.g. "http://localhost:8500"
	endpointPath string // e.g. "/api/v1/internal/roles/sync"
	serviceToken string
	httpClient   *http.Client
}

func NewGatewayRoleSyncer(gatewayBaseURL, endpointPath, serviceToken string) *GatewayRoleSyncer {
	return &GatewayRoleSyncer{
		baseURL:      gatewayBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type roleSyncRequest struct {
	Assignments []services.RoleAssignment `json:"assignments"`
	// TierRoles lists every tier role name so the gateway can strip
	// stale ones before assigning.
	TierRoles []string `json:"tier_roles"`
}

type roleSyncResponse struct {
	Results []struct {
		PlayerID string `json:"player_id"`
		Role     string `json:"role"`
		Error    string `json:"error,omitempty"`
	} `json:"results"`
}

// SyncRoles implements services.RoleSyncer.
func (w *GatewayRoleSyncer) SyncRoles(ctx context.Context, assignments []services.RoleAssignment) []services.RoleSyncResult {
	results := make([]services.RoleSyncResult, 0, len(assignments))

	endpoint, err := w.endpoint()
	if err != nil {
		return failAll(assignments, err)
	}

	roles := map[string]bool{}
	var tierRoles []string
	for _, a := range assignments {
		if !roles[a.Role] {
			roles[a.Role] = true
			tierRoles = append(tierRoles, a.Role)
		}
	}

	body, err := json.Marshal(roleSyncRequest{Assignments: assignments, TierRoles: tierRoles})
	if err != nil {
		return failAll(assignments, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return failAll(assignments, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.serviceToken)

	log.Printf("[ROLE_SYNC] Pushing %d role assignments to gateway", len(assignments))
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return failAll(assignments, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return failAll(assignments, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(data)))
	}

	var parsed roleSyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return failAll(assignments, fmt.Errorf("decoding gateway response: %w", err))
	}

	byPlayer := make(map[string]string, len(parsed.Results))
	reported := make(map[string]bool, len(parsed.Results))
	for _, r := range parsed.Results {
		reported[r.PlayerID] = true
		if r.Error != "" {
			byPlayer[r.PlayerID] = r.Error
		}
	}

	for _, a := range assignments {
		result := services.RoleSyncResult{PlayerID: a.PlayerID, Role: a.Role}
		if msg, failed := byPlayer[a.PlayerID]; failed {
			result.Err = fmt.Errorf("gateway: %s", msg)
		} else if !reported[a.PlayerID] {
			result.Err = fmt.Errorf("gateway omitted player from sync response")
		}
		results = append(results, result)
	}
	return results
}

// endpoint joins base URL and path, tolerating stray slashes.
func (w *GatewayRoleSyncer) endpoint() (string, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid gateway base URL %q: %w", w.baseURL, err)
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + "/" + strings.TrimPrefix(w.endpointPath, "/")
	return base.String(), nil
}

func failAll(assignments []services.RoleAssignment, err error) []services.RoleSyncResult {
	log.Printf("[ROLE_SYNC] Batch failed: %v", err)
	results := make([]services.RoleSyncResult, 0, len(assignments))
	for _, a := range assignments {
		results = append(results, services.RoleSyncResult{PlayerID: a.PlayerID, Role: a.Role, Err: err})
	}
	return results
}
