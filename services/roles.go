package services

import (
	"context"
)

// RoleAssignment is one player's computed tier role.
type RoleAssignment struct {
	PlayerID string  `json:"player_id"`
	Role     string  `json:"role"`
	Rating   float64 `json:"rating"`
}

// RoleSyncResult reports one player's sync outcome. A failed player
// never aborts the batch.
type RoleSyncResult struct {
	PlayerID string `json:"player_id"`
	Role     string `json:"role"`
	Err      error  `json:"-"`
}

// RoleSyncer pushes tier role assignments out to the chat gateway,
// which owns actual role membership. Implementations must replace any
// prior tier role with the assigned one.
type RoleSyncer interface {
	SyncRoles(ctx context.Context, assignments []RoleAssignment) []RoleSyncResult
}

// NopRoleSyncer is used when no gateway sync endpoint is configured.
type NopRoleSyncer struct{}

func (NopRoleSyncer) SyncRoles(_ context.Context, assignments []RoleAssignment) []RoleSyncResult {
	results := make([]RoleSyncResult, 0, len(assignments))
	for _, a := range assignments {
		results = append(results, RoleSyncResult{PlayerID: a.PlayerID, Role: a.Role})
	}
	return results
}
