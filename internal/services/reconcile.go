package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/likenovel/likenovel-backend/internal/clients/keycloak"
	"github.com/likenovel/likenovel-backend/internal/logger"
	"github.com/likenovel/likenovel-backend/internal/repos"
	"github.com/likenovel/likenovel-backend/internal/types"
	"github.com/likenovel/likenovel-backend/internal/utils"
)

// SyncState classifies how a local user row relates to its IdP record.
type SyncState int

const (
	// StateInSync: kc_user_id resolves and the emails agree.
	StateInSync SyncState = iota
	// StateIdpMissing: local row alive but no IdP record exists anywhere.
	StateIdpMissing
	// StateLocalMissing: the IdP holds a record for this email but
	// kc_user_id does not point at it.
	StateLocalMissing
	// StateEmailCollision: kc_user_id resolves to an IdP record carrying a
	// different email.
	StateEmailCollision
	// StateWithdrawn: the local row is tombstoned. Never healed.
	StateWithdrawn
)

func (s SyncState) String() string {
	switch s {
	case StateInSync:
		return "in_sync"
	case StateIdpMissing:
		return "idp_missing"
	case StateLocalMissing:
		return "local_missing"
	case StateEmailCollision:
		return "email_collision"
	case StateWithdrawn:
		return "withdrawn"
	}
	return "unknown"
}

// ReconcileService heals drift between the user table and the IdP. After a
// successful Heal exactly one IdP record exists for the user and kc_user_id
// points at it.
type ReconcileService interface {
	Assess(ctx context.Context, user *types.User) (SyncState, *keycloak.IdpUser, error)
	Heal(ctx context.Context, user *types.User, state SyncState, found *keycloak.IdpUser, password string) (string, error)
}

type reconcileService struct {
	log   *logger.Logger
	kc    keycloak.Client
	users repos.UserRepo
}

func NewReconcileService(log *logger.Logger, kc keycloak.Client, users repos.UserRepo) ReconcileService {
	return &reconcileService{
		log:   log.With("service", "ReconcileService"),
		kc:    kc,
		users: users,
	}
}

func (rs *reconcileService) Assess(ctx context.Context, user *types.User) (SyncState, *keycloak.IdpUser, error) {
	if user.UseYn == types.YnNo {
		return StateWithdrawn, nil, nil
	}
	if user.KcUserID != "" {
		idp, err := rs.kc.GetUser(ctx, user.KcUserID)
		switch {
		case err == nil:
			if idp.Email != "" && idp.Email != user.Email {
				return StateEmailCollision, idp, nil
			}
			return StateInSync, idp, nil
		case !errors.Is(err, keycloak.ErrNotFound):
			return StateInSync, nil, err
		}
	}
	idp, err := rs.kc.FindUserByEmail(ctx, user.Email)
	if err != nil {
		if errors.Is(err, keycloak.ErrNotFound) {
			return StateIdpMissing, nil, nil
		}
		return StateInSync, nil, err
	}
	return StateLocalMissing, idp, nil
}

// Heal transitions the pair back to in_sync and returns the kc user id the
// local row now points at. password is applied to recreated or relinked IdP
// records so the caller's next token grant succeeds.
func (rs *reconcileService) Heal(ctx context.Context, user *types.User, state SyncState, found *keycloak.IdpUser, password string) (string, error) {
	switch state {
	case StateInSync:
		return user.KcUserID, nil

	case StateWithdrawn:
		return "", fmt.Errorf("withdrawn user %d cannot be reconciled", user.ID)

	case StateLocalMissing, StateEmailCollision:
		var target *keycloak.IdpUser
		if state == StateLocalMissing {
			target = found
		} else {
			// kc_user_id points at someone else's record. Relink by email,
			// creating when the email has no IdP record either.
			byEmail, err := rs.kc.FindUserByEmail(ctx, user.Email)
			if err != nil && !errors.Is(err, keycloak.ErrNotFound) {
				return "", err
			}
			if byEmail == nil {
				return rs.recreate(ctx, user, password)
			}
			target = byEmail
		}
		if password != "" {
			if err := rs.kc.SetPassword(ctx, target.ID, password); err != nil {
				if errors.Is(err, keycloak.ErrNotFound) {
					return rs.recreate(ctx, user, password)
				}
				return "", err
			}
		}
		if err := rs.users.UpdateKcUserID(ctx, nil, user.ID, target.ID); err != nil {
			return "", err
		}
		rs.log.Info("relinked user to existing idp record", "userID", user.ID, "kcUserID", target.ID, "state", state.String())
		user.KcUserID = target.ID
		return target.ID, nil

	case StateIdpMissing:
		return rs.recreate(ctx, user, password)
	}
	return "", fmt.Errorf("unhandled reconcile state %s", state)
}

func (rs *reconcileService) recreate(ctx context.Context, user *types.User, password string) (string, error) {
	username := utils.RandomName("ln")
	kcID, err := rs.kc.CreateUser(ctx, username, user.Email, password)
	if err != nil {
		return "", fmt.Errorf("recreate idp user for %d: %w", user.ID, err)
	}
	if err := rs.users.UpdateKcUserID(ctx, nil, user.ID, kcID); err != nil {
		// Orphaned IdP record otherwise.
		_ = rs.kc.DeleteUser(ctx, kcID)
		return "", err
	}
	rs.log.Info("recreated missing idp record", "userID", user.ID, "kcUserID", kcID)
	user.KcUserID = kcID
	return kcID, nil
}
