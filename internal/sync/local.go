package sync

import (
	"context"
	"fmt"

	pqerrors "github.com/julianstephens/progressquest/internal/errors"
	"github.com/julianstephens/progressquest/internal/logger"
	"github.com/julianstephens/progressquest/internal/models"
)

func (e *Engine) currentUser() (string, error) {
	username := e.vault.GetUsername()
	if username == "" {
		return "", fmt.Errorf("%w: no user is signed in on this device", pqerrors.ErrUnauthorized)
	}
	return username, nil
}

// LocalGoals returns the signed-in user's goals from the local store.
func (e *Engine) LocalGoals() (models.GoalSet, error) {
	username, err := e.currentUser()
	if err != nil {
		return models.GoalSet{}, err
	}
	return e.store.GetGoals(username)
}

// SaveItemLocally upserts goal into the t partition (by id, else by name) and persists the
// whole set before any network attempt. A background sync follows when online.
func (e *Engine) SaveItemLocally(ctx context.Context, goal models.Goal, t models.GoalType) (models.Goal, error) {
	return e.ReplaceItemLocally(ctx, goal, goal, t)
}

// ReplaceItemLocally writes goal in place of the goal matching ref, or appends it when nothing
// matches, in a single local write. A renamed goal without a server id is matched by its old
// name this way.
func (e *Engine) ReplaceItemLocally(ctx context.Context, ref, goal models.Goal, t models.GoalType) (models.Goal, error) {
	username, err := e.currentUser()
	if err != nil {
		return models.Goal{}, err
	}

	goal = goal.Clone()
	goal.Type = t
	goal.Normalize()
	if err := goal.Validate(); err != nil {
		return models.Goal{}, fmt.Errorf("%w: %v", pqerrors.ErrValidation, err)
	}

	e.saveMu.Lock()
	set, err := e.store.GetGoals(username)
	if err == nil {
		goals := set.Of(t)
		replaced := false
		for i, existing := range goals {
			if ref.SameAs(existing) {
				if goal.ID == nil {
					goal.ID = existing.ID
				}
				goals[i] = goal
				replaced = true
				break
			}
		}
		if !replaced {
			goals = append(goals, goal)
		}
		set = set.With(t, goals)
		err = e.store.SaveGoals(set.Skills, set.Financial, username)
	}
	if err == nil {
		e.localGen++
	}
	e.saveMu.Unlock()
	if err != nil {
		return models.Goal{}, fmt.Errorf("failed to save goal %q: %w", goal.Name, err)
	}

	logger.Debug("Goal saved locally", "name", goal.Name, "type", t, "user", username)
	e.afterLocalWrite()
	return goal, nil
}

// DeleteItemLocally removes the goal matching ref (by id, else by name) from the t partition.
// Server-known goals are remembered for remote deletion on the next sync.
func (e *Engine) DeleteItemLocally(ctx context.Context, ref models.Goal, t models.GoalType) (bool, error) {
	username, err := e.currentUser()
	if err != nil {
		return false, err
	}

	e.saveMu.Lock()
	set, err := e.store.GetGoals(username)
	if err != nil {
		e.saveMu.Unlock()
		return false, err
	}
	goals := set.Of(t)
	var removed *models.Goal
	kept := goals[:0]
	for _, g := range goals {
		if removed == nil && ref.SameAs(g) {
			g := g
			removed = &g
			continue
		}
		kept = append(kept, g)
	}
	if removed == nil {
		e.saveMu.Unlock()
		return false, nil
	}
	set = set.With(t, kept)
	err = e.store.SaveGoals(set.Skills, set.Financial, username)
	if err == nil && removed.HasID() {
		err = e.store.AddPendingDelete(username, *removed.ID)
	}
	e.localGen++
	e.saveMu.Unlock()
	if err != nil {
		return false, fmt.Errorf("failed to delete goal %q: %w", removed.Name, err)
	}

	logger.Debug("Goal deleted locally", "name", removed.Name, "type", t, "user", username)
	e.afterLocalWrite()
	return true, nil
}

func (e *Engine) afterLocalWrite() {
	e.Schedule(e.backgroundDelay)
}
