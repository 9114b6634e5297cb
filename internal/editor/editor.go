// Package editor turns user edits into goal mutations and hands them to the sync engine.
package editor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	pqerrors "github.com/julianstephens/progressquest/internal/errors"
	"github.com/julianstephens/progressquest/internal/models"
	"github.com/julianstephens/progressquest/internal/validation"
)

// Saver persists goals locally first. *sync.Engine satisfies it.
type Saver interface {
	LocalGoals() (models.GoalSet, error)
	SaveItemLocally(ctx context.Context, goal models.Goal, t models.GoalType) (models.Goal, error)
	ReplaceItemLocally(ctx context.Context, ref, goal models.Goal, t models.GoalType) (models.Goal, error)
	DeleteItemLocally(ctx context.Context, ref models.Goal, t models.GoalType) (bool, error)
}

// Outcome is what the UI needs to celebrate an edit.
type Outcome struct {
	Goal models.Goal
	models.Progress
	Created bool
}

// Changes holds the fields an update touches. Nil fields are left alone; an empty Deadline
// clears it.
type Changes struct {
	Name     *string
	Current  *float64
	Target   *float64
	Deadline *string
}

type Editor struct {
	saver Saver
	now   func() time.Time
}

func New(saver Saver) *Editor {
	return &Editor{saver: saver, now: time.Now}
}

// Add creates a goal. Names are unique per type, ignoring case.
func (e *Editor) Add(ctx context.Context, t models.GoalType, in validation.GoalInput) (Outcome, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.ValidateGoalInput(in); err != nil {
		return Outcome{}, err
	}

	set, err := e.saver.LocalGoals()
	if err != nil {
		return Outcome{}, err
	}
	if _, exists := set.Find(t, in.Name); exists {
		return Outcome{}, fmt.Errorf("%w: a %s goal named %q already exists", pqerrors.ErrValidation, t, in.Name)
	}

	g := models.Goal{Name: in.Name, Current: in.Current, Target: in.Target, Level: 1, Type: t}
	if in.Deadline != "" {
		d := in.Deadline
		g.Deadline = &d
	}
	g.AddHistory(e.now().UTC().Format(time.RFC3339), in.Current)

	saved, err := e.saver.SaveItemLocally(ctx, g, t)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Goal: saved, Created: true}, nil
}

// Update applies changes to the goal named by ref.
func (e *Editor) Update(ctx context.Context, t models.GoalType, ref string, c Changes) (Outcome, error) {
	g, err := e.Resolve(t, ref)
	if err != nil {
		return Outcome{}, err
	}

	in := validation.GoalInput{Name: g.Name, Current: g.Current, Target: g.Target}
	if g.Deadline != nil {
		in.Deadline = *g.Deadline
	}
	if c.Name != nil {
		in.Name = strings.TrimSpace(*c.Name)
	}
	if c.Current != nil {
		in.Current = *c.Current
	}
	if c.Target != nil {
		in.Target = *c.Target
	}
	if c.Deadline != nil {
		in.Deadline = *c.Deadline
	}
	if err := validation.ValidateGoalInput(in); err != nil {
		return Outcome{}, err
	}

	original := g
	if in.Name != g.Name {
		set, err := e.saver.LocalGoals()
		if err != nil {
			return Outcome{}, err
		}
		if other, exists := set.Find(t, in.Name); exists && !other.SameAs(g) {
			return Outcome{}, fmt.Errorf("%w: a %s goal named %q already exists", pqerrors.ErrValidation, t, in.Name)
		}
		g.Name = in.Name
	}

	g.Target = in.Target
	g.Deadline = nil
	if in.Deadline != "" {
		d := in.Deadline
		g.Deadline = &d
	}
	p := g.ApplyProgress(in.Current, e.now())

	saved, err := e.saver.ReplaceItemLocally(ctx, original, g, t)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Goal: saved, Progress: p}, nil
}

// Delete removes the goal named by ref.
func (e *Editor) Delete(ctx context.Context, t models.GoalType, ref string) (models.Goal, error) {
	g, err := e.Resolve(t, ref)
	if err != nil {
		return models.Goal{}, err
	}
	if _, err := e.saver.DeleteItemLocally(ctx, g, t); err != nil {
		return models.Goal{}, err
	}
	return g, nil
}

// Resolve finds a goal by "#<id>" or by name, ignoring case.
func (e *Editor) Resolve(t models.GoalType, ref string) (models.Goal, error) {
	set, err := e.saver.LocalGoals()
	if err != nil {
		return models.Goal{}, err
	}
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "#") {
		id, err := strconv.ParseInt(ref[1:], 10, 64)
		if err != nil {
			return models.Goal{}, fmt.Errorf("%w: invalid goal id %q", pqerrors.ErrValidation, ref)
		}
		if g, ok := set.FindByID(id); ok && g.Type == t {
			return g, nil
		}
		return models.Goal{}, fmt.Errorf("no %s goal with id %d", t, id)
	}
	if g, ok := set.Find(t, ref); ok {
		return g, nil
	}
	return models.Goal{}, fmt.Errorf("no %s goal named %q", t, ref)
}
