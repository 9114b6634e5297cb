package models

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/julianstephens/progressquest/internal/constants"
)

type GoalType string

const (
	GoalTypeSkill     GoalType = "skill"
	GoalTypeFinancial GoalType = "financial"
)

// ParseGoalType accepts "skill"/"skills" and "financial"/"finance".
func ParseGoalType(s string) (GoalType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skill", "skills":
		return GoalTypeSkill, nil
	case "financial", "finance":
		return GoalTypeFinancial, nil
	default:
		return "", fmt.Errorf("unknown goal type %q (expected skill or financial)", s)
	}
}

type HistoryEntry struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type Goal struct {
	ID         *int64         `json:"id"` // nil until the server assigns one
	Name       string         `json:"name"`
	Current    float64        `json:"current"`
	Target     float64        `json:"target"`
	Level      int            `json:"level"`
	Deadline   *string        `json:"deadline,omitempty"`
	History    []HistoryEntry `json:"history"`
	Type       GoalType       `json:"type,omitempty"`
	Visibility string         `json:"visibility,omitempty"`
}

// Progress describes what changed when a new value was applied to a goal.
type Progress struct {
	Changed   bool
	LeveledUp bool
	BandUp    bool
	Milestone int // 25 or 75 when that percentage was crossed, else 0
}

func (g Goal) IsMastered() bool {
	return g.Current >= g.Target
}

func (g Goal) HasID() bool {
	return g.ID != nil
}

// SameAs reports whether g and other name the same goal: by id when g has one, else by name.
func (g Goal) SameAs(other Goal) bool {
	if g.ID != nil {
		return other.ID != nil && *other.ID == *g.ID
	}
	return other.Name == g.Name
}

// Percent returns progress as a percentage of target.
func (g Goal) Percent() float64 {
	if g.Target <= 0 {
		return 0
	}
	return g.Current / g.Target * 100
}

// ProgressBand splits the way to the target into ten bands, starting at 1.
func (g Goal) ProgressBand() int {
	return progressBand(g.Current, g.Target)
}

func progressBand(current, target float64) int {
	if target <= 0 {
		return 1
	}
	return int(math.Floor(current/target*constants.ProgressBands)) + 1
}

// AddHistory appends a sample and keeps only the most recent MaxHistoryEntries.
func (g *Goal) AddHistory(date string, value float64) {
	g.History = append(g.History, HistoryEntry{Date: date, Value: value})
	if over := len(g.History) - constants.MaxHistoryEntries; over > 0 {
		g.History = append([]HistoryEntry(nil), g.History[over:]...)
	}
}

// LevelUp raises the level by one and the target by half, rounded.
func (g *Goal) LevelUp() {
	g.Level++
	g.Target = math.Round(g.Target * constants.LevelUpFactor)
}

// ApplyProgress sets Current, records history when the value moved, and levels the goal up
// exactly once when it crosses from unmastered to mastered.
func (g *Goal) ApplyProgress(current float64, now time.Time) Progress {
	old := g.Current
	if old == current {
		return Progress{}
	}

	p := Progress{Changed: true}
	g.Current = current
	g.AddHistory(now.UTC().Format(time.RFC3339), current)

	wasMastered := old >= g.Target
	if !wasMastered && g.IsMastered() {
		g.LevelUp()
		p.LeveledUp = true
		return p
	}

	p.BandUp = progressBand(current, g.Target) > progressBand(old, g.Target)
	if g.Target > 0 {
		oldPct := math.Round(old / g.Target * 100)
		newPct := math.Round(current / g.Target * 100)
		for _, m := range []float64{25, 75} {
			if newPct > m && oldPct <= m {
				p.Milestone = int(m)
				break
			}
		}
	}
	return p
}

// Prediction projects a completion date from the first and last history samples.
// It returns nil when there is not enough signal to project.
func (g Goal) Prediction(now time.Time) *time.Time {
	if len(g.History) < 2 {
		return nil
	}
	first, err := parseHistoryDate(g.History[0].Date)
	if err != nil {
		return nil
	}
	last, err := parseHistoryDate(g.History[len(g.History)-1].Date)
	if err != nil {
		return nil
	}

	days := last.Sub(first).Hours() / 24
	if days < 1 {
		return nil
	}
	change := g.History[len(g.History)-1].Value - g.History[0].Value
	if change <= 0 {
		return nil
	}

	remaining := g.Target - g.Current
	daysNeeded := remaining / (change / days)
	predicted := now.Add(time.Duration(daysNeeded * float64(24*time.Hour)))
	return &predicted
}

func parseHistoryDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", constants.DateFormat} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Normalize coerces a goal read from storage or the network into the strict schema.
func (g *Goal) Normalize() {
	g.Name = strings.TrimSpace(g.Name)
	if g.Level < 1 {
		g.Level = 1
	}
	if g.History == nil {
		g.History = []HistoryEntry{}
	}
	if over := len(g.History) - constants.MaxHistoryEntries; over > 0 {
		g.History = append([]HistoryEntry(nil), g.History[over:]...)
	}
	if g.Deadline != nil && strings.TrimSpace(*g.Deadline) == "" {
		g.Deadline = nil
	}
}

// Validate checks the goal invariants.
func (g Goal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("goal name cannot be empty")
	}
	if math.IsNaN(g.Current) || math.IsInf(g.Current, 0) {
		return fmt.Errorf("goal %q: current must be a finite number", g.Name)
	}
	if math.IsNaN(g.Target) || math.IsInf(g.Target, 0) {
		return fmt.Errorf("goal %q: target must be a finite number", g.Name)
	}
	if len(g.History) > constants.MaxHistoryEntries {
		return fmt.Errorf("goal %q: history holds %d entries, max %d", g.Name, len(g.History), constants.MaxHistoryEntries)
	}
	if g.Type != "" && g.Type != GoalTypeSkill && g.Type != GoalTypeFinancial {
		return fmt.Errorf("goal %q: unknown type %q", g.Name, g.Type)
	}
	return nil
}

// Clone returns a deep copy.
func (g Goal) Clone() Goal {
	c := g
	if g.ID != nil {
		id := *g.ID
		c.ID = &id
	}
	if g.Deadline != nil {
		d := *g.Deadline
		c.Deadline = &d
	}
	c.History = append([]HistoryEntry(nil), g.History...)
	return c
}

// GoalSet is a user's goals partitioned by type.
type GoalSet struct {
	Skills    []Goal `json:"skills"`
	Financial []Goal `json:"financial"`
}

func (s GoalSet) Len() int {
	return len(s.Skills) + len(s.Financial)
}

// Of returns the slice for the given type.
func (s GoalSet) Of(t GoalType) []Goal {
	if t == GoalTypeFinancial {
		return s.Financial
	}
	return s.Skills
}

// With returns a copy of the set with the slice for t replaced.
func (s GoalSet) With(t GoalType, goals []Goal) GoalSet {
	if t == GoalTypeFinancial {
		s.Financial = goals
	} else {
		s.Skills = goals
	}
	return s
}

// Find returns the goal of type t with the given name.
func (s GoalSet) Find(t GoalType, name string) (Goal, bool) {
	for _, g := range s.Of(t) {
		if strings.EqualFold(g.Name, name) {
			return g, true
		}
	}
	return Goal{}, false
}

// FindByID looks through both partitions.
func (s GoalSet) FindByID(id int64) (Goal, bool) {
	for _, g := range append(append([]Goal(nil), s.Skills...), s.Financial...) {
		if g.ID != nil && *g.ID == id {
			return g, true
		}
	}
	return Goal{}, false
}
