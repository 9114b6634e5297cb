package models

import "sort"

// Template is a starter set of goals offered at registration.
type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Skills      []Goal `json:"skills"`
	Financial   []Goal `json:"financial"`
}

// GoalSet returns fresh copies of the template goals, typed and ready to save.
func (t Template) GoalSet() GoalSet {
	set := GoalSet{Skills: []Goal{}, Financial: []Goal{}}
	for _, g := range t.Skills {
		c := g.Clone()
		c.Type = GoalTypeSkill
		c.Normalize()
		set.Skills = append(set.Skills, c)
	}
	for _, g := range t.Financial {
		c := g.Clone()
		c.Type = GoalTypeFinancial
		c.Normalize()
		set.Financial = append(set.Financial, c)
	}
	return set
}

func starter(name string, current, target float64) Goal {
	return Goal{Name: name, Current: current, Target: target, Level: 1, History: []HistoryEntry{}}
}

func starters(target float64, names ...string) []Goal {
	goals := make([]Goal, 0, len(names))
	for _, n := range names {
		goals = append(goals, starter(n, 1, target))
	}
	return goals
}

// DefaultTemplateID is used when registration does not name a template.
const DefaultTemplateID = "clean_slate"

var builtinTemplates = map[string]Template{
	"clean_slate": {
		ID:          "clean_slate",
		Name:        "The Clean Slate",
		Description: "Add your own skills + goals",
	},
	"sales_expert": {
		ID:   "sales_expert",
		Name: "The Sales Expert",
		Skills: starters(10, "Outbound", "Discovery", "Storytelling", "Consulting",
			"Multithreading", "Followups", "Project Management", "Negotiation"),
	},
	"hybrid_athlete": {
		ID:   "hybrid_athlete",
		Name: "The Hybrid Athlete",
		Skills: []Goal{
			starter("Hyrox Training", 1, 10),
			starter("Padel", 1, 10),
			starter("Reformer Pilates", 5, 10),
		},
	},
	"racketmaster": {
		ID:   "racketmaster",
		Name: "The Racketmaster",
		Skills: []Goal{
			starter("Padel", 5, 10),
			starter("Tennis", 7, 20),
			starter("Squash", 3, 20),
			starter("Badminton", 2, 10),
		},
	},
	"financial_assassin": {
		ID:   "financial_assassin",
		Name: "The Financial Assassin",
		Financial: []Goal{
			starter("ETF Savings", 2000, 10000),
			starter("Cash Savings", 1000, 3000),
			starter("House Savings", 2000, 20000),
		},
	},
	"hyrox_monster": {
		ID:   "hyrox_monster",
		Name: "The Hyrox Monster",
		Skills: starters(10, "1km Running", "Skierg", "Row", "Sled Push", "Burpee Broad Jumps",
			"Sandbag Lunges", "Sled Pull", "Wall Balls", "Farmers Carry"),
	},
	"polyglot": {
		ID:     "polyglot",
		Name:   "The Polyglot",
		Skills: starters(10, "French", "Spanish", "Japanese"),
	},
}

// BuiltinTemplate looks up a template shipped with the client.
func BuiltinTemplate(id string) (Template, bool) {
	t, ok := builtinTemplates[id]
	return t, ok
}

// BuiltinTemplates returns the shipped templates sorted by id.
func BuiltinTemplates() []Template {
	out := make([]Template, 0, len(builtinTemplates))
	for _, t := range builtinTemplates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
