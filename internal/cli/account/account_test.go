package account

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/julianstephens/progressquest/internal/cli/clitest"
	"github.com/julianstephens/progressquest/internal/models"
)

func fakeServer(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := decode(r, &body); err != nil || body.Password != "hunter22" {
			clitest.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
			return
		}
		clitest.WriteJSON(w, http.StatusOK, map[string]any{
			"access_token":  "access-" + body.Username,
			"refresh_token": "refresh-" + body.Username,
			"expires_in":    3600,
			"user":          map[string]any{"id": 7, "username": body.Username},
		})
	})
	mux.HandleFunc("GET /api/goals", func(w http.ResponseWriter, r *http.Request) {
		clitest.WriteJSON(w, http.StatusOK, map[string]any{
			"skills": []map[string]any{
				{"id": 1, "name": "Go", "current": 4, "target": 10, "level": 1},
				{"id": 2, "name": "Piano", "current": 0, "target": 50, "level": 1},
			},
			"financial": []map[string]any{},
		})
	})
	mux.HandleFunc("POST /api/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/templates", func(w http.ResponseWriter, r *http.Request) {
		clitest.WriteJSON(w, http.StatusOK, map[string]any{
			"templates": []map[string]any{
				{"id": "coder", "name": "Coder", "description": "Learn to ship", "skills": []map[string]any{{"name": "Go", "current": 0, "target": 10}}},
			},
		})
	})
	return mux
}

func TestLoginCmd(t *testing.T) {
	ctx, out := clitest.New(t, clitest.Options{Handler: fakeServer(t)})

	if err := (&LoginCmd{Username: "alice", Password: "hunter22"}).Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Signed in as alice") || !strings.Contains(got, "Downloaded 2 goals") {
		t.Errorf("unexpected output:\n%s", got)
	}
	if tok := ctx.Vault.GetToken(); tok != "access-alice" {
		t.Errorf("token = %q, want access-alice", tok)
	}

	set, err := ctx.Engine.LocalGoals()
	if err != nil {
		t.Fatalf("LocalGoals failed: %v", err)
	}
	if len(set.Skills) != 2 {
		t.Errorf("got %d skills, want 2", len(set.Skills))
	}
}

func TestLoginCmdWrongPassword(t *testing.T) {
	ctx, out := clitest.New(t, clitest.Options{Handler: fakeServer(t)})

	for i := 0; i < 2; i++ {
		err := (&LoginCmd{Username: "alice", Password: "wrong"}).Run(ctx)
		if err == nil || err.Error() != "invalid username or password" {
			t.Fatalf("attempt %d: err = %v", i+1, err)
		}
	}
	if got := ctx.Auth.FailedAttempts("alice"); got != 2 {
		t.Errorf("FailedAttempts = %d, want 2", got)
	}
	if !strings.Contains(out.String(), "2 failed attempts") {
		t.Errorf("missing diagnostics hint:\n%s", out.String())
	}
}

func TestLoginCmdOffline(t *testing.T) {
	ctx, _ := clitest.New(t, clitest.Options{Offline: true})

	if err := (&LoginCmd{Username: "alice", Password: "hunter22"}).Run(ctx); err == nil {
		t.Fatal("expected login to be refused offline")
	}
}

func TestLogoutCmdKeepsGoals(t *testing.T) {
	ctx, out := clitest.New(t, clitest.Options{Handler: fakeServer(t)})
	clitest.SignIn(t, ctx, "alice")
	clitest.AddGoal(t, ctx, models.GoalTypeSkill, "Go", 1, 10)

	if err := (&LogoutCmd{}).Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(out.String(), "Signed out alice") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
	if tok := ctx.Vault.GetToken(); tok != "" {
		t.Errorf("token = %q after logout", tok)
	}
	if u := ctx.Vault.GetUsername(); u != "alice" {
		t.Errorf("username = %q, want it kept", u)
	}
	set, err := ctx.Store.GetGoals("alice")
	if err != nil {
		t.Fatalf("GetGoals failed: %v", err)
	}
	if set.Len() != 1 {
		t.Errorf("goals after logout = %d, want 1", set.Len())
	}
}

func TestWhoamiCmd(t *testing.T) {
	t.Run("signed out", func(t *testing.T) {
		ctx, out := clitest.New(t, clitest.Options{Offline: true})
		if err := (&WhoamiCmd{}).Run(ctx); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if !strings.Contains(out.String(), "Not signed in.") {
			t.Errorf("unexpected output:\n%s", out.String())
		}
	})

	t.Run("signed in", func(t *testing.T) {
		ctx, out := clitest.New(t, clitest.Options{Handler: fakeServer(t)})
		if err := (&LoginCmd{Username: "alice", Password: "hunter22"}).Run(ctx); err != nil {
			t.Fatalf("login failed: %v", err)
		}
		out.Reset()

		if err := (&WhoamiCmd{}).Run(ctx); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		got := out.String()
		for _, want := range []string{"alice", "signed in", "Known users on this device: alice"} {
			if !strings.Contains(got, want) {
				t.Errorf("output missing %q:\n%s", want, got)
			}
		}
	})
}

func TestTemplatesCmd(t *testing.T) {
	t.Run("remote", func(t *testing.T) {
		ctx, out := clitest.New(t, clitest.Options{Handler: fakeServer(t)})
		if err := (&TemplatesCmd{}).Run(ctx); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		got := out.String()
		if strings.Contains(got, "built-in") || !strings.Contains(got, "Coder") {
			t.Errorf("unexpected output:\n%s", got)
		}
	})

	t.Run("offline falls back to built-ins", func(t *testing.T) {
		ctx, out := clitest.New(t, clitest.Options{Offline: true})
		if err := (&TemplatesCmd{}).Run(ctx); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		got := out.String()
		if !strings.Contains(got, "showing built-in templates") {
			t.Errorf("unexpected output:\n%s", got)
		}
		for _, tmpl := range models.BuiltinTemplates() {
			if !strings.Contains(got, tmpl.ID) {
				t.Errorf("output missing template %q", tmpl.ID)
			}
		}
	})
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
