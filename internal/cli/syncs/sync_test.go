package syncs

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/julianstephens/progressquest/internal/cli/clitest"
	"github.com/julianstephens/progressquest/internal/models"
)

func syncServer(t *testing.T, status int) http.Handler {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sync", func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			clitest.WriteJSON(w, status, map[string]string{"error": "nope"})
			return
		}
		var req struct {
			Skills    []models.Goal `json:"skills"`
			Financial []models.Goal `json:"financial"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode sync request: %v", err)
		}
		for i := range req.Skills {
			id := int64(100 + i)
			req.Skills[i].ID = &id
		}
		clitest.WriteJSON(w, http.StatusOK, map[string]any{
			"skills":    req.Skills,
			"financial": req.Financial,
			"sync_time": "2026-01-01T00:00:00Z",
			"created":   len(req.Skills),
			"updated":   0,
		})
	})
	return mux
}

func TestSyncNowCmd(t *testing.T) {
	ctx, out := clitest.New(t, clitest.Options{Handler: syncServer(t, http.StatusOK)})
	clitest.SignIn(t, ctx, "alice")
	clitest.AddGoal(t, ctx, models.GoalTypeSkill, "Go", 2, 10)

	if err := (&SyncNowCmd{Force: true}).Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(out.String(), "Synced: 1 created") {
		t.Errorf("unexpected output:\n%s", out.String())
	}

	set, err := ctx.Engine.LocalGoals()
	if err != nil {
		t.Fatalf("LocalGoals failed: %v", err)
	}
	if len(set.Skills) != 1 || !set.Skills[0].HasID() || *set.Skills[0].ID != 100 {
		t.Errorf("server id not stored: %+v", set.Skills)
	}
}

func TestSyncNowCmdStates(t *testing.T) {
	tests := []struct {
		name    string
		opts    func(t *testing.T) clitest.Options
		signIn  bool
		wantErr bool
		wantOut string
	}{
		{
			name:    "offline is not an error",
			opts:    func(t *testing.T) clitest.Options { return clitest.Options{Offline: true} },
			signIn:  true,
			wantOut: "Offline",
		},
		{
			name:    "signed out",
			opts:    func(t *testing.T) clitest.Options { return clitest.Options{Handler: syncServer(t, http.StatusOK)} },
			wantErr: true,
			wantOut: "Not signed in",
		},
		{
			name: "server rejects",
			opts: func(t *testing.T) clitest.Options {
				return clitest.Options{Handler: syncServer(t, http.StatusInternalServerError)}
			},
			signIn:  true,
			wantErr: true,
			wantOut: "Sync incomplete",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, out := clitest.New(t, tt.opts(t))
			if tt.signIn {
				clitest.SignIn(t, ctx, "alice")
			}
			err := (&SyncNowCmd{Force: true}).Run(ctx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run error = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("output missing %q:\n%s", tt.wantOut, out.String())
			}
		})
	}
}

func TestSyncStatusCmd(t *testing.T) {
	t.Run("signed out", func(t *testing.T) {
		ctx, out := clitest.New(t, clitest.Options{Offline: true})
		if err := (&SyncStatusCmd{}).Run(ctx); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if !strings.Contains(out.String(), "Not signed in.") {
			t.Errorf("unexpected output:\n%s", out.String())
		}
	})

	t.Run("pending deletes", func(t *testing.T) {
		ctx, out := clitest.New(t, clitest.Options{Offline: true})
		clitest.SignIn(t, ctx, "alice")
		clitest.AddGoal(t, ctx, models.GoalTypeSkill, "Go", 2, 10)
		clitest.AddGoal(t, ctx, models.GoalTypeFinancial, "Car", 100, 5000)
		if err := ctx.Store.AddPendingDelete("alice", 9); err != nil {
			t.Fatalf("AddPendingDelete failed: %v", err)
		}

		if err := (&SyncStatusCmd{}).Run(ctx); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		got := out.String()
		for _, want := range []string{"offline", "1 skills, 1 financial", "1 deletions waiting"} {
			if !strings.Contains(got, want) {
				t.Errorf("output missing %q:\n%s", want, got)
			}
		}
	})
}
