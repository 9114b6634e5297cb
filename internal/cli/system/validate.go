package system

import (
	"fmt"

	"github.com/julianstephens/progressquest/internal/cli"
	"github.com/julianstephens/progressquest/internal/validation"
)

type ValidateCmd struct {
	Fix bool `help:"Repair what can be repaired automatically."`
}

func (c *ValidateCmd) Run(ctx *cli.Context) error {
	if err := ctx.Load(); err != nil {
		return err
	}
	username := ctx.Vault.GetUsername()
	if username == "" {
		return fmt.Errorf("nobody is signed in on this device")
	}
	set, err := ctx.Store.GetGoals(username)
	if err != nil {
		return fmt.Errorf("failed to read goals: %w", err)
	}

	v := validation.New()
	result := v.ValidateGoals(set)
	fmt.Fprint(ctx.Out, result.FormatReport())
	if !result.HasConflicts() {
		fmt.Fprintln(ctx.Out)
		return nil
	}
	if !c.Fix {
		fmt.Fprintln(ctx.Out, "\nRun with --fix to repair automatically.")
		return fmt.Errorf("%d conflicts found", len(result.Conflicts))
	}

	fixed, actions := v.AutoFix(set)
	if len(actions) == 0 {
		fmt.Fprintln(ctx.Out, "\nNothing could be fixed automatically; rename or delete the goals listed above.")
		return fmt.Errorf("%d conflicts need manual attention", len(result.Conflicts))
	}
	if err := ctx.Store.SaveGoals(fixed.Skills, fixed.Financial, username); err != nil {
		return fmt.Errorf("failed to save repaired goals: %w", err)
	}

	fmt.Fprintln(ctx.Out, "\nApplied fixes:")
	for _, a := range actions {
		fmt.Fprintf(ctx.Out, "  ✓ %s\n", a.Action)
	}

	if remaining := v.ValidateGoals(fixed); remaining.HasConflicts() {
		fmt.Fprintln(ctx.Out)
		fmt.Fprint(ctx.Out, remaining.FormatReport())
		return fmt.Errorf("%d conflicts need manual attention", len(remaining.Conflicts))
	}
	fmt.Fprintln(ctx.Out, "All conflicts resolved. Run 'pquest sync' to upload the repaired goals.")
	return nil
}
