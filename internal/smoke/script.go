package smoke

import (
	"context"
	"errors"
	"fmt"

	"bootci/internal/config"
	"bootci/internal/executil"
)

// RunScript runs the leg's external test runner. Its environment carries
// the leg's template variables plus BOOTCI_IMAGE (the example image),
// IMAGE_TAG (the bootstrap image) and BOOTCI_URL.
func RunScript(ctx context.Context, r executil.Runner, leg config.Leg) error {
	if len(leg.ScriptArgs) == 0 {
		return errors.New("RunScript: no script configured")
	}
	env := make(map[string]string, len(leg.Vars)+3)
	for k, v := range leg.Vars {
		env[k] = v
	}
	env["BOOTCI_IMAGE"] = leg.Example.Tag
	env["IMAGE_TAG"] = leg.Base.Tag
	env["BOOTCI_URL"] = leg.Smoke.URL

	cmd := executil.Cmd{
		Name: leg.ScriptArgs[0],
		Args: leg.ScriptArgs[1:],
		Env:  env,
	}
	if err := r.Run(ctx, cmd); err != nil {
		return fmt.Errorf("script %s: %w", leg.ScriptArgs[0], err)
	}
	return nil
}
