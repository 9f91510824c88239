// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package toolchain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/webbuild/internal/derrors"
	"golang.org/x/webbuild/internal/log"
	"golang.org/x/webbuild/internal/plan"
)

// A Report is the outcome of one out-of-process check.
type Report struct {
	Check   plan.Plugin
	Command string
	// Skipped is true when the check is not configured or its program is
	// not installed.
	Skipped  bool
	OK       bool
	Output   string
	Duration time.Duration
}

func (r Report) String() string {
	switch {
	case r.Skipped:
		return fmt.Sprintf("%s: skipped (%s)", r.Check, r.Output)
	case r.OK:
		return fmt.Sprintf("%s: ok (%s)", r.Check, r.Duration.Round(time.Millisecond))
	default:
		return fmt.Sprintf("%s: failed\n%s", r.Check, r.Output)
	}
}

// Check runs the type-checker and the linter of bp concurrently in the
// project directory and returns one report for each, type-check first.
//
// Failures are logged as warnings and do not make Check fail, unless
// bp.StrictChecks is set; then a failed check yields an error wrapping
// derrors.CheckFailed. Skipped checks never fail.
func Check(ctx context.Context, bp *plan.BuildPlan, r Runner) ([]Report, error) {
	checks := []struct {
		name plan.Plugin
		args []string
	}{
		{plan.PluginTypeCheck, bp.Tools.TypeCheck},
		{plan.PluginLint, bp.Tools.Lint},
	}
	env := checkEnv(bp)
	reports := make([]Report, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range checks {
		if !bp.HasPlugin(c.name) {
			reports[i] = Report{Check: c.name, Skipped: true, Output: "not in plan"}
			continue
		}
		g.Go(func() error {
			reports[i] = runCheck(gctx, r, bp.Dir, env, c.name, c.args)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var failed []string
	for _, rep := range reports {
		switch {
		case rep.Skipped:
			log.Infof(ctx, "%s", rep)
		case rep.OK:
			log.Debugf(ctx, "%s", rep)
		default:
			log.Warningf(ctx, "%s", rep)
			failed = append(failed, string(rep.Check))
		}
	}
	if len(failed) > 0 && bp.StrictChecks {
		return reports, fmt.Errorf("%s: %w", strings.Join(failed, ", "), derrors.CheckFailed)
	}
	return reports, nil
}

// checkEnv passes the build mode to the checks and turns off colored output,
// which would end up in the reports.
func checkEnv(bp *plan.BuildPlan) map[string]string {
	env := map[string]string{"NO_COLOR": "1", "FORCE_COLOR": "0"}
	if bp.Mode != "" {
		env["NODE_ENV"] = string(bp.Mode)
	}
	return env
}

func runCheck(ctx context.Context, r Runner, dir string, env map[string]string, name plan.Plugin, args []string) Report {
	rep := Report{Check: name, Command: strings.Join(args, " ")}
	if len(args) == 0 {
		rep.Skipped = true
		rep.Output = "no command configured"
		return rep
	}
	res, err := r.Run(ctx, Command{Args: args, Dir: dir, Env: env})
	if res != nil {
		rep.Duration = res.Duration
		rep.Output = res.Output()
	}
	switch {
	case err == nil:
		rep.OK = true
	case IsNotInstalled(err):
		rep.Skipped = true
		rep.Output = fmt.Sprintf("%s is not installed", args[0])
	case res == nil:
		rep.Output = err.Error()
	}
	return rep
}
