package commands

import (
	"fmt"

	"github.com/josephlewis42/forksh/core/jobs"
)

// Jobs lists background and stopped jobs.
func Jobs(inv *Invocation) error {
	cmd := &SimpleCommand{
		Use:   "jobs [-l] [-p]",
		Short: "Display status of jobs.",
	}
	opts := cmd.Flags()
	long := opts.Bool('l', "list process IDs in addition to the normal information")
	pids := opts.Bool('p', "list process group IDs only")
	var colors ColorPrinter
	colors.Init(opts, inv)

	return cmd.Run(inv, func() error {
		table := inv.Env.Jobs
		if table == nil {
			return nil
		}
		table.Reap()

		w := inv.Stdout()
		for _, job := range table.List() {
			if *pids {
				fmt.Fprintln(w, job.Pgid)
				continue
			}

			line := table.Line(job, *long)
			switch job.State() {
			case jobs.Stopped:
				line = colors.Sprintf(ColorBoldYellow, "%s", line)
			case jobs.Running:
				line = colors.Sprintf(ColorBoldGreen, "%s", line)
			}
			fmt.Fprintln(w, line)
		}
		return nil
	})
}

// Fg resumes a job in the foreground.
func Fg(inv *Invocation) error {
	return resume(inv, true)
}

// Bg resumes a stopped job in the background.
func Bg(inv *Invocation) error {
	return resume(inv, false)
}

func resume(inv *Invocation, fg bool) error {
	cmd := &SimpleCommand{
		Use:   fmt.Sprintf("%s [JOB_SPEC]", inv.Args[0]),
		Short: "Resume a job, the current job when JOB_SPEC is omitted.",
	}

	return cmd.Run(inv, func() error {
		table := inv.Env.Jobs
		if table == nil {
			return inv.Errorf("no job control")
		}

		spec := ""
		switch args := cmd.Flags().Args(); len(args) {
		case 0:
		case 1:
			spec = args[0]
		default:
			return inv.Errorf("too many arguments")
		}

		job, err := table.Get(spec)
		if err != nil {
			return inv.Errorf("%v", err)
		}
		if err := table.Continue(job, fg, inv.Env.Vars); err != nil {
			return inv.Errorf("%v", err)
		}
		if st := inv.Env.Vars.Status(); fg && st != 0 {
			return StatusError(st)
		}
		return nil
	})
}

func init() {
	addBuiltin("jobs", Jobs)
	addBuiltin("fg", Fg)
	addBuiltin("bg", Bg)
}
