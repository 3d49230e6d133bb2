package console

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/scontrol/pkg/hostlist"
	"github.com/cuemby/scontrol/pkg/snapshot"
	"github.com/cuemby/scontrol/pkg/types"
)

// printFirst prints records accepted by match in stored order. A nil match
// prints everything. With first set it stops after one record.
func printFirst[T any](w io.Writer, snap *snapshot.Snapshot[T], match func(*T) bool, first bool, render func(io.Writer, *T)) int {
	printed := 0
	for i := range snap.Records {
		rec := &snap.Records[i]
		if match != nil && !match(rec) {
			continue
		}
		render(w, rec)
		printed++
		if first && match != nil {
			break
		}
	}
	return printed
}

func (s *Session) showConfig(ctx context.Context, key string) {
	snap, ok := refresh(ctx, s, "load_config", &s.config, s.ctl.LoadConfig)
	if !ok {
		return
	}

	var match func(*types.ConfigEntry) bool
	if key != "" {
		match = func(c *types.ConfigEntry) bool { return strings.EqualFold(c.Key, key) }
	}
	if printFirst(s.out, snap, match, true, renderConfig) > 0 {
		return
	}
	if snap.Len() > 0 {
		s.notef("Configuration parameter %s not found\n", key)
	} else {
		s.notef("No configuration parameters in the system\n")
	}
}

func (s *Session) showJobs(ctx context.Context, id string) {
	var jobID uint32
	if id != "" {
		n, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			s.warnf("Invalid job id specified: %s\n", id)
			return
		}
		jobID = uint32(n)
	}

	snap, ok := refresh(ctx, s, "load_jobs", &s.jobs, s.ctl.LoadJobs)
	if !ok {
		return
	}

	var match func(*types.Job) bool
	if id != "" {
		match = func(j *types.Job) bool { return j.JobID == jobID }
	}
	if printFirst(s.out, snap, match, true, renderJob) > 0 {
		return
	}
	if snap.Len() > 0 {
		s.notef("Job %d not found\n", jobID)
	} else {
		s.notef("No jobs in the system\n")
	}
}

func (s *Session) showPartitions(ctx context.Context, name string) {
	snap, ok := refresh(ctx, s, "load_partitions", &s.partitions, s.ctl.LoadPartitions)
	if !ok {
		return
	}

	var match func(*types.Partition) bool
	if name != "" {
		match = func(p *types.Partition) bool { return p.Name == name }
	}
	if printFirst(s.out, snap, match, true, renderPartition) > 0 {
		return
	}
	if snap.Len() > 0 {
		s.notef("Partition %s not found\n", name)
	} else {
		s.notef("No partitions in the system\n")
	}
}

// showNodes prints every node, or each node named by the hostlist expression
func (s *Session) showNodes(ctx context.Context, expr string) {
	snap, ok := refresh(ctx, s, "load_nodes", &s.nodes, s.ctl.LoadNodes)
	if !ok {
		return
	}

	if expr == "" {
		if printFirst(s.out, snap, nil, false, renderNode) == 0 {
			s.notef("No nodes in the system\n")
		}
		return
	}

	hl, err := hostlist.Parse(expr)
	if err != nil {
		switch {
		case errors.Is(err, hostlist.ErrRangeTooLarge):
			s.warnf("too many nodes in supplied range %s\n", expr)
		case errors.Is(err, hostlist.ErrSyntax):
			s.warnf("unable to parse node list %s\n", expr)
		default:
			s.warnf("error parsing node list: %v\n", err)
		}
		return
	}
	for name := range hl.All() {
		s.printNode(snap, name)
	}
}

// printNode scans from the rotating cursor so repeated lookups do not always
// start at the head of the table
func (s *Session) printNode(snap *snapshot.Snapshot[types.Node], name string) {
	n := snap.Len()
	if n == 0 {
		s.notef("No nodes in the system\n")
		return
	}

	start := s.cursors[types.KindNode] % n
	for j := 0; j < n; j++ {
		i := (start + j) % n
		if snap.Records[i].Name != name {
			continue
		}
		renderNode(s.out, &snap.Records[i])
		s.cursors[types.KindNode] = i
		return
	}
	s.notef("Node %s not found\n", name)
}

// parseStepID accepts "<job>" or "<job>.<step>"
func parseStepID(id string) (types.StepFilter, error) {
	var f types.StepFilter
	jobStr, stepStr, hasStep := strings.Cut(id, ".")
	job, err := strconv.ParseUint(jobStr, 10, 32)
	if err != nil || job == 0 {
		return f, errors.New("invalid job step id")
	}
	f.JobID = uint32(job)
	if hasStep {
		step, err := strconv.ParseUint(stepStr, 10, 32)
		if err != nil {
			return f, errors.New("invalid job step id")
		}
		f.StepID = uint32(step)
		f.HasStep = true
	}
	return f, nil
}

func (s *Session) showSteps(ctx context.Context, id string) {
	var filter types.StepFilter
	if id != "" {
		f, err := parseStepID(id)
		if err != nil {
			s.warnf("Invalid job step id specified: %s\n", id)
			return
		}
		filter = f
	}

	// a delta query is only meaningful against the same filter
	if filter != s.stepFilter {
		s.steps.Reset()
	}
	load := func(ctx context.Context, since time.Time) (snapshot.Response[types.Step], error) {
		return s.ctl.LoadSteps(ctx, since, filter)
	}
	snap, ok := refresh(ctx, s, "get_job_steps", &s.steps, load)
	if !ok {
		return
	}
	s.stepFilter = filter

	printed := printFirst(s.out, snap, filter.Matches, false, renderStep)
	if printed > 0 {
		return
	}
	if snap.Len() > 0 {
		s.notef("Job step %s not found\n", id)
	} else {
		s.notef("No job steps in the system\n")
	}
}
