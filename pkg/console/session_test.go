package console

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/scontrol/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShowNodesRefreshIsIdempotent(t *testing.T) {
	h := newHarness()
	h.ctl.nodes = nodes("n1", "n2")

	h.run("show nodes")
	first := h.session.nodes.Current()
	require.NotNil(t, first)
	firstOut := h.out.String()

	h.reset()
	h.run("show nodes")
	assert.Same(t, first, h.session.nodes.Current())
	assert.Equal(t, firstOut, h.out.String())
	assert.Equal(t, 2, h.ctl.loads[types.KindNode])
}

func TestShowNodesVerboseFreshness(t *testing.T) {
	h := newHarness()
	h.ctl.nodes = nodes("n1")
	h.session.SetVerbosity(Verbose)

	h.run("show nodes")
	assert.Contains(t, h.out.String(), "records=1")
	assert.NotContains(t, h.out.String(), "no change in data")

	h.reset()
	h.run("show nodes")
	assert.Contains(t, h.out.String(), "load_nodes no change in data")
}

func TestKeywordsAreCaseInsensitiveNamesAreNot(t *testing.T) {
	h := newHarness()
	h.ctl.nodes = nodes("n1")

	for _, kw := range []string{"SHOW", "Show", "show"} {
		h.reset()
		h.run(kw + " node n1")
		assert.Contains(t, h.out.String(), "NodeName=n1 ", kw)
	}

	h.reset()
	h.run("show node N1")
	assert.Equal(t, "Node N1 not found\n", h.out.String())
}

func TestEmptyVersusMissing(t *testing.T) {
	h := newHarness()
	h.run("show node x")
	assert.Equal(t, "No nodes in the system\n", h.out.String())

	h = newHarness()
	h.ctl.nodes = nodes("n1")
	h.run("show node x")
	assert.Equal(t, "Node x not found\n", h.out.String())

	h = newHarness()
	h.run("show job 5")
	assert.Equal(t, "No jobs in the system\n", h.out.String())

	h = newHarness()
	h.ctl.jobs = []types.Job{{JobID: 4, State: types.JobStateRunning}}
	h.run("show job 5")
	assert.Equal(t, "Job 5 not found\n", h.out.String())
}

func TestNodeCursorRotation(t *testing.T) {
	h := newHarness()
	h.ctl.nodes = nodes("n0", "n1", "n2", "n3", "n4")

	h.run("show node n3")
	assert.Contains(t, h.out.String(), "NodeName=n3 ")
	assert.Equal(t, 3, h.session.Cursor(types.KindNode))

	h.reset()
	h.run("show node n3")
	assert.Contains(t, h.out.String(), "NodeName=n3 ")
	assert.Equal(t, 3, h.session.Cursor(types.KindNode))

	// the scan wraps from the cursor
	h.reset()
	h.run("show node n1")
	assert.Contains(t, h.out.String(), "NodeName=n1 ")
	assert.Equal(t, 1, h.session.Cursor(types.KindNode))

	// a miss leaves the cursor alone
	h.run("show node n9")
	assert.Equal(t, 1, h.session.Cursor(types.KindNode))
}

func TestShowNodesHostlist(t *testing.T) {
	h := newHarness()
	h.ctl.nodes = nodes("lx1", "lx2", "lx3")

	h.run("show node lx[2-4]")
	out := h.out.String()
	assert.Contains(t, out, "NodeName=lx2 ")
	assert.Contains(t, out, "NodeName=lx3 ")
	assert.Contains(t, out, "Node lx4 not found")
	assert.NotContains(t, out, "NodeName=lx1 ")

	h.reset()
	h.run("show node lx[1-99999]")
	assert.Equal(t, "too many nodes in supplied range lx[1-99999]\n", h.errOut.String())

	h.reset()
	h.run("show node lx[1-")
	assert.Equal(t, "unable to parse node list lx[1-\n", h.errOut.String())
}

func TestRepeatMarker(t *testing.T) {
	h := newHarness()
	h.ctl.nodes = nodes("n1")

	h.run("show nodes")
	h.run("!!")
	assert.Equal(t, 2, strings.Count(h.out.String(), "NodeName=n1 "))
	assert.Equal(t, 2, h.ctl.loads[types.KindNode])
}

func TestRepeatMarkerWithoutHistory(t *testing.T) {
	h := newHarness()
	h.session.SetVerbosity(Verbose)
	h.run("!!")
	assert.Equal(t, "no input\n", h.out.String())
}

func TestUpdateInvalidNodeState(t *testing.T) {
	h := newHarness()
	h.run("update NodeName=n7 State=DRAINED")

	assert.Zero(t, h.ctl.mutations())
	errOut := h.errOut.String()
	assert.Contains(t, errOut, "Invalid input: State=DRAINED")
	assert.Contains(t, errOut, "Request aborted")
	assert.Contains(t, errOut, "Valid State values are: "+strings.Join(types.NodeStateNames(), " "))
}

func TestUpdateAtomicity(t *testing.T) {
	for _, line := range []string{
		"update JobId=5 Priority=10 Priority=abc",
		"update JobId=5 Bogus=1",
		"update PartitionName=p1 Shared=MAYBE MaxTime=10",
		"update NodeName=n1 State=IDLE extra",
	} {
		h := newHarness()
		h.run(line)
		assert.Zero(t, h.ctl.mutations(), line)
		assert.Contains(t, h.errOut.String(), "Request aborted", line)
	}
}

func TestUpdateNoEntity(t *testing.T) {
	h := newHarness()
	h.run("update Priority=5")
	assert.Zero(t, h.ctl.mutations())
	assert.Equal(t,
		"No valid entity in update command\nInput line must include \"NodeName\", \"PartitionName\", or \"JobId\"\n",
		h.out.String())
}

func TestUpdateSendsOneMutation(t *testing.T) {
	h := newHarness()
	h.run("update JobId=5 Priority=100 TimeLimit=30")
	require.Len(t, h.ctl.jobUpdates, 1)
	assert.Equal(t, uint32(5), h.ctl.jobUpdates[0].JobID)
	assert.Equal(t, uint32(100), h.ctl.jobUpdates[0].Priority)
	assert.Equal(t, uint32(30), h.ctl.jobUpdates[0].TimeLimit)
	assert.Equal(t, types.NoVal, h.ctl.jobUpdates[0].MinNodes)

	h.run("update NodeName=n[1-2] State=DRAIN")
	require.Len(t, h.ctl.nodeUpdates, 1)
	assert.Equal(t, "n[1-2]", h.ctl.nodeUpdates[0].NodeNames)
	assert.Equal(t, uint16(types.NodeStateDrain), h.ctl.nodeUpdates[0].State)
	assert.Equal(t, 2, h.ctl.mutations())
}

func TestUpdateRemoteError(t *testing.T) {
	h := newHarness()
	h.ctl.updateErr = errors.New("Invalid job id specified")
	h.run("update JobId=99 Priority=1")
	assert.Equal(t, "update_job error: Invalid job id specified\n", h.errOut.String())
}

func TestShowStepsFilter(t *testing.T) {
	h := newHarness()
	h.ctl.steps = []types.Step{
		{JobID: 42, StepID: 1},
		{JobID: 42, StepID: 3},
		{JobID: 43, StepID: 3},
	}

	h.run("show steps 42.3")
	out := h.out.String()
	assert.Contains(t, out, "StepId=42.3 ")
	assert.NotContains(t, out, "StepId=42.1 ")
	assert.NotContains(t, out, "StepId=43.3 ")
	assert.Equal(t, 1, strings.Count(out, "StepId="))

	h.reset()
	h.run("show steps 42")
	assert.Equal(t, 2, strings.Count(h.out.String(), "StepId=42."))

	h.reset()
	h.run("show steps 44")
	assert.Equal(t, "Job step 44 not found\n", h.out.String())
}

func TestShowStepsFilterChangeForcesFullLoad(t *testing.T) {
	h := newHarness()
	h.ctl.steps = []types.Step{{JobID: 42, StepID: 1}}

	h.run("show steps 42")
	first := h.session.steps.Current()
	h.run("show steps 42")
	assert.Same(t, first, h.session.steps.Current())

	h.run("show steps 43")
	assert.NotSame(t, first, h.session.steps.Current())
	require.Len(t, h.ctl.stepFilters, 3)
	assert.Equal(t, types.StepFilter{JobID: 43}, h.ctl.stepFilters[2])
}

func TestShowStepsInvalidID(t *testing.T) {
	h := newHarness()
	h.run("show step 4x")
	assert.Equal(t, "Invalid job step id specified: 4x\n", h.errOut.String())
	assert.Zero(t, h.ctl.loads[types.KindStep])
}

func TestShowRemoteErrorWithoutCache(t *testing.T) {
	h := newHarness()
	h.ctl.loadErr = errors.New("Unable to contact slurm controller")
	h.run("show partitions")
	assert.Empty(t, h.out.String())
	assert.Equal(t, "load_partitions error: Unable to contact slurm controller\n", h.errOut.String())
	assert.Nil(t, h.session.partitions.Current())
}

func TestShowConfig(t *testing.T) {
	h := newHarness()
	h.ctl.config = []types.ConfigEntry{
		{Key: "ControlMachine", Value: "ctl1"},
		{Key: "SlurmctldPort", Value: "6817"},
	}

	h.run("show config slurmctldport")
	assert.Equal(t, "SlurmctldPort        = 6817\n", h.out.String())

	h.reset()
	h.run("show config")
	assert.Equal(t, 2, strings.Count(h.out.String(), " = "))

	h.reset()
	h.run("show config Nope")
	assert.Equal(t, "Configuration parameter Nope not found\n", h.out.String())
}

func TestShowPartitions(t *testing.T) {
	h := newHarness()
	h.ctl.partitions = []types.Partition{
		{Name: "debug", MaxTime: 30, MaxNodes: types.Infinite, Default: true, StateUp: true},
		{Name: "batch", MaxTime: types.Infinite, MaxNodes: 16},
	}

	h.run("show partition debug")
	out := h.out.String()
	assert.Contains(t, out, "PartitionName=debug ")
	assert.Contains(t, out, "Default=YES")
	assert.Contains(t, out, "MaxTime=30 MaxNodes=INFINITE")
	assert.NotContains(t, out, "batch")

	h.reset()
	h.run("show partition DEBUG")
	assert.Equal(t, "Partition DEBUG not found\n", h.out.String())
}

func TestShowJobInvalidID(t *testing.T) {
	h := newHarness()
	h.run("show job abc")
	assert.Equal(t, "Invalid job id specified: abc\n", h.errOut.String())
	assert.Zero(t, h.ctl.loads[types.KindJob])
}

func TestQuietSuppressesNotes(t *testing.T) {
	h := newHarness()
	h.run("quiet")
	assert.Equal(t, Quiet, h.session.Verbosity())
	h.run("show node x")
	assert.Empty(t, h.out.String())

	h.run("verbose")
	assert.Equal(t, Verbose, h.session.Verbosity())
}

func TestKeywordPrefixes(t *testing.T) {
	h := newHarness()
	h.ctl.nodes = nodes("n1")

	h.run("show nod")
	assert.Contains(t, h.out.String(), "NodeName=n1")

	h.reset()
	h.run("show no")
	assert.Contains(t, h.errOut.String(), "invalid entity:no for keyword:show")

	h.reset()
	h.run("reconfig")
	assert.Equal(t, 1, h.ctl.reconfigs)

	h.run("abort")
	h.run("shutd")
	assert.Equal(t, []bool{true, false}, h.ctl.shutdowns)

	h.reset()
	h.run("shu")
	assert.Contains(t, h.errOut.String(), "invalid keyword: shu")
	assert.Len(t, h.ctl.shutdowns, 2)
}

func TestInvalidKeywordSuggestion(t *testing.T) {
	h := newHarness()
	h.run("shwo nodes")
	assert.Equal(t, "invalid keyword: shwo (did you mean \"show\"?)\n", h.errOut.String())

	h.reset()
	h.run("frobnicate")
	assert.Equal(t, "invalid keyword: frobnicate\n", h.errOut.String())
}

func TestArgumentCountPolicy(t *testing.T) {
	h := newHarness()
	h.run("show")
	assert.Equal(t, "too few arguments for keyword:show\n", h.errOut.String())

	h.reset()
	h.run("show node n1 n2")
	assert.Equal(t, "too many arguments for keyword:show\n", h.errOut.String())
	assert.Zero(t, h.ctl.loads[types.KindNode])

	h.reset()
	h.run("exit now")
	assert.Equal(t, "too many arguments for keyword:exit\n", h.errOut.String())
	assert.True(t, h.session.Exited())
}

func TestVersionAndHelp(t *testing.T) {
	h := newHarness()
	h.run("version")
	assert.Equal(t, "scontrol Version 1.0.0\n", h.out.String())

	h.reset()
	h.run("help")
	assert.Contains(t, h.out.String(), "pid2jid <process_id>")
}

func TestPid2Jid(t *testing.T) {
	h := newHarness()
	h.ctl.pidJob = 77
	h.run("pid2jid 1234")
	assert.Equal(t, "Slurm job id: 77\n", h.out.String())

	h.reset()
	h.ctl.pidErr = errors.New("No job found for process")
	h.run("pid2jid 1234")
	assert.Equal(t, "pid2jobid error: No job found for process\n", h.errOut.String())

	h.reset()
	h.run("pid2jid abc")
	assert.Equal(t, "Invalid process id specified: abc\n", h.errOut.String())
}

func TestTooManyWordsIsFatal(t *testing.T) {
	h := newHarness()
	line := "show" + strings.Repeat(" x", MaxInputFields)
	err := h.session.ExecuteLine(context.Background(), line)
	require.ErrorIs(t, err, ErrTooManyWords)
	assert.Equal(t, 7, ExitCode(err))
}

type scriptReader struct {
	lines []string
}

func (r *scriptReader) ReadLine() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptReader) Close() error { return nil }

func TestRunStopsAtExit(t *testing.T) {
	h := newHarness()
	h.ctl.nodes = nodes("n1")
	r := &scriptReader{lines: []string{"show nodes", "", "quit", "show nodes"}}

	require.NoError(t, h.session.Run(context.Background(), r))
	assert.Equal(t, 1, h.ctl.loads[types.KindNode])
	assert.Equal(t, []string{"show nodes"}, r.lines)
}

func TestRunEndOfInput(t *testing.T) {
	h := newHarness()
	r := &scriptReader{lines: []string{"version"}}
	require.NoError(t, h.session.Run(context.Background(), r))
	assert.False(t, h.session.Exited())
}

func TestRunCanceled(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	err := h.session.Run(ctx, &scriptReader{lines: []string{"version"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScanReader(t *testing.T) {
	var out strings.Builder
	r := NewScanReader(strings.NewReader("show nodes\nquit\n"), &out, "scontrol: ")

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "show nodes", line)
	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "quit", line)
	_, err = r.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "scontrol: scontrol: scontrol: ", out.String())
}

func TestRunLongLineFromStream(t *testing.T) {
	h := newHarness()
	h.ctl.nodes = nodes("n1")
	long := "show node " + strings.Repeat("x", 70000)
	r := NewScanReader(strings.NewReader(long+"\nshow nodes\n"), nil, "")

	require.NoError(t, h.session.Run(context.Background(), r))
	assert.Equal(t, 2, h.ctl.loads[types.KindNode])
	assert.Contains(t, h.out.String(), "not found")
	assert.Contains(t, h.out.String(), "NodeName=n1 ")
}

func TestScanReaderLastLineWithoutNewline(t *testing.T) {
	r := NewScanReader(strings.NewReader("version\r\nshow nodes"), nil, "")

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "version", line)
	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "show nodes", line)
	_, err = r.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestShowRemoteErrorKeepsCache(t *testing.T) {
	h := newHarness()
	h.ctl.nodes = nodes("n1", "n2")
	h.run("show nodes")
	cached := h.session.nodes.Current()
	require.NotNil(t, cached)

	h.reset()
	h.ctl.loadErr = errors.New("Unable to contact slurm controller")
	h.run("show nodes")
	h.run("show node n1")
	assert.Empty(t, h.out.String())
	assert.Equal(t, strings.Repeat("load_nodes error: Unable to contact slurm controller\n", 2), h.errOut.String())
	assert.Same(t, cached, h.session.nodes.Current())

	h.reset()
	h.ctl.loadErr = nil
	h.run("show node n2")
	assert.Contains(t, h.out.String(), "NodeName=n2 ")
	assert.Same(t, cached, h.session.nodes.Current())
}

func TestQuietSuppressesRemoteErrors(t *testing.T) {
	h := newHarness()
	h.ctl.loadErr = errors.New("Unable to contact slurm controller")
	h.ctl.updateErr = errors.New("node n1 not found")
	h.run("quiet")

	h.run("show nodes")
	h.run("update NodeName=n1 State=DOWN")
	h.run("shutdown")
	assert.Empty(t, h.out.String())
	assert.Empty(t, h.errOut.String())
	assert.Equal(t, 1, h.ctl.loads[types.KindNode])
	assert.Len(t, h.ctl.nodeUpdates, 1)

	h.run("verbose")
	h.run("update NodeName=n1 State=DOWN")
	assert.Equal(t, "update_node error: node n1 not found\n", h.errOut.String())
}
