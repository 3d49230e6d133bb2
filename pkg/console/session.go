package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cuemby/scontrol/pkg/log"
	"github.com/cuemby/scontrol/pkg/snapshot"
	"github.com/cuemby/scontrol/pkg/types"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// Controller is the remote resource manager the console talks to. Every
// call blocks until the controller answers or fails.
type Controller interface {
	LoadConfig(ctx context.Context, since time.Time) (snapshot.Response[types.ConfigEntry], error)
	LoadJobs(ctx context.Context, since time.Time) (snapshot.Response[types.Job], error)
	LoadNodes(ctx context.Context, since time.Time) (snapshot.Response[types.Node], error)
	LoadPartitions(ctx context.Context, since time.Time) (snapshot.Response[types.Partition], error)
	LoadSteps(ctx context.Context, since time.Time, filter types.StepFilter) (snapshot.Response[types.Step], error)

	UpdateJob(ctx context.Context, update *types.JobUpdate) error
	UpdateNode(ctx context.Context, update *types.NodeUpdate) error
	UpdatePartition(ctx context.Context, update *types.PartitionUpdate) error

	Shutdown(ctx context.Context, coreDump bool) error
	Reconfigure(ctx context.Context) error
	PidToJobID(ctx context.Context, pid int32) (uint32, error)
}

// Verbosity is the session-wide message level
type Verbosity int

const (
	Normal Verbosity = iota
	Quiet
	Verbose
)

func (v Verbosity) String() string {
	switch v {
	case Quiet:
		return "quiet"
	case Verbose:
		return "verbose"
	default:
		return "normal"
	}
}

// Options configures a Session
type Options struct {
	Name      string
	Version   string
	Out       io.Writer
	Err       io.Writer
	Verbosity Verbosity
	// SlurmConf is the cluster config file read by "show daemons"
	SlurmConf string
	Hostname  func() (string, error)
}

// Session owns all console state: snapshot caches, the node lookup cursor,
// verbosity and the exit flag. It is driven by a single goroutine.
type Session struct {
	ctl       Controller
	name      string
	version   string
	out       io.Writer
	errOut    io.Writer
	verbosity Verbosity
	exit      bool
	slurmConf string
	hostname  func() (string, error)
	logger    zerolog.Logger

	tokenizer *Tokenizer

	config     snapshot.Cache[types.ConfigEntry]
	jobs       snapshot.Cache[types.Job]
	nodes      snapshot.Cache[types.Node]
	partitions snapshot.Cache[types.Partition]
	steps      snapshot.Cache[types.Step]
	stepFilter types.StepFilter

	cursors map[types.Kind]int
}

// NewSession creates a session bound to ctl
func NewSession(ctl Controller, opts Options) *Session {
	s := &Session{
		ctl:       ctl,
		name:      opts.Name,
		version:   opts.Version,
		out:       opts.Out,
		errOut:    opts.Err,
		verbosity: opts.Verbosity,
		slurmConf: opts.SlurmConf,
		hostname:  opts.Hostname,
		logger:    log.WithComponent("console"),
		tokenizer: NewTokenizer(MaxInputFields),
		cursors:   make(map[types.Kind]int),
	}
	if s.name == "" {
		s.name = "scontrol"
	}
	if s.out == nil {
		s.out = os.Stdout
	}
	if s.errOut == nil {
		s.errOut = os.Stderr
	}
	if s.hostname == nil {
		s.hostname = os.Hostname
	}
	return s
}

// Verbosity returns the current message level
func (s *Session) Verbosity() Verbosity {
	return s.verbosity
}

// SetVerbosity changes the message level
func (s *Session) SetVerbosity(v Verbosity) {
	s.verbosity = v
}

// Exited reports whether exit or quit was requested
func (s *Session) Exited() bool {
	return s.exit
}

// Cursor returns the rotating lookup start for kind
func (s *Session) Cursor(kind types.Kind) int {
	return s.cursors[kind]
}

func (s *Session) verbosef(format string, args ...any) {
	if s.verbosity == Verbose {
		fmt.Fprintf(s.out, format, args...)
	}
}

// notef prints to stdout unless the session is quiet
func (s *Session) notef(format string, args ...any) {
	if s.verbosity != Quiet {
		fmt.Fprintf(s.out, format, args...)
	}
}

// warnf prints to stderr unless the session is quiet
func (s *Session) warnf(format string, args ...any) {
	if s.verbosity != Quiet {
		fmt.Fprintf(s.errOut, format, args...)
	}
}

// remoteError reports a controller failure using its own reason text
func (s *Session) remoteError(op string, err error) {
	s.logger.Debug().Err(err).Str("op", op).Msg("controller call failed")
	s.warnf("%s error: %v\n", op, err)
}

// refresh brings cache up to date and prints the verbose freshness line.
// It returns false when nothing may be displayed.
func refresh[T any](ctx context.Context, s *Session, op string, cache *snapshot.Cache[T], load snapshot.Loader[T]) (*snapshot.Snapshot[T], bool) {
	snap, unchanged, err := cache.Refresh(ctx, load)
	if err != nil {
		s.remoteError(op, err)
		return nil, false
	}

	s.logger.Debug().
		Str("op", op).
		Bool("unchanged", unchanged).
		Time("last_update", snap.LastUpdate).
		Int("records", snap.Len()).
		Msg("snapshot refreshed")

	if unchanged {
		s.verbosef("%s no change in data\n", op)
	}
	s.verbosef("last_update_time=%s (%s), records=%d\n",
		formatTime(snap.LastUpdate), humanize.Time(snap.LastUpdate), snap.Len())
	return snap, true
}
