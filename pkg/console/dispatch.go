package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/cuemby/scontrol/pkg/directive"
	"github.com/cuemby/scontrol/pkg/types"
)

// keyword is one console command. A word selects it when it is a
// case-insensitive prefix of name at least minLen long.
type keyword struct {
	name   string
	minLen int
	run    func(s *Session, ctx context.Context, args []string)
}

var keywords []keyword

func init() {
	keywords = []keyword{
		{name: "abort", minLen: 5, run: (*Session).abort},
		{name: "exit", minLen: 4, run: (*Session).quit},
		{name: "help", minLen: 4, run: (*Session).help},
		{name: "pid2jid", minLen: 7, run: (*Session).pid2jid},
		{name: "quiet", minLen: 5, run: (*Session).quiet},
		{name: "quit", minLen: 4, run: (*Session).quit},
		{name: "reconfigure", minLen: 7, run: (*Session).reconfigure},
		{name: "show", minLen: 4, run: (*Session).show},
		{name: "shutdown", minLen: 5, run: (*Session).shutdown},
		{name: "update", minLen: 6, run: (*Session).update},
		{name: "verbose", minLen: 7, run: (*Session).verbose},
		{name: "version", minLen: 7, run: (*Session).printVersion},
	}
}

// entity is one "show" target
type entity struct {
	name   string
	minLen int
	run    func(s *Session, ctx context.Context, id string)
}

var entities = []entity{
	{name: "config", minLen: 3, run: (*Session).showConfig},
	{name: "daemons", minLen: 5, run: func(s *Session, _ context.Context, _ string) { s.showDaemons() }},
	{name: "jobs", minLen: 3, run: (*Session).showJobs},
	{name: "nodes", minLen: 3, run: (*Session).showNodes},
	{name: "partitions", minLen: 3, run: (*Session).showPartitions},
	{name: "steps", minLen: 4, run: (*Session).showSteps},
}

func matchPrefix(word, name string, minLen int) bool {
	return len(word) >= minLen && len(word) <= len(name) && strings.EqualFold(word, name[:len(word)])
}

// suggest returns the closest candidate within two edits, or ""
func suggest(word string, candidates []string) string {
	best, bestDist := "", 3
	lower := strings.ToLower(word)
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(lower, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// Execute runs one tokenized command. Errors are reported to the user and
// never end the session; only exit and quit do.
func (s *Session) Execute(ctx context.Context, words []string) {
	if len(words) == 0 {
		s.verbosef("no input\n")
		return
	}

	for _, kw := range keywords {
		if matchPrefix(words[0], kw.name, kw.minLen) {
			s.logger.Debug().Str("keyword", kw.name).Int("args", len(words)-1).Msg("executing")
			kw.run(s, ctx, words[1:])
			return
		}
	}

	names := make([]string, len(keywords))
	for i, kw := range keywords {
		names[i] = kw.name
	}
	if hint := suggest(words[0], names); hint != "" {
		fmt.Fprintf(s.errOut, "invalid keyword: %s (did you mean %q?)\n", words[0], hint)
		return
	}
	fmt.Fprintf(s.errOut, "invalid keyword: %s\n", words[0])
}

// ExecuteLine tokenizes and runs one input line. Only the tokenizer's word
// limit produces an error, and that error ends the session.
func (s *Session) ExecuteLine(ctx context.Context, line string) error {
	words, err := s.tokenizer.Tokenize(line)
	if err != nil {
		fmt.Fprintf(s.errOut, "%s: %v\n", s.name, err)
		return err
	}
	s.Execute(ctx, words)
	return nil
}

// ExecuteArgs runs a command given as process arguments
func (s *Session) ExecuteArgs(ctx context.Context, args []string) error {
	if err := s.tokenizer.Check(args); err != nil {
		fmt.Fprintf(s.errOut, "%s: %v\n", s.name, err)
		return err
	}
	s.Execute(ctx, args)
	return nil
}

func (s *Session) tooMany(word string) {
	fmt.Fprintf(s.errOut, "too many arguments for keyword:%s\n", word)
}

func (s *Session) abort(ctx context.Context, args []string) {
	if len(args) > 1 {
		s.tooMany("abort")
	}
	if err := s.ctl.Shutdown(ctx, true); err != nil {
		s.remoteError("shutdown", err)
	}
}

func (s *Session) shutdown(ctx context.Context, args []string) {
	if len(args) > 1 {
		s.tooMany("shutdown")
	}
	if err := s.ctl.Shutdown(ctx, false); err != nil {
		s.remoteError("shutdown", err)
	}
}

func (s *Session) reconfigure(ctx context.Context, args []string) {
	if len(args) > 1 {
		s.tooMany("reconfigure")
	}
	if err := s.ctl.Reconfigure(ctx); err != nil {
		s.remoteError("reconfigure", err)
	}
}

func (s *Session) quit(_ context.Context, args []string) {
	if len(args) > 0 {
		s.tooMany("exit")
	}
	s.exit = true
}

func (s *Session) quiet(_ context.Context, args []string) {
	if len(args) > 0 {
		s.tooMany("quiet")
	}
	s.verbosity = Quiet
}

func (s *Session) verbose(_ context.Context, args []string) {
	if len(args) > 0 {
		s.tooMany("verbose")
	}
	s.verbosity = Verbose
}

func (s *Session) printVersion(_ context.Context, args []string) {
	if len(args) > 0 {
		s.tooMany("version")
	}
	fmt.Fprintf(s.out, "%s Version %s\n", s.name, s.version)
}

func (s *Session) help(_ context.Context, args []string) {
	if len(args) > 0 {
		s.tooMany("help")
	}
	Usage(s.out, s.name)
}

func (s *Session) pid2jid(ctx context.Context, args []string) {
	switch {
	case len(args) > 1:
		s.tooMany("pid2jid")
		return
	case len(args) < 1:
		Usage(s.out, s.name)
		return
	}

	pid, err := strconv.ParseInt(args[0], 10, 32)
	if err != nil || pid <= 0 {
		s.warnf("Invalid process id specified: %s\n", args[0])
		return
	}
	jobID, err := s.ctl.PidToJobID(ctx, int32(pid))
	if err != nil {
		s.remoteError("pid2jobid", err)
		return
	}
	fmt.Fprintf(s.out, "Slurm job id: %d\n", jobID)
}

func (s *Session) show(ctx context.Context, args []string) {
	switch {
	case len(args) > 2:
		s.warnf("too many arguments for keyword:show\n")
		return
	case len(args) < 1:
		s.warnf("too few arguments for keyword:show\n")
		return
	}

	var id string
	if len(args) > 1 {
		id = args[1]
	}
	for _, e := range entities {
		if matchPrefix(args[0], e.name, e.minLen) {
			if e.name == "daemons" && id != "" {
				s.warnf("too many arguments for keyword:show\n")
			}
			e.run(s, ctx, id)
			return
		}
	}
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = e.name
	}
	if hint := suggest(args[0], names); hint != "" {
		s.warnf("invalid entity:%s for keyword:show (did you mean %q?)\n", args[0], hint)
		return
	}
	s.warnf("invalid entity:%s for keyword:show\n", args[0])
}

func (s *Session) update(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintf(s.errOut, "too few arguments for update keyword\n")
		return
	}

	d, err := directive.Compile(args)
	if err != nil {
		var tokErr *directive.TokenError
		switch {
		case errors.Is(err, directive.ErrNoEntity):
			fmt.Fprintf(s.out, "No valid entity in update command\n")
			fmt.Fprintf(s.out, "Input line must include %s\n", quoteList(directive.Anchors()))
		case errors.As(err, &tokErr):
			fmt.Fprintf(s.errOut, "Invalid input: %s\n", tokErr.Token)
			fmt.Fprintf(s.errOut, "Request aborted\n")
			if len(tokErr.Valid) > 0 {
				fmt.Fprintf(s.errOut, "Valid %s values are: %s\n", tokErr.Field, strings.Join(tokErr.Valid, " "))
			}
		default:
			fmt.Fprintf(s.errOut, "update: %v\n", err)
		}
		return
	}

	var op string
	switch d.Kind {
	case types.KindJob:
		op, err = "update_job", s.ctl.UpdateJob(ctx, d.Job)
	case types.KindNode:
		op, err = "update_node", s.ctl.UpdateNode(ctx, d.Node)
	case types.KindPartition:
		op, err = "update_partition", s.ctl.UpdatePartition(ctx, d.Partition)
	}
	if err != nil {
		s.remoteError(op, err)
		return
	}
	s.logger.Debug().Str("op", op).Msg("update accepted")
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = strconv.Quote(item)
	}
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + ", or " + quoted[len(quoted)-1]
}
