package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"
)

// LineReader supplies interactive input one line at a time. ReadLine returns
// io.EOF when input is exhausted.
type LineReader interface {
	ReadLine() (string, error)
	Close() error
}

// ScanReader reads lines from a plain stream, printing prompt before each.
// Lines may be of any length.
type ScanReader struct {
	in     *bufio.Reader
	out    io.Writer
	prompt string
	done   bool
}

// NewScanReader returns a reader for non-terminal input
func NewScanReader(in io.Reader, out io.Writer, prompt string) *ScanReader {
	return &ScanReader{in: bufio.NewReader(in), out: out, prompt: prompt}
}

// ReadLine returns the next line without its line ending. A last line with
// no newline is returned before io.EOF.
func (r *ScanReader) ReadLine() (string, error) {
	if r.done {
		return "", io.EOF
	}
	if r.out != nil && r.prompt != "" {
		fmt.Fprint(r.out, r.prompt)
	}
	line, err := r.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		r.done = true
		if line == "" {
			return "", io.EOF
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (r *ScanReader) Close() error { return nil }

// TerminalReader is a line editor with history for interactive terminals
type TerminalReader struct {
	rl *readline.Instance
}

// NewTerminalReader opens a line editor. historyFile may be empty.
func NewTerminalReader(prompt, historyFile string) (*TerminalReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdin:           os.Stdin,
		Stdout:          os.Stdout,
		Stderr:          os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("readline: %w", err)
	}
	return &TerminalReader{rl: rl}, nil
}

// ReadLine treats Ctrl-C as an empty line so the session continues
func (r *TerminalReader) ReadLine() (string, error) {
	line, err := r.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", nil
	}
	return line, err
}

func (r *TerminalReader) Close() error { return r.rl.Close() }

// NewLineReader picks the line editor when stdin is a terminal and a plain
// scanner otherwise
func NewLineReader(prompt, historyFile string) (LineReader, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return NewTerminalReader(prompt, historyFile)
	}
	return NewScanReader(os.Stdin, os.Stdout, prompt), nil
}

// Run reads and executes commands until exit, end of input, or a fatal
// tokenizer error. End of input is a normal termination.
func (s *Session) Run(ctx context.Context, r LineReader) error {
	for !s.exit {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		if err := s.ExecuteLine(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

// Usage prints the command summary
func Usage(w io.Writer, name string) {
	fmt.Fprintf(w, `%s [<OPTION>] [<COMMAND>]
    Valid <OPTION> values are:
     -h or -help: equivalent to "help" command
     -q or quiet: equivalent to "quiet" command
     -v or verbose: equivalent to "verbose" command

  <keyword> may be omitted from the execute line and %s will execute
  in interactive mode. It will process commands as entered until explicitly
  terminated.

    Valid <COMMAND> values are:
     abort                    shutdown slurm controller immediately
                              generating a core file.
     exit                     terminate this command.
     help                     print this description of use.
     pid2jid <process_id>     return slurm job id for given pid.
     quiet                    print no messages other than error messages.
     quit                     terminate this command.
     reconfigure              re-read configuration files.
     show <ENTITY> [<ID>]     display state of identified entity, default
                              is all records.
     shutdown                 shutdown slurm controller.
     update <SPECIFICATIONS>  update job, node or partition configuration.
     verbose                  enable detailed logging.
     version                  display tool version number.
     !!                       Repeat the last command entered.

  <ENTITY> may be "config", "daemons", "job", "node", "partition" or "step".

  <ID> may be a configuration parameter name, job id, node name, partition
       name or job step id.

  Node names may be specified using simple range expressions,
  (e.g. "lx[10-20]" corresponds to lx10, lx11, lx12, ...)

  <SPECIFICATIONS> are specified in the same format as the configuration
  file. You may wish to use the "show" keyword then use its output as
  input for the update keyword, editing as needed.

  All commands and options are case-insensitive, although node names and
  partition names tests are case-sensitive (node names "LX" and "lx"
  are distinct).
`, name, name)
}
