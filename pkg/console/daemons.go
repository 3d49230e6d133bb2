package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cuemby/scontrol/pkg/hostlist"
)

const (
	DaemonController = "slurmctld"
	DaemonNode       = "slurmd"
)

// stripComment drops everything from the first unescaped '#'. An escaped
// "\#" is kept as a literal '#'.
func stripComment(line string) string {
	var b strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '\\' && i+1 < len(line) && line[i+1] == '#' {
			b.WriteByte('#')
			i++
			continue
		}
		if c == '#' {
			break
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isLocal(name, host string) bool {
	return strings.EqualFold(name, host) || strings.EqualFold(name, "localhost")
}

// DetectDaemons reads a slurm.conf and reports which daemons should run on
// host: slurmctld when host is the primary or backup controller, slurmd when
// host appears in any NodeName list.
func DetectDaemons(r io.Reader, host string) ([]string, error) {
	var ctld, slurmd bool

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		for _, tok := range strings.Fields(stripComment(scanner.Text())) {
			key, value, ok := strings.Cut(tok, "=")
			if !ok || value == "" {
				continue
			}
			switch {
			case strings.EqualFold(key, "ControlMachine"), strings.EqualFold(key, "BackupController"):
				if isLocal(value, host) {
					ctld = true
				}
			case strings.EqualFold(key, "NodeName"):
				if slurmd {
					continue
				}
				hl, err := hostlist.Parse(value)
				if err != nil {
					return nil, fmt.Errorf("NodeName=%s: %w", value, err)
				}
				for name := range hl.All() {
					if isLocal(name, host) {
						slurmd = true
						break
					}
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	var daemons []string
	if ctld {
		daemons = append(daemons, DaemonController)
	}
	if slurmd {
		daemons = append(daemons, DaemonNode)
	}
	return daemons, nil
}

func (s *Session) showDaemons() {
	host, err := s.hostname()
	if err != nil {
		s.warnf("unable to determine hostname: %v\n", err)
		return
	}

	f, err := os.Open(s.slurmConf)
	if err != nil {
		s.verbosef("unable to open %s: %v\n", s.slurmConf, err)
		s.warnf("show daemons: %v\n", err)
		return
	}
	defer f.Close()

	daemons, err := DetectDaemons(f, host)
	if err != nil {
		s.warnf("show daemons: %s: %v\n", s.slurmConf, err)
		return
	}
	fmt.Fprintln(s.out, strings.Join(daemons, " "))
}
