package directive

import (
	"errors"
	"strconv"
	"strings"

	"github.com/cuemby/scontrol/pkg/types"
)

var errCoerce = errors.New("value rejected")

// field is one row of a grammar table. valid is shown to the user when set
// rejects a value, so enumerated fields build both from the same list.
type field[T any] struct {
	key   string
	set   func(msg *T, value string) error
	valid []string
}

type grammar[T any] struct {
	anchor string
	fields []field[T]
}

func (g *grammar[T]) lookup(key string) *field[T] {
	for i := range g.fields {
		if strings.EqualFold(g.fields[i].key, key) {
			return &g.fields[i]
		}
	}
	return nil
}

func (g *grammar[T]) keys() []string {
	keys := make([]string, len(g.fields))
	for i, f := range g.fields {
		keys[i] = f.key
	}
	return keys
}

func (g *grammar[T]) compile(msg *T, tokens []string) error {
	for _, tok := range tokens {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			return &TokenError{Token: tok}
		}
		f := g.lookup(key)
		if f == nil {
			return &TokenError{Token: tok}
		}
		if err := f.set(msg, value); err != nil {
			return &TokenError{Token: tok, Field: f.key, Valid: f.valid}
		}
	}
	return nil
}

// parseCount parses a base-10 count. An empty value leaves the field unset.
func parseCount(value string) (uint32, error) {
	if value == "" {
		return types.NoVal, nil
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil || uint32(n) >= types.NoVal {
		return 0, errCoerce
	}
	return uint32(n), nil
}

func requiredString[T any](key string, set func(*T, string)) field[T] {
	return field[T]{key: key, set: func(msg *T, value string) error {
		if value == "" {
			return errCoerce
		}
		set(msg, value)
		return nil
	}}
}

func stringField[T any](key string, set func(*T, string)) field[T] {
	return field[T]{key: key, set: func(msg *T, value string) error {
		set(msg, value)
		return nil
	}}
}

func countField[T any](key string, set func(*T, uint32)) field[T] {
	return field[T]{key: key, set: func(msg *T, value string) error {
		n, err := parseCount(value)
		if err != nil {
			return err
		}
		set(msg, n)
		return nil
	}}
}

// limitField accepts INFINITE for the no-limit sentinel
func limitField[T any](key string, set func(*T, uint32)) field[T] {
	return field[T]{key: key, set: func(msg *T, value string) error {
		if strings.EqualFold(value, "INFINITE") {
			set(msg, types.Infinite)
			return nil
		}
		n, err := parseCount(value)
		if err != nil {
			return err
		}
		set(msg, n)
		return nil
	}}
}

// enumField maps a case-insensitive name to its index in names
func enumField[T any](key string, names []string, set func(*T, uint16)) field[T] {
	return field[T]{key: key, valid: names, set: func(msg *T, value string) error {
		for i, name := range names {
			if strings.EqualFold(name, value) {
				set(msg, uint16(i))
				return nil
			}
		}
		return errCoerce
	}}
}

var yesNo = []string{"NO", "YES"}

// levelField accepts YES/NO or a raw sharing level
func levelField[T any](key string, set func(*T, uint16)) field[T] {
	f := enumField(key, yesNo, set)
	enum := f.set
	f.set = func(msg *T, value string) error {
		if enum(msg, value) == nil {
			return nil
		}
		n, err := strconv.ParseUint(value, 10, 16)
		if err != nil || uint16(n) >= types.NoVal16 {
			return errCoerce
		}
		set(msg, uint16(n))
		return nil
	}
	return f
}

var jobGrammar = grammar[types.JobUpdate]{
	anchor: "JobId",
	fields: []field[types.JobUpdate]{
		{key: "JobId", set: func(m *types.JobUpdate, v string) error {
			n, err := parseCount(v)
			if err != nil || n == types.NoVal {
				return errCoerce
			}
			m.JobID = n
			return nil
		}},
		countField("TimeLimit", func(m *types.JobUpdate, v uint32) { m.TimeLimit = v }),
		countField("Priority", func(m *types.JobUpdate, v uint32) { m.Priority = v }),
		countField("ReqProcs", func(m *types.JobUpdate, v uint32) { m.NumProcs = v }),
		countField("MinNodes", func(m *types.JobUpdate, v uint32) { m.MinNodes = v }),
		countField("MinProcs", func(m *types.JobUpdate, v uint32) { m.MinProcs = v }),
		countField("MinMemory", func(m *types.JobUpdate, v uint32) { m.MinMemory = v }),
		countField("MinTmpDisk", func(m *types.JobUpdate, v uint32) { m.MinTmpDisk = v }),
		stringField("Partition", func(m *types.JobUpdate, v string) { m.Partition = v }),
		stringField("Name", func(m *types.JobUpdate, v string) { m.Name = v }),
		levelField("Shared", func(m *types.JobUpdate, v uint16) { m.Shared = v }),
		enumField("Contiguous", yesNo, func(m *types.JobUpdate, v uint16) { m.Contiguous = v }),
		stringField("ReqNodeList", func(m *types.JobUpdate, v string) { m.ReqNodes = v }),
		stringField("Features", func(m *types.JobUpdate, v string) { m.Features = v }),
	},
}

var nodeGrammar = grammar[types.NodeUpdate]{
	anchor: "NodeName",
	fields: []field[types.NodeUpdate]{
		requiredString("NodeName", func(m *types.NodeUpdate, v string) { m.NodeNames = v }),
		enumField("State", types.NodeStateNames(), func(m *types.NodeUpdate, v uint16) { m.State = v }),
	},
}

var partitionGrammar = grammar[types.PartitionUpdate]{
	anchor: "PartitionName",
	fields: []field[types.PartitionUpdate]{
		requiredString("PartitionName", func(m *types.PartitionUpdate, v string) { m.Name = v }),
		limitField("MaxTime", func(m *types.PartitionUpdate, v uint32) { m.MaxTime = v }),
		limitField("MaxNodes", func(m *types.PartitionUpdate, v uint32) { m.MaxNodes = v }),
		enumField("Default", yesNo, func(m *types.PartitionUpdate, v uint16) { m.Default = v }),
		enumField("RootOnly", yesNo, func(m *types.PartitionUpdate, v uint16) { m.RootOnly = v }),
		enumField("Shared", types.PartitionSharedNames(), func(m *types.PartitionUpdate, v uint16) { m.Shared = v }),
		enumField("State", []string{"DOWN", "UP"}, func(m *types.PartitionUpdate, v uint16) { m.StateUp = v }),
		stringField("Nodes", func(m *types.PartitionUpdate, v string) { m.Nodes = v }),
		stringField("AllowGroups", func(m *types.PartitionUpdate, v string) { m.AllowGroups = v }),
	},
}
