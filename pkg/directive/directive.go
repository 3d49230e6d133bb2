// Package directive compiles "Key=Value" tokens into typed update requests
// for jobs, nodes and partitions.
//
// The first token naming an entity (JobId=, NodeName= or PartitionName=)
// selects the grammar for the whole directive. Every token is then checked
// against that grammar's field table; a single bad token rejects the whole
// directive so a partial update is never produced.
package directive

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cuemby/scontrol/pkg/types"
)

// ErrNoEntity is returned when no token names an entity to update
var ErrNoEntity = errors.New("no valid entity in update command")

// TokenError reports the token that stopped compilation
type TokenError struct {
	Token string
	// Field is the matched field key, empty when no field matched
	Field string
	// Valid lists the accepted values for enumerated fields
	Valid []string
}

func (e *TokenError) Error() string {
	if len(e.Valid) > 0 {
		return fmt.Sprintf("invalid input: %s (valid %s values are %s)",
			e.Token, e.Field, strings.Join(e.Valid, ", "))
	}
	return fmt.Sprintf("invalid input: %s", e.Token)
}

// Directive is a fully validated update for exactly one entity kind. Only
// the member matching Kind is set.
type Directive struct {
	Kind      types.Kind
	Job       *types.JobUpdate
	Node      *types.NodeUpdate
	Partition *types.PartitionUpdate
}

// Compile turns update tokens into a directive
func Compile(tokens []string) (*Directive, error) {
	for _, tok := range tokens {
		key, _, ok := strings.Cut(tok, "=")
		if !ok {
			continue
		}
		switch {
		case strings.EqualFold(key, jobGrammar.anchor):
			msg := types.NewJobUpdate()
			if err := jobGrammar.compile(msg, tokens); err != nil {
				return nil, err
			}
			return &Directive{Kind: types.KindJob, Job: msg}, nil
		case strings.EqualFold(key, nodeGrammar.anchor):
			msg := types.NewNodeUpdate()
			if err := nodeGrammar.compile(msg, tokens); err != nil {
				return nil, err
			}
			return &Directive{Kind: types.KindNode, Node: msg}, nil
		case strings.EqualFold(key, partitionGrammar.anchor):
			msg := types.NewPartitionUpdate()
			if err := partitionGrammar.compile(msg, tokens); err != nil {
				return nil, err
			}
			return &Directive{Kind: types.KindPartition, Partition: msg}, nil
		}
	}
	return nil, ErrNoEntity
}

// Anchors returns the keys that select a grammar
func Anchors() []string {
	return []string{nodeGrammar.anchor, partitionGrammar.anchor, jobGrammar.anchor}
}

// Fields returns the accepted keys for the grammar of kind, in table order
func Fields(kind types.Kind) []string {
	switch kind {
	case types.KindJob:
		return jobGrammar.keys()
	case types.KindNode:
		return nodeGrammar.keys()
	case types.KindPartition:
		return partitionGrammar.keys()
	}
	return nil
}
