package console

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cuemby/scontrol/pkg/types"
)

// Records print as Key=Value pairs so a "show" line can be edited and fed
// back to "update".

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "None"
	}
	return t.Local().Format("01/02-15:04:05")
}

func formatLimit(v uint32) string {
	switch v {
	case types.Infinite:
		return "INFINITE"
	case types.NoVal:
		return "NONE"
	default:
		return strconv.FormatUint(uint64(v), 10)
	}
}

func yesNoString(b bool) string {
	if b {
		return "YES"
	}
	return "NO"
}

func jobShared(v uint16) string {
	switch v {
	case 0:
		return "NO"
	case 1:
		return "YES"
	default:
		return strconv.Itoa(int(v))
	}
}

func renderConfig(w io.Writer, c *types.ConfigEntry) {
	fmt.Fprintf(w, "%-20s = %s\n", c.Key, c.Value)
}

func renderJob(w io.Writer, j *types.Job) {
	fmt.Fprintf(w, "JobId=%d UserId=%d Name=%s JobState=%s\n",
		j.JobID, j.UserID, j.Name, j.State)
	fmt.Fprintf(w, "   Priority=%d Partition=%s TimeLimit=%s\n",
		j.Priority, j.Partition, formatLimit(j.TimeLimit))
	fmt.Fprintf(w, "   StartTime=%s EndTime=%s\n",
		formatTime(j.StartTime), formatTime(j.EndTime))
	fmt.Fprintf(w, "   NodeList=%s ReqNodeList=%s Features=%s\n",
		j.Nodes, j.ReqNodes, j.Features)
	fmt.Fprintf(w, "   ReqProcs=%d MinNodes=%d MinProcs=%d MinMemory=%d MinTmpDisk=%d\n",
		j.NumProcs, j.MinNodes, j.MinProcs, j.MinMemory, j.MinTmpDisk)
	fmt.Fprintf(w, "   Shared=%s Contiguous=%s\n\n",
		jobShared(j.Shared), jobShared(j.Contiguous))
}

func renderNode(w io.Writer, n *types.Node) {
	fmt.Fprintf(w, "NodeName=%s State=%s CPUs=%d RealMemory=%d TmpDisk=%d\n",
		n.Name, n.State, n.CPUs, n.RealMemory, n.TmpDisk)
	fmt.Fprintf(w, "   Weight=%d Partition=%s Features=%s Reason=%s\n\n",
		n.Weight, n.Partition, n.Features, n.Reason)
}

func renderPartition(w io.Writer, p *types.Partition) {
	state := "DOWN"
	if p.StateUp {
		state = "UP"
	}
	fmt.Fprintf(w, "PartitionName=%s TotalNodes=%d TotalCPUs=%d RootOnly=%s\n",
		p.Name, p.TotalNodes, p.TotalCPUs, yesNoString(p.RootOnly))
	fmt.Fprintf(w, "   Default=%s Shared=%s State=%s MaxTime=%s MaxNodes=%s\n",
		yesNoString(p.Default), p.Shared, state, formatLimit(p.MaxTime), formatLimit(p.MaxNodes))
	fmt.Fprintf(w, "   Nodes=%s AllowGroups=%s\n\n", p.Nodes, p.AllowGroups)
}

func renderStep(w io.Writer, s *types.Step) {
	fmt.Fprintf(w, "StepId=%d.%d UserId=%d Partition=%s StartTime=%s Nodes=%s\n",
		s.JobID, s.StepID, s.UserID, s.Partition, formatTime(s.StartTime), s.Nodes)
}
