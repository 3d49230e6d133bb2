/*
Package types defines the records exchanged between scontrol and slurmctld.

# Records

  - ConfigEntry: one key/value pair of the controller configuration
  - Job: a batch job with its limits, partition and allocated nodes
  - Node: a compute node with its resources and state
  - Partition: a named group of nodes with scheduling policy
  - Step: a job step, identified by job id and step id

# Updates

JobUpdate, NodeUpdate and PartitionUpdate describe mutations. Every numeric
field starts out as a sentinel (NoVal or NoVal16) meaning "leave unchanged";
NewJobUpdate and friends return updates with every field unset. Infinite
marks an unlimited time or node count.

# Node states

Node states form a fixed table. NodeStateNames lists the names in table
order; ParseNodeState matches them case-insensitively.
*/
package types
