/*
Package session orchestrates conversation turns for hosts.

A Manager serializes access to each chat with a reference-counted local lock,
optionally backed by a ports.DistributedLocker for multi-replica deployments,
and persists the RunState through a ports.StateStore before and after every
turn. An unfinished run found in the store is resumed instead of replaced.
*/
package session
