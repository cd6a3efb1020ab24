// Package replication implements the replication log (C5): a durable,
// totally-ordered, gap-free sequence of commands backed by a quorum
// service, plus the leader-election and catch-up protocol that makes
// every replica converge on the same state (spec.md §4.5).
package replication

import (
	"context"
	"time"

	"github.com/opendogma/dogma/internal/command"
)

// Entry is one committed log entry (spec.md §3 ReplicationLog entry).
type Entry struct {
	Seq       int64
	Committed time.Time
	Command   command.Command
}

// Role is this replica's current position in the FOLLOWER/LEADER state
// machine of spec.md §4.5.
type Role int

const (
	RoleFollower Role = iota
	RoleLeader
)

func (r Role) String() string {
	if r == RoleLeader {
		return "LEADER"
	}

	return "FOLLOWER"
}

// LeadershipListener fires exactly once per transition (spec.md §4.5
// "Callbacks fire exactly once per transition").
type LeadershipListener interface {
	OnTakeLeadership()
	OnReleaseLeadership()
}

// ZoneLeadershipListener is the zone-scoped variant, fired only for
// replicas that belong to a configured zone (spec.md §4.5 Zones).
type ZoneLeadershipListener interface {
	OnTakeZoneLeadership(zone string)
	OnReleaseZoneLeadership(zone string)
}

// Log is the capability the replicated executor (C6) and the mirroring
// scheduler (C7) depend on. Append is only ever legal on the current
// leader; everything else is safe from any replica.
//
//go:generate mockgen --destination=replicationmock/log_mock.go --package=replicationmock . Log
type Log interface {
	// Append proposes cmd as the next log entry and blocks until it
	// commits (spec.md §4.5 Append protocol). Fails with
	// common.ErrNotLeader if this replica isn't currently leader, or
	// common.ErrReplicationTimeout if quorum isn't reached within the
	// configured commit timeout.
	Append(ctx context.Context, cmd command.Command) (Entry, error)

	// Subscribe returns committed entries with Seq > after, replayed in
	// order, plus a cancel func. Used by the apply loop and by catch-up.
	Subscribe(after int64) (entries <-chan Entry, cancel func())

	// IsLeader reports whether this replica currently holds global
	// leadership.
	IsLeader() bool

	// Leader returns the current leader's replica ID, if known.
	Leader() (replicaID string, ok bool)

	// IsZoneLeader reports whether this replica leads zone (spec.md §4.5
	// Zones). EtcdLog reports false when zones aren't configured;
	// StandaloneLog reports true for every zone.
	IsZoneLeader(zone string) bool

	// OnLeadership registers a LeadershipListener.
	OnLeadership(l LeadershipListener)

	// OnZoneLeadership registers a ZoneLeadershipListener.
	OnZoneLeadership(l ZoneLeadershipListener)

	// Start begins participating in election and, if config.Method is
	// QUORUM, connects to the backing quorum service. Standalone mode
	// (config.Method == MethodNone) makes this replica permanent leader
	// of a single-member log with no external dependency (spec.md §2 "a
	// degenerate 'standalone' mode skips the log entirely").
	Start(ctx context.Context) error

	// Stop releases leadership (if held) and disconnects.
	Stop(ctx context.Context) error
}

// Method selects the replication backend (spec.md §6 Configuration).
type Method string

const (
	MethodNone    Method = "NONE"
	MethodQuorum  Method = "QUORUM"
)

// ServerSpec is one cluster member's network identity.
type ServerSpec struct {
	Host         string
	QuorumPort   int
	ElectionPort int
	// APIPort is where this member's replicated executor (C6) listens for
	// command-forwarding requests from followers (spec.md §4.6).
	APIPort int
}

// Config mirrors spec.md §6's `replication` block.
type Config struct {
	Method          Method
	ReplicaID       string
	Zone            string
	Servers         map[string]ServerSpec
	Secret          string
	CommitTimeout   time.Duration
	MaxLogCount     int64
	MinLogAge       time.Duration
	// Endpoints is the quorum backend's client endpoints (etcd
	// client URLs), derived from Servers when unset.
	Endpoints []string
}

// DefaultConfig fills in spec.md §6's defaults.
func DefaultConfig() Config {
	return Config{
		Method:        MethodNone,
		CommitTimeout: 10 * time.Second,
		MaxLogCount:   1024,
		MinLogAge:     24 * time.Hour,
	}
}
