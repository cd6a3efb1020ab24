package replication

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// EtcdLog's network paths (Start/Append/Subscribe against a live cluster)
// are exercised in integration tests against a real etcd instance, not
// here. These cover the pure helpers that are easy to get subtly wrong.

func TestEndpointsFromPrefersExplicitEndpoints(t *testing.T) {
	cfg := Config{
		Endpoints: []string{"etcd-1:2379"},
		Servers:   map[string]ServerSpec{"a": {Host: "etcd-2", QuorumPort: 2379}},
	}

	assert.Equal(t, []string{"etcd-1:2379"}, endpointsFrom(cfg))
}

func TestEndpointsFromDerivesFromServers(t *testing.T) {
	cfg := Config{
		Servers: map[string]ServerSpec{
			"b": {Host: "replica-b", QuorumPort: 2379},
			"a": {Host: "replica-a", QuorumPort: 2379},
		},
	}

	assert.Equal(t, []string{"replica-a:2379", "replica-b:2379"}, endpointsFrom(cfg))
}

func TestParseSeqRoundTrip(t *testing.T) {
	assert.Equal(t, int64(42), parseSeq([]byte("42")))
	assert.Equal(t, int64(0), parseSeq([]byte("0")))
}

func TestLogKeyIsLexicographicallyOrdered(t *testing.T) {
	assert.Less(t, logKey(9), logKey(10))
	assert.Less(t, logKey(999), logKey(1000))
}
