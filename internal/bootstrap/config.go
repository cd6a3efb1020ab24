// Package bootstrap wires C1-C8 together into a running dogmad process:
// configuration loading, connection hubs, component construction, and the
// ambient admin HTTP surface (SPEC_FULL.md §10.4/§10.6). Grounded on the
// teacher's bootstrap.InitServers / Server.Run(*pkg.Launcher) split.
package bootstrap

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/opendogma/dogma/common"
	"github.com/opendogma/dogma/internal/replication"
)

const ApplicationName = "dogmad"

// Config is the top level configuration for the whole process: the
// replication, repository-worker, mirroring and session options plus the
// connection strings the domain stack (§11) needs. Cache sizing is a plain
// SessionCacheSize; there are no cache spec strings.
type Config struct {
	EnvName  string `env:"ENV_NAME" envDefault:"local"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	OtelServiceName    string `env:"OTEL_RESOURCE_SERVICE_NAME" envDefault:"dogmad"`
	OtelLibraryName    string `env:"OTEL_LIBRARY_NAME" envDefault:"dogmad"`
	OtelServiceVersion string `env:"OTEL_RESOURCE_SERVICE_VERSION"`

	ServerAddress string `env:"SERVER_ADDRESS" envDefault:":36462"`

	// DataDir is the storage root (spec.md §6, required).
	DataDir string `env:"DATA_DIR"`

	// Replication (spec.md §6 "replication" block).
	ReplicationMethod        string `env:"REPLICATION_METHOD" envDefault:"NONE"`
	ReplicationServerID      string `env:"REPLICATION_SERVER_ID"`
	ReplicationZone          string `env:"REPLICATION_ZONE"`
	ReplicationServersJSON   string `env:"REPLICATION_SERVERS"`
	ReplicationSecret        string `env:"REPLICATION_SECRET"`
	ReplicationTimeoutMillis int64  `env:"REPLICATION_TIMEOUT_MILLIS" envDefault:"10000"`
	ReplicationMaxLogCount   int64  `env:"REPLICATION_MAX_LOG_COUNT" envDefault:"1024"`
	ReplicationMinLogAgeDays int64  `env:"REPLICATION_MIN_LOG_AGE_DAYS" envDefault:"1"`
	EtcdEndpointsJSON        string `env:"ETCD_ENDPOINTS"`

	NumRepositoryWorkers         int64 `env:"NUM_REPOSITORY_WORKERS" envDefault:"16"`
	MaxRemovedRepositoryAgeDays  int64 `env:"MAX_REMOVED_REPOSITORY_AGE_DAYS" envDefault:"7"`

	MirroringEnabled     bool  `env:"MIRRORING_ENABLED" envDefault:"true"`
	NumMirroringThreads  int64 `env:"NUM_MIRRORING_THREADS" envDefault:"16"`
	MaxNumFilesPerMirror int64 `env:"MAX_NUM_FILES_PER_MIRROR" envDefault:"8192"`
	MaxNumBytesPerMirror int64 `env:"MAX_NUM_BYTES_PER_MIRROR" envDefault:"33554432"`

	SessionsEnabled           bool   `env:"SESSIONS_ENABLED" envDefault:"true"`
	SessionTimeoutMillis      int64  `env:"SESSION_TIMEOUT_MILLIS" envDefault:"28800000"`
	SessionCacheSize          int64  `env:"SESSION_CACHE_SIZE" envDefault:"8192"`
	SessionValidationSchedule string `env:"SESSION_VALIDATION_SCHEDULE" envDefault:"30 */4 * * *"`

	PostgresHost     string `env:"POSTGRES_HOST"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresDBName   string `env:"POSTGRES_DB_NAME" envDefault:"dogma"`

	RedisAddr string `env:"REDIS_ADDR"`

	MongoDBHost     string `env:"MONGO_HOST"`
	MongoDBPort     string `env:"MONGO_PORT" envDefault:"27017"`
	MongoDBUser     string `env:"MONGO_USER"`
	MongoDBPassword string `env:"MONGO_PASSWORD"`
	MongoDBName     string `env:"MONGO_NAME" envDefault:"dogma"`
}

// replicationServers parses ReplicationServersJSON, a JSON object of
// id -> {host, quorumPort, electionPort, apiPort}. Left unset, a single
// replica runs in standalone mode with no cluster to parse.
func (c *Config) replicationServers() (map[string]replication.ServerSpec, error) {
	if c.ReplicationServersJSON == "" {
		return nil, nil
	}

	var raw map[string]struct {
		Host         string `json:"host"`
		QuorumPort   int    `json:"quorumPort"`
		ElectionPort int    `json:"electionPort"`
		APIPort      int    `json:"apiPort"`
	}

	if err := json.Unmarshal([]byte(c.ReplicationServersJSON), &raw); err != nil {
		return nil, errors.Wrap(err, "parsing REPLICATION_SERVERS")
	}

	servers := make(map[string]replication.ServerSpec, len(raw))
	for id, s := range raw {
		servers[id] = replication.ServerSpec{
			Host: s.Host, QuorumPort: s.QuorumPort, ElectionPort: s.ElectionPort, APIPort: s.APIPort,
		}
	}

	return servers, nil
}

// etcdEndpoints parses ETCD_ENDPOINTS, a JSON array of client URLs.
func (c *Config) etcdEndpoints() ([]string, error) {
	if c.EtcdEndpointsJSON == "" {
		return nil, nil
	}

	var endpoints []string
	if err := json.Unmarshal([]byte(c.EtcdEndpointsJSON), &endpoints); err != nil {
		return nil, errors.Wrap(err, "parsing ETCD_ENDPOINTS")
	}

	return endpoints, nil
}

func (c *Config) postgresConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDBName)
}

func (c *Config) mongoConnectionString() string {
	if c.MongoDBUser == "" {
		return fmt.Sprintf("mongodb://%s:%s", c.MongoDBHost, c.MongoDBPort)
	}

	return fmt.Sprintf("mongodb://%s:%s@%s:%s", c.MongoDBUser, c.MongoDBPassword, c.MongoDBHost, c.MongoDBPort)
}

// LoadConfig loads .env (local/dev only) and populates Config from the
// environment, the same two-step the teacher's main.go does via
// common.InitLocalEnvConfig + common.SetConfigFromEnvVars.
func LoadConfig() (*Config, error) {
	common.InitLocalEnvConfig()

	cfg := &Config{}
	if err := common.SetConfigFromEnvVars(cfg); err != nil {
		return nil, errors.Wrap(err, "loading configuration")
	}

	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}

	return cfg, nil
}
