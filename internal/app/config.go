package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/simgraph/internal/dataset"
	"github.com/yungbote/simgraph/internal/gate"
	"github.com/yungbote/simgraph/internal/ingest"
	"github.com/yungbote/simgraph/internal/platform/envutil"
	"github.com/yungbote/simgraph/internal/platform/neo4jdb"
	"github.com/yungbote/simgraph/internal/similarity"
)

const (
	defaultDataset  = "http://dropbox.jobtome.com/data/samples/job_graph_matrix.csv"
	defaultClusters = 22
)

type Config struct {
	Env        string           `yaml:"env"`
	LogMode    string           `yaml:"log_mode"`
	Dataset    DatasetConfig    `yaml:"dataset"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Neo4j      neo4jdb.Config   `yaml:"neo4j"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Redis      RedisConfig      `yaml:"redis"`
	HTTP       HTTPConfig       `yaml:"http"`
}

type DatasetConfig struct {
	Location       string   `yaml:"location" validate:"required"`
	IDColumn       string   `yaml:"id_column" validate:"required"`
	ClusterColumns []string `yaml:"cluster_columns" validate:"required,min=1,unique,dive,required"`
}

type SimilarityConfig struct {
	Threshold   float64 `yaml:"threshold" validate:"gte=-1,lte=1"`
	Workers     int     `yaml:"workers" validate:"gte=0"`
	MaxEntities int     `yaml:"max_entities" validate:"gte=0"`
}

type IngestConfig struct {
	BatchSize int           `yaml:"batch_size" validate:"gt=0"`
	Backoff   time.Duration `yaml:"backoff" validate:"gt=0"`
}

type LedgerConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr    string        `yaml:"addr"`
	LockTTL time.Duration `yaml:"lock_ttl" validate:"gte=0"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func DefaultConfig() Config {
	return Config{
		Env:     "development",
		LogMode: "development",
		Dataset: DatasetConfig{
			Location:       defaultDataset,
			IDColumn:       "JobId",
			ClusterColumns: dataset.DefaultClusterColumns(defaultClusters),
		},
		Similarity: SimilarityConfig{
			Threshold:   similarity.DefaultThreshold,
			MaxEntities: similarity.DefaultMaxEntities,
		},
		Ingest: IngestConfig{
			BatchSize: ingest.DefaultBatchSize,
			Backoff:   gate.DefaultBackoff,
		},
		Neo4j: neo4jdb.Config{
			URI:  "neo4j://localhost:7687",
			User: "neo4j",
		},
		Redis: RedisConfig{LockTTL: time.Hour},
		HTTP:  HTTPConfig{Addr: ":8080"},
	}
}

var validate = validator.New()

// LoadConfig layers defaults, then the YAML file at path (if any), then
// environment variables, and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("APP_ENV", cfg.Env)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)

	cfg.Dataset.Location = envutil.String("DATASET_URL", cfg.Dataset.Location)
	cfg.Dataset.IDColumn = envutil.String("DATASET_ID_COLUMN", cfg.Dataset.IDColumn)
	if n := envutil.Int("DATASET_CLUSTERS", 0); n > 0 {
		cfg.Dataset.ClusterColumns = dataset.DefaultClusterColumns(n)
	}
	cfg.Dataset.ClusterColumns = envutil.List("DATASET_CLUSTER_COLUMNS", cfg.Dataset.ClusterColumns)

	cfg.Similarity.Threshold = envutil.Float("SIMILARITY_THRESHOLD", cfg.Similarity.Threshold)
	cfg.Similarity.Workers = envutil.Int("SIMILARITY_WORKERS", cfg.Similarity.Workers)
	cfg.Similarity.MaxEntities = envutil.Int("SIMILARITY_MAX_ENTITIES", cfg.Similarity.MaxEntities)

	cfg.Ingest.BatchSize = envutil.Int("INGEST_BATCH_SIZE", cfg.Ingest.BatchSize)
	cfg.Ingest.Backoff = envutil.Duration("READINESS_BACKOFF", cfg.Ingest.Backoff)

	cfg.Neo4j.URI = envutil.String("NEO4J_URI", cfg.Neo4j.URI)
	cfg.Neo4j.User = envutil.String("NEO4J_USER", cfg.Neo4j.User)
	cfg.Neo4j.Password = envutil.String("NEO4J_PASSWORD", cfg.Neo4j.Password)
	cfg.Neo4j.Database = envutil.String("NEO4J_DATABASE", cfg.Neo4j.Database)
	cfg.Neo4j.Timeout = envutil.Duration("NEO4J_TIMEOUT", cfg.Neo4j.Timeout)
	cfg.Neo4j.MaxPoolSize = envutil.Int("NEO4J_MAX_POOL_SIZE", cfg.Neo4j.MaxPoolSize)

	cfg.Ledger.DSN = envutil.String("LEDGER_DSN", cfg.Ledger.DSN)
	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.LockTTL = envutil.Duration("RUN_LOCK_TTL", cfg.Redis.LockTTL)

	cfg.HTTP.Addr = envutil.String("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.AllowedOrigins = envutil.List("CORS_ALLOWED_ORIGINS", cfg.HTTP.AllowedOrigins)
}

func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (value: %v)", e.Namespace(), e.Tag(), e.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Schema is the dataset schema the pipeline parses against.
func (c Config) Schema() dataset.Schema {
	return dataset.Schema{IDColumn: c.Dataset.IDColumn, ClusterColumns: c.Dataset.ClusterColumns}
}
