package graph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Operation names tag every statement sent to Neo4j. They select the
// transaction config and show up as tx metadata in the server's query.log.
const (
	OpStatement       = "statement"           // POST /cypher, CLI cypher
	OpGenerated       = "generated_statement" // statements produced by the NL bridge
	OpGraphProjection = "graph_projection"
	OpNodeCount       = "node_count"
)

// TransactionConfig defines timeout and metadata for transactions
type TransactionConfig struct {
	Timeout  time.Duration
	Metadata map[string]any
}

// TransactionConfigs returns the config per operation. base is the
// configured neo4j.query_timeout; 0 disables the deadline for statements.
func TransactionConfigs(base time.Duration) map[string]TransactionConfig {
	probe := 10 * time.Second
	if base > 0 && base < probe {
		probe = base
	}

	return map[string]TransactionConfig{
		OpStatement: {
			Timeout: base,
			Metadata: map[string]any{
				"operation": OpStatement,
				"source":    "user",
			},
		},
		OpGenerated: {
			Timeout: base,
			Metadata: map[string]any{
				"operation": OpGenerated,
				"source":    "llm",
			},
		},
		OpGraphProjection: {
			Timeout: base,
			Metadata: map[string]any{
				"operation": OpGraphProjection,
				"type":      "read",
			},
		},
		// The probe backs /db-test, which must answer quickly
		OpNodeCount: {
			Timeout: probe,
			Metadata: map[string]any{
				"operation": OpNodeCount,
				"type":      "read",
			},
		},
	}
}

// AsNeo4jConfig converts to Neo4j transaction config functions for session.Run
func (tc TransactionConfig) AsNeo4jConfig() []func(*neo4j.TransactionConfig) {
	configs := []func(*neo4j.TransactionConfig){}

	if tc.Timeout > 0 {
		configs = append(configs, neo4j.WithTxTimeout(tc.Timeout))
	}
	if len(tc.Metadata) > 0 {
		configs = append(configs, neo4j.WithTxMetadata(tc.Metadata))
	}

	return configs
}

// configFor returns the config for an operation, falling back to the
// statement config for unknown names.
func configFor(configs map[string]TransactionConfig, operation string) TransactionConfig {
	if cfg, ok := configs[operation]; ok {
		return cfg
	}
	fallback := configs[OpStatement]
	return TransactionConfig{
		Timeout: fallback.Timeout,
		Metadata: map[string]any{
			"operation": operation,
			"type":      "unknown",
		},
	}
}
