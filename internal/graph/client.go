package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/rohankatakam/scholargraph/internal/config"
)

// AccessMode selects how a statement reaches the database.
type AccessMode int

const (
	// AccessModeWrite runs the statement in an auto-commit transaction.
	// Any statement the server accepts can run this way, and it is never retried.
	AccessModeWrite AccessMode = iota
	// AccessModeRead runs the statement in a read transaction routed to readers.
	// The server rejects writes.
	AccessModeRead
)

// Statement is one request to the database.
type Statement struct {
	Text      string
	Params    map[string]any
	Mode      AccessMode
	Operation string // one of the Op* names; selects timeout and tx metadata
}

// RawResult is a driver result converted into cells.
type RawResult struct {
	Keys      []string
	Rows      [][]Cell
	QueryType string         // "r", "rw", "w", "s" or "" when unknown
	Counters  map[string]int // nonzero update counters only
}

// Runner executes statements. Client is the production implementation;
// tests provide fakes.
type Runner interface {
	Run(ctx context.Context, stmt Statement) (*RawResult, error)
}

// Client wraps the process-wide Neo4j driver
type Client struct {
	driver   neo4j.DriverWithContext
	logger   *slog.Logger
	database string
	configs  map[string]TransactionConfig
	monitor  *TimeoutMonitor
}

// NewClient creates the driver from config. The connection is not verified
// here; a database that is down at startup is reported by HealthCheck and by
// failing statements, not by refusing to start.
func NewClient(cfg config.Neo4jConfig, logger *slog.Logger) (*Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j uri missing")
	}
	if logger == nil {
		logger = slog.Default()
	}

	auth := neo4j.NoAuth()
	if cfg.User != "" {
		auth = neo4j.BasicAuth(cfg.User, cfg.Password, "")
	}

	poolSize := cfg.MaxPoolSize
	if poolSize <= 0 {
		poolSize = 50
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth,
		func(c *neo4j.Config) {
			c.MaxConnectionPoolSize = poolSize
			c.ConnectionAcquisitionTimeout = 60 * time.Second
			c.MaxConnectionLifetime = 3600 * time.Second
			c.ConnectionLivenessCheckTimeout = 5 * time.Second
			c.SocketConnectTimeout = connectTimeout
			c.SocketKeepalive = true
		})
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	logger = logger.With("component", "neo4j")
	logger.Info("neo4j driver created",
		"uri", cfg.URI,
		"user", cfg.User,
		"database", cfg.Database,
		"max_pool_size", poolSize)

	return &Client{
		driver:   driver,
		logger:   logger,
		database: cfg.Database,
		configs:  TransactionConfigs(cfg.QueryTimeout),
		monitor:  NewTimeoutMonitor(logger),
	}, nil
}

// Close closes the Neo4j driver connection
func (c *Client) Close(ctx context.Context) error {
	if err := c.driver.Close(ctx); err != nil {
		return fmt.Errorf("failed to close neo4j driver: %w", err)
	}
	c.logger.Info("neo4j client closed")
	return nil
}

// HealthCheck verifies Neo4j connectivity
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j health check failed: %w", err)
	}
	return nil
}

// WatchHealth runs a connectivity check every interval until ctx is done.
// Failures are logged; the driver reconnects on its own.
func (c *Client) WatchHealth(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Debug("starting health monitor", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("health monitor stopped")
			return nil
		case <-ticker.C:
			if err := c.HealthCheck(ctx); err != nil {
				c.logger.Warn("neo4j health check failed", "error", err)
			}
		}
	}
}

// Run executes a statement and converts the result into cells
func (c *Client) Run(ctx context.Context, stmt Statement) (*RawResult, error) {
	txConfig := configFor(c.configs, stmt.Operation)

	var raw *RawResult
	err := c.monitor.Run(ctx, stmt.Operation, txConfig.Timeout, func(ctx context.Context) error {
		var err error
		if stmt.Mode == AccessModeRead {
			raw, err = c.runRead(ctx, stmt, txConfig)
		} else {
			raw, err = c.runAutoCommit(ctx, stmt, txConfig)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("statement executed",
		"operation", stmt.Operation,
		"records", len(raw.Rows),
		"query_type", raw.QueryType)
	return raw, nil
}

// runRead uses the managed ExecuteQuery API with reader routing. The
// transaction is opened in read mode, so writes fail on the server.
func (c *Client) runRead(ctx context.Context, stmt Statement, txConfig TransactionConfig) (*RawResult, error) {
	options := []neo4j.ExecuteQueryConfigurationOption{
		neo4j.ExecuteQueryWithReadersRouting(),
		neo4j.ExecuteQueryWithTransactionConfig(txConfig.AsNeo4jConfig()...),
	}
	if c.database != "" {
		options = append(options, neo4j.ExecuteQueryWithDatabase(c.database))
	}

	result, err := neo4j.ExecuteQuery(ctx, c.driver, stmt.Text, stmt.Params,
		neo4j.EagerResultTransformer, options...)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	return rawResultOf(result.Keys, result.Records, result.Summary), nil
}

// runAutoCommit runs arbitrary statements (including schema commands and
// CALL ... IN TRANSACTIONS) in a single auto-commit transaction.
func (c *Client) runAutoCommit(ctx context.Context, stmt Statement, txConfig TransactionConfig) (*RawResult, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, stmt.Text, stmt.Params, txConfig.AsNeo4jConfig()...)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	keys, err := result.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to read keys: %w", err)
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}

	return rawResultOf(keys, records, summary), nil
}

func rawResultOf(keys []string, records []*neo4j.Record, summary neo4j.ResultSummary) *RawResult {
	raw := &RawResult{
		Keys:     keys,
		Rows:     make([][]Cell, 0, len(records)),
		Counters: map[string]int{},
	}
	if raw.Keys == nil {
		raw.Keys = []string{}
	}

	for _, record := range records {
		row := make([]Cell, len(record.Values))
		for i, v := range record.Values {
			row[i] = CellOf(v)
		}
		raw.Rows = append(raw.Rows, row)
	}

	if summary != nil {
		raw.QueryType = queryTypeCode(summary.StatementType())
		raw.Counters = countersOf(summary.Counters())
	}
	return raw
}

// queryTypeCode maps the driver's statement classification onto the
// short codes Neo4j uses on the wire.
func queryTypeCode(t neo4j.StatementType) string {
	switch t {
	case neo4j.StatementTypeReadOnly:
		return "r"
	case neo4j.StatementTypeReadWrite:
		return "rw"
	case neo4j.StatementTypeWriteOnly:
		return "w"
	case neo4j.StatementTypeSchemaWrite:
		return "s"
	default:
		return ""
	}
}

func countersOf(c neo4j.Counters) map[string]int {
	out := map[string]int{}
	if c == nil {
		return out
	}

	all := []struct {
		name  string
		value int
	}{
		{"nodes_created", c.NodesCreated()},
		{"nodes_deleted", c.NodesDeleted()},
		{"relationships_created", c.RelationshipsCreated()},
		{"relationships_deleted", c.RelationshipsDeleted()},
		{"properties_set", c.PropertiesSet()},
		{"labels_added", c.LabelsAdded()},
		{"labels_removed", c.LabelsRemoved()},
		{"indexes_added", c.IndexesAdded()},
		{"indexes_removed", c.IndexesRemoved()},
		{"constraints_added", c.ConstraintsAdded()},
		{"constraints_removed", c.ConstraintsRemoved()},
		{"system_updates", c.SystemUpdates()},
	}
	for _, entry := range all {
		if entry.value != 0 {
			out[entry.name] = entry.value
		}
	}
	return out
}
