package policy

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrPolicyNotFound is returned when no policy_configs row matches the name.
var ErrPolicyNotFound = errors.New("policy: not found")

// PolicyStore abstracts DB queries for testability.
type PolicyStore interface {
	LookupPolicy(ctx context.Context, name string) (*policyRow, error)
}

type policyRow struct {
	Name     string
	Version  int64
	Document string // JSONB as string
}

// sqlPolicyStore is the real implementation using *sql.DB.
type sqlPolicyStore struct {
	db *sql.DB
}

// NewSQLPolicyStore returns a PolicyStore backed by the policy_configs table.
func NewSQLPolicyStore(db *sql.DB) PolicyStore {
	return &sqlPolicyStore{db: db}
}

func (s *sqlPolicyStore) LookupPolicy(ctx context.Context, name string) (*policyRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, version, document
		FROM policy_configs
		WHERE name = $1
	`, name)

	var r policyRow
	if err := row.Scan(&r.Name, &r.Version, &r.Document); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadFromStore reads the named policy once. Fields missing from the stored
// document keep their defaults.
func LoadFromStore(ctx context.Context, store PolicyStore, name string, logger *zap.Logger) (Config, error) {
	row, err := store.LookupPolicy(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Config{}, fmt.Errorf("%w: %q", ErrPolicyNotFound, name)
		}
		return Config{}, fmt.Errorf("LoadFromStore: %w", err)
	}

	cfg, err := parsePolicyRow(row)
	if err != nil {
		return Config{}, err
	}

	logger.Info("policy loaded from store",
		zap.String("policy_name", row.Name),
		zap.Int64("policy_version", row.Version),
	)
	return cfg, nil
}

func parsePolicyRow(row *policyRow) (Config, error) {
	doc := ToDocument(Default())
	if row.Document != "" && row.Document != "{}" {
		if err := json.Unmarshal([]byte(row.Document), &doc); err != nil {
			return Config{}, fmt.Errorf("parsePolicyRow: document: %w", err)
		}
	}
	return doc.Build()
}
