package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bondarb/core/pkg/contract"
)

// Store is the C13 repository: sqlite-backed contract and bond storage
// with an in-memory cosine-candidate cache (vectorindex.go) kept
// consistent via a per-platform dirty flag set on every contract write.
type Store struct {
	db    *DB
	index *VectorIndex
}

// New wraps an open DB as a Store.
func New(db *DB) *Store {
	return &Store{db: db, index: newVectorIndex()}
}

type contractRow struct {
	Contract *contract.Contract `json:"contract"`
}

// UpsertContract inserts or replaces a contract row inside a single
// transaction and marks the platform's in-memory candidate cache dirty
// so the next C6 retrieval rebuilds it from the source of truth.
func (s *Store) UpsertContract(ctx context.Context, c *contract.Contract) error {
	body, err := json.Marshal(contractRow{Contract: c})
	if err != nil {
		return fmt.Errorf("marshal contract: %w", err)
	}

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrStoreConflict, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO contracts (platform, id, key, status, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(platform, id) DO UPDATE SET
			status = excluded.status,
			body = excluded.body,
			updated_at = excluded.updated_at
	`, string(c.Platform), c.ID, c.Key(), string(c.Status), string(body), c.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrStoreConflict, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", contract.ErrStoreConflict, err)
	}

	s.index.markDirty(c.Platform)
	return nil
}

// GetContract fetches one contract by platform+id.
func (s *Store) GetContract(ctx context.Context, platform contract.Platform, id string) (*contract.Contract, error) {
	row := s.db.conn.QueryRowContext(ctx, `SELECT body FROM contracts WHERE platform = ? AND id = ?`, string(platform), id)
	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contract.ErrNotFound
		}
		return nil, fmt.Errorf("get contract: %w", err)
	}
	var cr contractRow
	if err := json.Unmarshal([]byte(body), &cr); err != nil {
		return nil, fmt.Errorf("unmarshal contract: %w", err)
	}
	return cr.Contract, nil
}

// ListContracts returns every contract on a platform with the given
// status, ordered by id for determinism.
func (s *Store) ListContracts(ctx context.Context, platform contract.Platform, status contract.Status) ([]*contract.Contract, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT body FROM contracts WHERE platform = ? AND status = ? ORDER BY id`,
		string(platform), string(status))
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()

	var out []*contract.Contract
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan contract row: %w", err)
		}
		var cr contractRow
		if err := json.Unmarshal([]byte(body), &cr); err != nil {
			return nil, fmt.Errorf("unmarshal contract: %w", err)
		}
		out = append(out, cr.Contract)
	}
	return out, rows.Err()
}

// ListActiveCandidates returns the cached, potentially stale-tolerant
// set of active contracts for a platform, rebuilding from sqlite only
// when the platform's dirty flag is set. This is the pool C6 scans.
func (s *Store) ListActiveCandidates(ctx context.Context, platform contract.Platform) ([]*contract.Contract, error) {
	if cached, ok := s.index.get(platform); ok {
		return cached, nil
	}
	fresh, err := s.ListContracts(ctx, platform, contract.StatusActive)
	if err != nil {
		return nil, err
	}
	s.index.set(platform, fresh)
	return fresh, nil
}

type bondRow struct {
	Bond *contract.Bond `json:"bond"`
}

// UpsertBond inserts or replaces a bond row transactionally.
func (s *Store) UpsertBond(ctx context.Context, b *contract.Bond) error {
	body, err := json.Marshal(bondRow{Bond: b})
	if err != nil {
		return fmt.Errorf("marshal bond: %w", err)
	}

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrStoreConflict, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO bonds (pair_id, contract_a_key, contract_b_key, tier, status, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pair_id) DO UPDATE SET
			tier = excluded.tier,
			status = excluded.status,
			body = excluded.body,
			updated_at = excluded.updated_at
	`, b.PairID, b.ContractAKey, b.ContractBKey, int(b.Tier), string(b.Status), string(body),
		b.CreatedAt.Format(time.RFC3339Nano), now)
	if err != nil {
		return fmt.Errorf("%w: %v", contract.ErrStoreConflict, err)
	}

	return tx.Commit()
}

// GetBond fetches a bond by its deterministic pair id.
func (s *Store) GetBond(ctx context.Context, pairID string) (*contract.Bond, error) {
	row := s.db.conn.QueryRowContext(ctx, `SELECT body FROM bonds WHERE pair_id = ?`, pairID)
	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contract.ErrNotFound
		}
		return nil, fmt.Errorf("get bond: %w", err)
	}
	var br bondRow
	if err := json.Unmarshal([]byte(body), &br); err != nil {
		return nil, fmt.Errorf("unmarshal bond: %w", err)
	}
	return br.Bond, nil
}

// ListActiveBonds returns every non-retired bond, ordered by pair id.
func (s *Store) ListActiveBonds(ctx context.Context) ([]*contract.Bond, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT body FROM bonds WHERE status != ? ORDER BY pair_id`, string(contract.BondRetired))
	if err != nil {
		return nil, fmt.Errorf("list active bonds: %w", err)
	}
	defer rows.Close()

	var out []*contract.Bond
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan bond row: %w", err)
		}
		var br bondRow
		if err := json.Unmarshal([]byte(body), &br); err != nil {
			return nil, fmt.Errorf("unmarshal bond: %w", err)
		}
		out = append(out, br.Bond)
	}
	return out, rows.Err()
}

// BondedContractKeys returns the set of contract keys (on either side)
// that participate in at least one active bond, used by C11 to build
// the bonded-set union it prioritizes for refresh.
func (s *Store) BondedContractKeys(ctx context.Context) (map[string]struct{}, error) {
	bonds, err := s.ListActiveBonds(ctx)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]struct{}, len(bonds)*2)
	for _, b := range bonds {
		keys[b.ContractAKey] = struct{}{}
		keys[b.ContractBKey] = struct{}{}
	}
	return keys, nil
}
