package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-installer/internal/hardware"
	"github.com/nerrad567/gray-logic-installer/internal/infrastructure/database"
)

// SQLiteProvider serves snapshots from the local replica.
type SQLiteProvider struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteProvider creates a provider over an open, migrated database.
func NewSQLiteProvider(db *sql.DB) *SQLiteProvider {
	return &SQLiteProvider{db: db, now: time.Now}
}

// Snapshot implements allocator.Provider.
func (p *SQLiteProvider) Snapshot(ctx context.Context, centralID string, dir hardware.Direction) (*hardware.Snapshot, error) {
	if !dir.IsValid() {
		return nil, fmt.Errorf("%w: %q", hardware.ErrInvalidDirection, dir)
	}

	var name string
	err := p.db.QueryRowContext(ctx, `SELECT name FROM centrals WHERE id = ?`, centralID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: central %s", hardware.ErrNotFound, centralID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading central %s: %w", hardware.ErrTransportFailure, centralID, err)
	}

	ports, err := p.loadPorts(ctx, centralID, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hardware.ErrTransportFailure, err)
	}
	return &hardware.Snapshot{
		CentralID: centralID,
		Direction: dir,
		Ports:     ports,
		FetchedAt: p.now(),
	}, nil
}

func (p *SQLiteProvider) loadPorts(ctx context.Context, centralID string, dir hardware.Direction) ([]hardware.Port, error) {
	const portQuery = `SELECT port, label, keys_limit, keys_quantity
		FROM central_ports WHERE central_id = ? AND direction = ? ORDER BY port`
	rows, err := p.db.QueryContext(ctx, portQuery, centralID, string(dir))
	if err != nil {
		return nil, fmt.Errorf("querying ports: %w", err)
	}
	defer rows.Close()

	ports := []hardware.Port{}
	byIndex := make(map[int]int)
	for rows.Next() {
		var port hardware.Port
		if err := rows.Scan(&port.Index, &port.Label, &port.KeysLimit, &port.KeysQuantity); err != nil {
			return nil, fmt.Errorf("scanning port: %w", err)
		}
		byIndex[port.Index] = len(ports)
		ports = append(ports, port)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ports: %w", err)
	}

	if err := p.loadSlots(ctx, centralID, dir, ports, byIndex); err != nil {
		return nil, err
	}
	if err := p.loadKeys(ctx, centralID, dir, ports, byIndex); err != nil {
		return nil, err
	}
	return ports, nil
}

func (p *SQLiteProvider) loadSlots(ctx context.Context, centralID string, dir hardware.Direction, ports []hardware.Port, byIndex map[int]int) error {
	const query = `SELECT port, slot, device_id, device_name, device_kind
		FROM port_slots WHERE central_id = ? AND direction = ? ORDER BY port, slot`
	rows, err := p.db.QueryContext(ctx, query, centralID, string(dir))
	if err != nil {
		return fmt.Errorf("querying slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var port, slot int
		var ref hardware.DeviceRef
		var kind string
		if err := rows.Scan(&port, &slot, &ref.ID, &ref.Name, &kind); err != nil {
			return fmt.Errorf("scanning slot: %w", err)
		}
		i, ok := byIndex[port]
		if !ok || slot < 0 || slot >= hardware.SequenceLimit {
			continue
		}
		ref.Kind = hardware.DeviceKind(kind)
		ports[i].Slots[slot] = &ref
	}
	return rows.Err()
}

func (p *SQLiteProvider) loadKeys(ctx context.Context, centralID string, dir hardware.Direction, ports []hardware.Port, byIndex map[int]int) error {
	const query = `SELECT port, unit, device_id, key_number
		FROM port_keys WHERE central_id = ? AND direction = ? ORDER BY port, unit`
	rows, err := p.db.QueryContext(ctx, query, centralID, string(dir))
	if err != nil {
		return fmt.Errorf("querying keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var port int
		var unit hardware.KeyUnit
		if err := rows.Scan(&port, &unit.Index, &unit.DeviceID, &unit.Key); err != nil {
			return fmt.Errorf("scanning key unit: %w", err)
		}
		if i, ok := byIndex[port]; ok {
			ports[i].Keys = append(ports[i].Keys, unit)
		}
	}
	return rows.Err()
}

// Import replaces the replica rows of each given central in one transaction.
// Centrals not listed are left untouched.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: a migrated replica
//   - centrals: the hardware to store
//
// Returns:
//   - error: If any write fails (nothing is committed)
func Import(ctx context.Context, db *database.DB, centrals []hardware.Central) error {
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		for i := range centrals {
			if err := importCentral(ctx, tx, &centrals[i]); err != nil {
				return fmt.Errorf("importing central %s: %w", centrals[i].ID, err)
			}
		}
		return nil
	})
}

func importCentral(ctx context.Context, tx *sql.Tx, c *hardware.Central) error {
	if c.ID == "" {
		return errors.New("central id is required")
	}

	for _, table := range []string{"port_keys", "port_slots", "central_ports"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE central_id = ?", c.ID); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	const upsertCentral = `INSERT INTO centrals (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name,
			updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`
	if _, err := tx.ExecContext(ctx, upsertCentral, c.ID, c.Name); err != nil {
		return fmt.Errorf("writing central: %w", err)
	}

	for _, dir := range hardware.AllDirections() {
		for _, port := range c.Ports(dir) {
			if err := importPort(ctx, tx, c.ID, dir, &port); err != nil {
				return fmt.Errorf("%s port %d: %w", dir, port.Index, err)
			}
		}
	}
	return nil
}

func importPort(ctx context.Context, tx *sql.Tx, centralID string, dir hardware.Direction, p *hardware.Port) error {
	const insertPort = `INSERT INTO central_ports (central_id, direction, port, label, keys_limit, keys_quantity)
		VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertPort, centralID, string(dir), p.Index, p.Label, p.KeysLimit, p.KeysQuantity); err != nil {
		return fmt.Errorf("writing port: %w", err)
	}

	const insertSlot = `INSERT INTO port_slots (central_id, direction, port, slot, device_id, device_name, device_kind)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	for slot, ref := range p.Slots {
		if ref == nil || ref.ID == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, insertSlot, centralID, string(dir), p.Index, slot, ref.ID, ref.Name, string(ref.Kind)); err != nil {
			return fmt.Errorf("writing slot %d: %w", slot, err)
		}
	}

	const insertKey = `INSERT INTO port_keys (central_id, direction, port, unit, device_id, key_number)
		VALUES (?, ?, ?, ?, ?, ?)`
	for _, k := range p.Keys {
		if k.DeviceID == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, insertKey, centralID, string(dir), p.Index, k.Index, k.DeviceID, k.Key); err != nil {
			return fmt.Errorf("writing key unit %d: %w", k.Index, err)
		}
	}
	return nil
}
