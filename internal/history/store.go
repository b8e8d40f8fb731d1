package history

import (
	"context"

	"backend-fogtrek/internal/db"
	"backend-fogtrek/internal/shared/geo"
)

// Store persists the raw retained-fix history per device. The core never
// touches it directly; the explore service feeds it and reloads from it for
// batch recomputes.
type Store struct {
	db db.Querier
}

func NewStore(q db.Querier) *Store {
	return &Store{db: q}
}

func (s *Store) Append(ctx context.Context, deviceID string, fix geo.GeoFix) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO device_fixes (device_id, lat, lng, recorded_at_ms)
		VALUES ($1,$2,$3,$4)
	`, deviceID, fix.Lat, fix.Lng, fix.Timestamp)
	return err
}

// Load returns the device's history ordered by timestamp ascending.
func (s *Store) Load(ctx context.Context, deviceID string) ([]geo.GeoFix, error) {
	rows, err := s.db.Query(ctx, `
		SELECT lat, lng, recorded_at_ms
		FROM device_fixes
		WHERE device_id=$1
		ORDER BY recorded_at_ms
	`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fixes []geo.GeoFix
	for rows.Next() {
		var f geo.GeoFix
		if err := rows.Scan(&f.Lat, &f.Lng, &f.Timestamp); err != nil {
			return nil, err
		}
		fixes = append(fixes, f)
	}
	return fixes, rows.Err()
}

func (s *Store) Count(ctx context.Context, deviceID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM device_fixes WHERE device_id=$1
	`, deviceID).Scan(&count)
	return count, err
}

func (s *Store) Clear(ctx context.Context, deviceID string) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM device_fixes WHERE device_id=$1
	`, deviceID)
	return err
}
