package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Profile is the persisted farmer profile row.
type Profile struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Crop      string    `json:"crop"`
	Season    string    `json:"season"`
	AreaHa    float64   `json:"area_ha"`
	Pincode   string    `json:"pincode"`
	State     string    `json:"state"`
	District  string    `json:"district"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) CreateProfile(p Profile) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO profiles (name, phone, crop, season, area_ha, pincode, state, district, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Name, p.Phone, p.Crop, p.Season, p.AreaHa, p.Pincode, p.State, p.District, p.Active)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if p.Active {
		if err := s.ActivateProfile(id); err != nil {
			return 0, err
		}
	}
	return id, nil
}

func (s *Store) ListProfiles() ([]Profile, error) {
	rows, err := s.db.Query(`
		SELECT id, name, phone, crop, season, area_ha, pincode, state, district, active, created_at
		FROM profiles ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.Phone, &p.Crop, &p.Season, &p.AreaHa, &p.Pincode, &p.State, &p.District, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// ActivateProfile marks one profile active and deactivates the rest; the
// forecast engine always reads the single active profile.
func (s *Store) ActivateProfile(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec("UPDATE profiles SET active = FALSE WHERE active = TRUE"); err != nil {
		tx.Rollback()
		return err
	}
	res, err := tx.Exec("UPDATE profiles SET active = TRUE WHERE id = ?", id)
	if err != nil {
		tx.Rollback()
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return err
	}
	if n == 0 {
		tx.Rollback()
		return fmt.Errorf("activate profile %d: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

func (s *Store) GetActiveProfile() (*Profile, error) {
	row := s.db.QueryRow(`
		SELECT id, name, phone, crop, season, area_ha, pincode, state, district, active, created_at
		FROM profiles WHERE active = TRUE LIMIT 1
	`)
	var p Profile
	err := row.Scan(&p.ID, &p.Name, &p.Phone, &p.Crop, &p.Season, &p.AreaHa, &p.Pincode, &p.State, &p.District, &p.Active, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Geocode cache. Pincode centroids never move, so entries have no TTL.

func (s *Store) GetGeocode(pincode string) (lat, lon float64, err error) {
	row := s.db.QueryRow("SELECT latitude, longitude FROM geocode_cache WHERE pincode = ?", pincode)
	err = row.Scan(&lat, &lon)
	if err == sql.ErrNoRows {
		return 0, 0, ErrNotFound
	}
	return lat, lon, err
}

func (s *Store) PutGeocode(pincode string, lat, lon float64) error {
	_, err := s.db.Exec(`
		INSERT INTO geocode_cache (pincode, latitude, longitude) VALUES (?, ?, ?)
		ON CONFLICT(pincode) DO UPDATE SET latitude = excluded.latitude, longitude = excluded.longitude
	`, pincode, lat, lon)
	return err
}

// Summary caches. Concurrent requests for the same key may race on write;
// callers treat any read failure as a miss and recompute, so last-writer-wins
// is fine here.

func (s *Store) GetCachedSummary(table, pincode string, day time.Time, out any) error {
	var payload string
	var err error
	switch table {
	case "weather_cache":
		err = s.db.QueryRow(
			"SELECT payload FROM weather_cache WHERE pincode = ? AND day = ?",
			pincode, day.Format("2006-01-02"),
		).Scan(&payload)
	case "soil_cache":
		err = s.db.QueryRow(
			"SELECT payload FROM soil_cache WHERE pincode = ?", pincode,
		).Scan(&payload)
	default:
		return fmt.Errorf("unknown cache table %q", table)
	}
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(payload), out)
}

func (s *Store) PutCachedSummary(table, pincode string, day time.Time, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	switch table {
	case "weather_cache":
		_, err = s.db.Exec(`
			INSERT INTO weather_cache (pincode, day, payload) VALUES (?, ?, ?)
			ON CONFLICT(pincode, day) DO UPDATE SET payload = excluded.payload, fetched_at = CURRENT_TIMESTAMP
		`, pincode, day.Format("2006-01-02"), string(payload))
	case "soil_cache":
		_, err = s.db.Exec(`
			INSERT INTO soil_cache (pincode, payload) VALUES (?, ?)
			ON CONFLICT(pincode) DO UPDATE SET payload = excluded.payload, fetched_at = CURRENT_TIMESTAMP
		`, pincode, string(payload))
	default:
		return fmt.Errorf("unknown cache table %q", table)
	}
	return err
}
