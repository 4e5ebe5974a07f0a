package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jo-hoe/goinfer/internal/detect"
)

type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and creates, if necessary) a sqlite-backed store.
// Use ":memory:" as the connection string for an ephemeral database.
func NewSQLiteStore(connectionString string) (Service, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}

	store := &sqliteStore{db: db}
	if err = store.createSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *sqliteStore) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		image BLOB NOT NULL,
		detections TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`)
	return err
}

func (s *sqliteStore) Create(name string, image []byte, detections []detect.Detection) (string, error) {
	id, err := generateID()
	if err != nil {
		return "", err
	}

	encoded, err := json.Marshal(detections)
	if err != nil {
		return "", fmt.Errorf("failed to encode detections: %w", err)
	}

	_, err = s.db.Exec(
		"INSERT INTO records (id, name, image, detections, created_at) VALUES (?, ?, ?, ?, ?)",
		id, name, image, string(encoded), time.Now().UTC(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *sqliteStore) Get(id string) (*Record, error) {
	row := s.db.QueryRow("SELECT id, name, image, detections, created_at FROM records WHERE id = ?", id)
	return scanRecord(row.Scan, true)
}

func (s *sqliteStore) List() ([]*Record, error) {
	rows, err := s.db.Query("SELECT id, name, detections, created_at FROM records ORDER BY created_at DESC, id")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []*Record
	for rows.Next() {
		record, scanErr := scanRecord(rows.Scan, false)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanRecord(scan func(...any) error, withImage bool) (*Record, error) {
	var (
		record  Record
		encoded string
	)
	var err error
	if withImage {
		err = scan(&record.ID, &record.Name, &record.Image, &encoded, &record.CreatedAt)
	} else {
		err = scan(&record.ID, &record.Name, &encoded, &record.CreatedAt)
	}
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal([]byte(encoded), &record.Detections); err != nil {
		return nil, fmt.Errorf("failed to decode detections for record %s: %w", record.ID, err)
	}
	return &record, nil
}

func (s *sqliteStore) ImageByID(id string) ([]byte, error) {
	row := s.db.QueryRow("SELECT image FROM records WHERE id = ?", id)
	var image []byte
	if err := row.Scan(&image); err != nil {
		return nil, err
	}
	return image, nil
}

func (s *sqliteStore) Delete(id string) error {
	_, err := s.db.Exec("DELETE FROM records WHERE id = ?", id)
	return err
}

func (s *sqliteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
