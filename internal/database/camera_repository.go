package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"casaview/models"
)

// ErrCameraNotFound is returned when a camera id has no row.
var ErrCameraNotFound = errors.New("camera not found")

// CameraRepository persists camera records.
type CameraRepository struct {
	db *sql.DB
}

// NewCameraRepository creates a repository bound to the given connection.
func NewCameraRepository(db *sql.DB) *CameraRepository {
	return &CameraRepository{db: db}
}

const cameraColumns = "id, name, stream_url, stream_type, enabled, username, password, created_at, updated_at"

func scanCamera(row interface{ Scan(...any) error }) (models.Camera, error) {
	var (
		cam     models.Camera
		enabled int
		typ     string
	)
	err := row.Scan(&cam.ID, &cam.Name, &cam.StreamURL, &typ, &enabled,
		&cam.Username, &cam.Password, &cam.CreatedAt, &cam.UpdatedAt)
	if err != nil {
		return models.Camera{}, err
	}
	cam.Type = models.StreamType(typ)
	cam.Enabled = enabled != 0
	return cam, nil
}

// Insert stores a new camera record.
func (r *CameraRepository) Insert(cam models.Camera) error {
	_, err := r.db.Exec(
		`INSERT INTO cameras (`+cameraColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cam.ID, cam.Name, cam.StreamURL, string(cam.Type), boolToInt(cam.Enabled),
		cam.Username, cam.Password, cam.CreatedAt, cam.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert camera: %w", err)
	}
	return nil
}

// Get returns the camera with the given id.
func (r *CameraRepository) Get(id string) (models.Camera, error) {
	row := r.db.QueryRow(`SELECT `+cameraColumns+` FROM cameras WHERE id = ?`, id)
	cam, err := scanCamera(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Camera{}, ErrCameraNotFound
	}
	if err != nil {
		return models.Camera{}, fmt.Errorf("get camera: %w", err)
	}
	return cam, nil
}

// List returns all cameras ordered by name.
func (r *CameraRepository) List() ([]models.Camera, error) {
	rows, err := r.db.Query(`SELECT ` + cameraColumns + ` FROM cameras ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	defer rows.Close()

	var cameras []models.Camera
	for rows.Next() {
		cam, err := scanCamera(rows)
		if err != nil {
			return nil, fmt.Errorf("scan camera: %w", err)
		}
		cameras = append(cameras, cam)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cameras: %w", err)
	}
	return cameras, nil
}

// Update replaces the mutable fields of an existing camera.
func (r *CameraRepository) Update(cam models.Camera) error {
	cam.UpdatedAt = time.Now().UTC()
	res, err := r.db.Exec(
		`UPDATE cameras SET name = ?, stream_url = ?, stream_type = ?, enabled = ?,
			username = ?, password = ?, updated_at = ?
		 WHERE id = ?`,
		cam.Name, cam.StreamURL, string(cam.Type), boolToInt(cam.Enabled),
		cam.Username, cam.Password, cam.UpdatedAt, cam.ID,
	)
	if err != nil {
		return fmt.Errorf("update camera: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update camera rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCameraNotFound
	}
	return nil
}

// Delete removes a camera record.
func (r *CameraRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM cameras WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete camera: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete camera rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCameraNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
