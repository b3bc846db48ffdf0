package pagemill

import (
	"database/sql"
	"encoding/json"
	"time"
)

// LoadSettings returns the three site-wide singletons, applying defaults for
// anything not yet saved.
func (s *Store) LoadSettings() (Settings, error) {
	out := Settings{
		Header: DefaultHeaderSettings(),
		Footer: DefaultFooterSettings(),
		Site:   DefaultSiteSettings(),
	}
	if err := s.loadSetting(SettingsHeader, &out.Header); err != nil {
		return out, err
	}
	if err := s.loadSetting(SettingsFooter, &out.Footer); err != nil {
		return out, err
	}
	if err := s.loadSetting(SettingsSite, &out.Site); err != nil {
		return out, err
	}
	return out, nil
}

// loadSetting unmarshals the named row over v, leaving v untouched when no
// row exists so defaults survive.
func (s *Store) loadSetting(name string, v interface{}) error {
	var data string
	err := s.db.QueryRow(`SELECT data FROM settings WHERE name = ?`, name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), v)
}

// SaveSetting stores one settings singleton as JSON.
func (s *Store) SaveSetting(name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO settings (name, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		name, string(data), fmtTime(time.Now()))
	return err
}

// SaveImage records uploaded-image metadata.
func (s *Store) SaveImage(img Image) error {
	_, err := s.db.Exec(`INSERT INTO images (filename, original_name, width, height, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET
			original_name = excluded.original_name, width = excluded.width,
			height = excluded.height, size_bytes = excluded.size_bytes`,
		img.Filename, img.OriginalName, img.Width, img.Height, img.Size, img.UploadedAt)
	return err
}

// ListImages returns uploaded-image metadata, newest first.
func (s *Store) ListImages() ([]Image, error) {
	rows, err := s.db.Query(`SELECT filename, original_name, width, height, size_bytes, created_at
		FROM images ORDER BY created_at DESC, filename`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var images []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.Filename, &img.OriginalName, &img.Width, &img.Height, &img.Size, &img.UploadedAt); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// DeleteImage removes an image's metadata row.
func (s *Store) DeleteImage(filename string) error {
	_, err := s.db.Exec(`DELETE FROM images WHERE filename = ?`, filename)
	return err
}
