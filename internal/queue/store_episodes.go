package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const episodeColumns = "id, title, description, file, file_size, depth, is_trailer, sources_json, series_id, series_ep, published"

// SaveEpisode inserts a finished episode into the catalog.
func (s *Store) SaveEpisode(ctx context.Context, ep *Episode) error {
	if ep == nil {
		return errors.New("episode is nil")
	}
	if ep.Published.IsZero() {
		ep.Published = time.Now().UTC()
	}
	sourcesJSON, err := encodeJSON(ep.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO episodes (
            id, title, description, file, file_size, depth, is_trailer,
            sources_json, series_id, series_ep, published
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ep.ID,
		ep.Title,
		nullableString(ep.Description),
		ep.File,
		ep.FileSize,
		nullableString(ep.Depth),
		boolToInt(ep.IsTrailer),
		sourcesJSON,
		nullableString(ep.SeriesID),
		ep.SeriesEp,
		ep.Published.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert episode: %w", err)
	}
	return nil
}

// GetEpisode fetches an episode by identifier. A missing episode returns (nil, nil).
func (s *Store) GetEpisode(ctx context.Context, id string) (*Episode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return ep, nil
}

// ListEpisodes returns the catalog ordered by publish time, newest first.
func (s *Store) ListEpisodes(ctx context.Context) ([]*Episode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+episodeColumns+` FROM episodes ORDER BY published DESC`)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	return episodes, rows.Err()
}

// RemoveEpisode deletes an episode from the catalog.
func (s *Store) RemoveEpisode(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM episodes WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete episode: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanEpisode(scanner interface{ Scan(dest ...any) error }) (*Episode, error) {
	var (
		id           string
		title        string
		description  sql.NullString
		file         string
		fileSize     int64
		depth        sql.NullString
		isTrailer    sql.NullInt64
		sourcesJSON  sql.NullString
		seriesID     sql.NullString
		seriesEp     sql.NullInt64
		publishedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&description,
		&file,
		&fileSize,
		&depth,
		&isTrailer,
		&sourcesJSON,
		&seriesID,
		&seriesEp,
		&publishedRaw,
	); err != nil {
		return nil, err
	}

	ep := &Episode{
		ID:          id,
		Title:       title,
		Description: description.String,
		File:        file,
		FileSize:    fileSize,
		Depth:       depth.String,
		IsTrailer:   isTrailer.Valid && isTrailer.Int64 != 0,
		SeriesID:    seriesID.String,
		SeriesEp:    int(seriesEp.Int64),
	}
	if sourcesJSON.Valid && sourcesJSON.String != "" {
		if err := json.Unmarshal([]byte(sourcesJSON.String), &ep.Sources); err != nil {
			return nil, fmt.Errorf("decode episode sources: %w", err)
		}
	}
	if published, err := parseTimeString(publishedRaw.String); err == nil {
		ep.Published = published
	}
	return ep, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
