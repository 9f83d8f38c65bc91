package livestream

import (
	"database/sql"
	"fmt"
	"time"

	utils "barlive/pkg/utils"

	"github.com/google/uuid"
)

const livestreamColumns = `id, host_account_id, host_entity_account_id, host_entity_id, host_entity_type,
	title, description, pinned_comment, status, agora_channel_name, agora_uid, view_count,
	recording_url, scheduled_start_time, scheduled_settings, start_time, end_time, created_at, updated_at`

type LivestreamStoreImpl struct {
	db *sql.DB
}

func NewLivestreamStore(db *sql.DB) *LivestreamStoreImpl {
	return &LivestreamStoreImpl{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLivestream(row rowScanner) (*Livestream, error) {
	ls := &Livestream{}
	err := row.Scan(
		&ls.ID, &ls.HostAccountID, &ls.HostEntityAccountID, &ls.HostEntityID, &ls.HostEntityType,
		&ls.Title, &ls.Description, &ls.PinnedComment, &ls.Status, &ls.AgoraChannelName,
		&ls.AgoraUID, &ls.ViewCount, &ls.RecordingURL, &ls.ScheduledStartTime,
		&ls.ScheduledSettings, &ls.StartTime, &ls.EndTime, &ls.CreatedAt, &ls.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return ls, nil
}

func (s *LivestreamStoreImpl) queryMany(query string, args ...interface{}) ([]*Livestream, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		utils.Logger.Errorf("Error querying livestreams: %v", err)
		return nil, fmt.Errorf("database error")
	}
	defer rows.Close()

	var livestreams []*Livestream
	for rows.Next() {
		ls, err := scanLivestream(rows)
		if err != nil {
			utils.Logger.Errorf("Error scanning livestream: %v", err)
			return nil, fmt.Errorf("database error")
		}
		livestreams = append(livestreams, ls)
	}
	return livestreams, rows.Err()
}

func (s *LivestreamStoreImpl) Create(ls *Livestream) error {
	tx, err := s.db.Begin()
	if err != nil {
		utils.Logger.Errorf("Failed to begin transaction: %v", err)
		return fmt.Errorf("database error")
	}
	defer tx.Rollback()

	now := time.Now()
	ls.CreatedAt = now
	ls.UpdatedAt = now

	query := `
		INSERT INTO livestreams (id, host_account_id, host_entity_account_id, host_entity_id, host_entity_type,
			title, description, pinned_comment, status, agora_channel_name, agora_uid, view_count,
			recording_url, scheduled_start_time, scheduled_settings, start_time, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err = tx.Exec(query,
		ls.ID, ls.HostAccountID, ls.HostEntityAccountID, ls.HostEntityID, ls.HostEntityType,
		ls.Title, ls.Description, ls.PinnedComment, ls.Status, ls.AgoraChannelName,
		ls.AgoraUID, ls.ViewCount, ls.RecordingURL, ls.ScheduledStartTime,
		ls.ScheduledSettings, ls.StartTime, ls.EndTime, ls.CreatedAt, ls.UpdatedAt,
	)
	if err != nil {
		utils.Logger.Errorf("Error creating livestream: %v", err)
		return fmt.Errorf("failed to create livestream")
	}

	return tx.Commit()
}

func (s *LivestreamStoreImpl) GetByID(id uuid.UUID) (*Livestream, error) {
	query := `SELECT ` + livestreamColumns + ` FROM livestreams WHERE id = $1`

	ls, err := scanLivestream(s.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		utils.Logger.Errorf("Error scanning livestream by ID: %v", err)
		return nil, fmt.Errorf("database error")
	}
	return ls, nil
}

func (s *LivestreamStoreImpl) GetByChannel(channelName string) (*Livestream, error) {
	query := `SELECT ` + livestreamColumns + ` FROM livestreams WHERE agora_channel_name = $1`

	ls, err := scanLivestream(s.db.QueryRow(query, channelName))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		utils.Logger.Errorf("Error scanning livestream by channel: %v", err)
		return nil, fmt.Errorf("database error")
	}
	return ls, nil
}

func (s *LivestreamStoreImpl) GetActive(limit int) ([]*Livestream, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + livestreamColumns + ` FROM livestreams
		WHERE status = 'live' ORDER BY start_time DESC LIMIT $1`
	return s.queryMany(query, limit)
}

// GetActiveByHost returns the live sessions attributed to a host under either
// identity. No limit: take-over must see every dangling row for the host.
func (s *LivestreamStoreImpl) GetActiveByHost(entityAccountID, accountID string) ([]*Livestream, error) {
	query := `SELECT ` + livestreamColumns + ` FROM livestreams
		WHERE status = 'live' AND (host_entity_account_id = $1 OR host_account_id = $2)`
	return s.queryMany(query, entityAccountID, accountID)
}

func (s *LivestreamStoreImpl) GetByHost(hostID string, limit int) ([]*Livestream, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + livestreamColumns + ` FROM livestreams
		WHERE host_entity_account_id = $1 OR host_account_id = $1
		ORDER BY created_at DESC LIMIT $2`
	return s.queryMany(query, hostID, limit)
}

func (s *LivestreamStoreImpl) GetScheduled() ([]*Livestream, error) {
	query := `SELECT ` + livestreamColumns + ` FROM livestreams
		WHERE status = 'scheduled' ORDER BY scheduled_start_time ASC`
	return s.queryMany(query)
}

func (s *LivestreamStoreImpl) GetScheduledByHost(hostID string) ([]*Livestream, error) {
	query := `SELECT ` + livestreamColumns + ` FROM livestreams
		WHERE status = 'scheduled' AND (host_entity_account_id = $1 OR host_account_id = $1)
		ORDER BY scheduled_start_time ASC`
	return s.queryMany(query, hostID)
}

func (s *LivestreamStoreImpl) GetScheduledReadyToActivate(now time.Time) ([]*Livestream, error) {
	query := `SELECT ` + livestreamColumns + ` FROM livestreams
		WHERE status = 'scheduled' AND scheduled_start_time IS NOT NULL AND scheduled_start_time <= $1
		ORDER BY scheduled_start_time ASC`
	return s.queryMany(query, now)
}

func (s *LivestreamStoreImpl) UpdateStatus(id uuid.UUID, status string, endTime *time.Time, recordingURL *string) (*Livestream, error) {
	query := `
		UPDATE livestreams
		SET status = $2, end_time = $3, recording_url = COALESCE($4, recording_url), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + livestreamColumns

	ls, err := scanLivestream(s.db.QueryRow(query, id, status, endTime, recordingURL))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		utils.Logger.Errorf("Error updating livestream status: %v", err)
		return nil, fmt.Errorf("database error")
	}
	return ls, nil
}

// ActivateScheduled transitions a scheduled session to live with fresh channel
// credentials. The status guard in the WHERE clause makes a double activation
// report no rows instead of re-activating.
func (s *LivestreamStoreImpl) ActivateScheduled(id uuid.UUID, channelName string, uid int64, startTime time.Time) (*Livestream, error) {
	query := `
		UPDATE livestreams
		SET status = 'live', agora_channel_name = $2, agora_uid = $3, start_time = $4, updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
		RETURNING ` + livestreamColumns

	ls, err := scanLivestream(s.db.QueryRow(query, id, channelName, uid, startTime))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		utils.Logger.Errorf("Error activating scheduled livestream: %v", err)
		return nil, fmt.Errorf("database error")
	}
	return ls, nil
}

func (s *LivestreamStoreImpl) IncrementView(id uuid.UUID) (*Livestream, error) {
	query := `
		UPDATE livestreams
		SET view_count = view_count + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + livestreamColumns

	ls, err := scanLivestream(s.db.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		utils.Logger.Errorf("Error incrementing view count: %v", err)
		return nil, fmt.Errorf("database error")
	}
	return ls, nil
}
