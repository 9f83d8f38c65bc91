package account

import (
	"database/sql"
	"fmt"

	"barlive/internal/livestream"
	utils "barlive/pkg/utils"
)

// AccountStore answers the identity questions the livestream subsystem asks
// about the rest of the platform: which entity an account broadcasts as, who
// follows an entity, and how an entity is displayed. It also persists the
// notification rows written by fan-out.
type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

// ResolveEntityAccountID returns the entity account an account broadcasts as.
// An account with several linked entities resolves to the most recent one.
func (s *AccountStore) ResolveEntityAccountID(accountID string) (string, error) {
	query := `
		SELECT entity_account_id FROM entity_accounts
		WHERE account_id = $1 ORDER BY created_at DESC LIMIT 1
	`

	var entityAccountID string
	err := s.db.QueryRow(query, accountID).Scan(&entityAccountID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		utils.Logger.Errorf("Error resolving entity account for %s: %v", accountID, err)
		return "", fmt.Errorf("database error")
	}
	return entityAccountID, nil
}

func (s *AccountStore) ResolveEntityType(entityAccountID string) (string, string, error) {
	query := `SELECT entity_type, COALESCE(entity_id, '') FROM entity_accounts WHERE entity_account_id = $1`

	var entityType, entityID string
	err := s.db.QueryRow(query, entityAccountID).Scan(&entityType, &entityID)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", "", fmt.Errorf("entity account %s not found", entityAccountID)
		}
		utils.Logger.Errorf("Error resolving entity type for %s: %v", entityAccountID, err)
		return "", "", fmt.Errorf("database error")
	}
	return entityType, entityID, nil
}

func (s *AccountStore) GetFollowers(entityAccountID string) ([]*livestream.Follower, error) {
	query := `
		SELECT follower_entity_account_id, follower_account_id, COALESCE(follower_entity_type, '')
		FROM followers WHERE followed_entity_account_id = $1
	`

	rows, err := s.db.Query(query, entityAccountID)
	if err != nil {
		utils.Logger.Errorf("Error querying followers of %s: %v", entityAccountID, err)
		return nil, fmt.Errorf("database error")
	}
	defer rows.Close()

	var followers []*livestream.Follower
	for rows.Next() {
		follower := &livestream.Follower{}
		if err := rows.Scan(&follower.EntityAccountID, &follower.AccountID, &follower.EntityType); err != nil {
			utils.Logger.Errorf("Error scanning follower: %v", err)
			return nil, fmt.Errorf("database error")
		}
		followers = append(followers, follower)
	}
	return followers, rows.Err()
}

func (s *AccountStore) GetDisplayInfo(entityAccountID string) (string, string, error) {
	query := `
		SELECT COALESCE(display_name, ''), COALESCE(avatar_url, '')
		FROM entity_accounts WHERE entity_account_id = $1
	`

	var name, avatar string
	err := s.db.QueryRow(query, entityAccountID).Scan(&name, &avatar)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", "", fmt.Errorf("entity account %s not found", entityAccountID)
		}
		utils.Logger.Errorf("Error fetching display info for %s: %v", entityAccountID, err)
		return "", "", fmt.Errorf("database error")
	}
	return name, avatar, nil
}

func (s *AccountStore) CreateNotification(n *livestream.Notification) error {
	query := `
		INSERT INTO notifications (id, type, sender_entity_account_id, receiver_entity_account_id,
			content, link, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.Exec(query,
		n.ID, n.Type, n.SenderEntityAccountID, n.ReceiverEntityAccountID,
		n.Content, n.Link, n.Status, n.CreatedAt,
	)
	if err != nil {
		utils.Logger.Errorf("Error creating notification: %v", err)
		return fmt.Errorf("failed to create notification")
	}
	return nil
}
