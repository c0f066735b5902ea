// Package ledger persists the bot's small local state: wallet-link cache,
// per-user reward targets, and processed transaction hashes. Durable balances
// and vote tallies live in the contract, not here.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type Service struct {
	db *sql.DB
}

func NewService(dbPath string) (*Service, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Service{db: db}, nil
}

func (s *Service) Close() error { return s.db.Close() }

// WalletLink returns the cached wallet account for a Slack user.
func (s *Service) WalletLink(slackID string) (string, bool, error) {
	var accountID string
	err := s.db.QueryRow(`SELECT account_id FROM wallet_links WHERE slack_id = ?`, slackID).Scan(&accountID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return accountID, true, nil
}

// SaveWalletLink records (or refreshes) the wallet linked to a Slack user.
func (s *Service) SaveWalletLink(slackID, accountID string) error {
	_, err := s.db.Exec(`
		INSERT INTO wallet_links (slack_id, account_id) VALUES (?, ?)
		ON CONFLICT(slack_id) DO UPDATE SET account_id = excluded.account_id, linked_at = CURRENT_TIMESTAMP`,
		slackID, accountID)
	return err
}

// SetRewardTarget remembers, per requesting user, whose reaction triggered the
// reward prompt. Keyed by the requesting user so concurrent users cannot
// misdirect each other's transfers.
func (s *Service) SetRewardTarget(slackID, targetSlackID string) error {
	_, err := s.db.Exec(`
		INSERT INTO reward_targets (slack_id, target_slack_id) VALUES (?, ?)
		ON CONFLICT(slack_id) DO UPDATE SET target_slack_id = excluded.target_slack_id, updated_at = CURRENT_TIMESTAMP`,
		slackID, targetSlackID)
	return err
}

// RewardTarget returns the pending reward target for a user.
func (s *Service) RewardTarget(slackID string) (string, bool, error) {
	var target string
	err := s.db.QueryRow(`SELECT target_slack_id FROM reward_targets WHERE slack_id = ?`, slackID).Scan(&target)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return target, true, nil
}

// MarkTxProcessed claims a transaction hash for a purpose. The first caller
// wins; replays of the same hash return false so confirmation handlers stay
// idempotent.
func (s *Service) MarkTxProcessed(hash, purpose string) (bool, error) {
	res, err := s.db.Exec(`INSERT OR IGNORE INTO processed_tx (hash, purpose) VALUES (?, ?)`, hash, purpose)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RecordInteraction appends an audit row for a routed interaction.
func (s *Service) RecordInteraction(traceID, slackUser, actionID, outcome string) error {
	_, err := s.db.Exec(`INSERT INTO interactions (trace_id, slack_user, action, outcome) VALUES (?, ?, ?, ?)`,
		traceID, slackUser, actionID, outcome)
	return err
}

// InteractionCount reports how many interactions have been routed.
func (s *Service) InteractionCount() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM interactions`).Scan(&n)
	return n, err
}
