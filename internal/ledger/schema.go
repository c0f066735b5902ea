package ledger

import "time"

// Schema is applied on open. Migrations below it are best-effort so older
// databases keep working.
const Schema = `
CREATE TABLE IF NOT EXISTS wallet_links (
	slack_id   TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	linked_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS reward_targets (
	slack_id        TEXT PRIMARY KEY,
	target_slack_id TEXT NOT NULL,
	updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS processed_tx (
	hash       TEXT PRIMARY KEY,
	purpose    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS interactions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id   TEXT NOT NULL,
	slack_user TEXT,
	action     TEXT NOT NULL,
	outcome    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_interactions_trace ON interactions(trace_id);
`

// WalletLink maps a Slack user to their linked wallet account.
type WalletLink struct {
	SlackID   string    `json:"slack_id"`
	AccountID string    `json:"account_id"`
	LinkedAt  time.Time `json:"linked_at"`
}

// Interaction is one routed Slack interaction, kept for auditing.
type Interaction struct {
	ID        int64     `json:"id"`
	TraceID   string    `json:"trace_id"`
	SlackUser string    `json:"slack_user"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}
