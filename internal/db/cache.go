package db

import (
	"database/sql"
	"time"
)

// LLMCache stores cached LLM responses keyed by prompt hash
type LLMCache struct {
	Hash      string    `json:"hash"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Model     string    `json:"model"`
	Tokens    int       `json:"tokens"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GetCachedResponse retrieves a cached LLM response, nil if absent or expired
func (db *DB) GetCachedResponse(hash string) (*LLMCache, error) {
	cache := &LLMCache{}

	query := `SELECT prompt, response, model, tokens, created_at, expires_at
	          FROM llm_cache WHERE hash = ? AND expires_at > ?`

	var createdTS, expiresTS int64
	err := db.QueryRow(query, hash, time.Now().Unix()).Scan(
		&cache.Prompt, &cache.Response, &cache.Model, &cache.Tokens,
		&createdTS, &expiresTS,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	cache.Hash = hash
	cache.CreatedAt = time.Unix(createdTS, 0)
	cache.ExpiresAt = time.Unix(expiresTS, 0)

	return cache, nil
}

// SaveCachedResponse stores an LLM response in cache
func (db *DB) SaveCachedResponse(cache *LLMCache) error {
	query := `
		INSERT INTO llm_cache (hash, prompt, response, model, tokens, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			response = excluded.response,
			tokens = excluded.tokens,
			expires_at = excluded.expires_at
	`

	_, err := db.Exec(query,
		cache.Hash, cache.Prompt, cache.Response, cache.Model,
		cache.Tokens, cache.ExpiresAt.Unix(),
	)
	return err
}

// CleanExpiredCache removes expired cache entries
func (db *DB) CleanExpiredCache() error {
	query := `DELETE FROM llm_cache WHERE expires_at < ?`
	_, err := db.Exec(query, time.Now().Unix())
	return err
}

// LogUsage records an external API call for cost tracking
func (db *DB) LogUsage(service, action string, tokens int, cost float64, duration time.Duration, err error) error {
	var errStr string
	if err != nil {
		errStr = err.Error()
	}

	query := `INSERT INTO usage (service, action, tokens, cost, duration_ms, error) VALUES (?, ?, ?, ?, ?, ?)`
	_, dbErr := db.Exec(query, service, action, tokens, cost, duration.Milliseconds(), errStr)
	return dbErr
}
