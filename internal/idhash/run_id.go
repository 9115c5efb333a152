// Package idhash derives deterministic identifiers from canonical strings.
package idhash

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/mr-tron/base58"

	"ticker-strategy-lab/internal/domain"
)

// IDLength is the length of every identifier produced by this package.
const IDLength = 22

// encode hashes data with SHA256 and returns the first IDLength base58 characters.
func encode(data string) string {
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])[:IDLength]
}

// ComputeRunID computes a deterministic run_id.
// Formula: SHA256(ticker|strategy_type|start|end|grid_key|config_key)
// grid_key and config_key are canonical strings chosen by the caller.
func ComputeRunID(
	ticker string,
	strategyType domain.StrategyType,
	start, end time.Time,
	gridKey string,
	configKey string,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		ticker,
		string(strategyType),
		domain.TruncateDay(start).Format(domain.DateLayout),
		domain.TruncateDay(end).Format(domain.DateLayout),
		gridKey,
		configKey,
	)
	return encode(data)
}

// ComputeResultID computes a deterministic result_id.
// Formula: SHA256(run_id|grid_index|params_key)
func ComputeResultID(runID string, index int, params domain.StrategyParameters) string {
	return encode(fmt.Sprintf("%s|%d|%s", runID, index, params.Key()))
}
