package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rickgao/haltwatch/internal/model"
)

// ListHalts fetches every halt the server currently tracks. Symbols are
// normalized the same way stream events are.
func (c *Client) ListHalts(ctx context.Context) ([]model.HaltRecord, error) {
	body, err := c.doWithRetry(ctx, http.MethodGet, c.haltsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("list halts: %w", err)
	}

	var halts []model.HaltRecord
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &halts)
	} else {
		var resp HaltsResponse
		err = json.Unmarshal(body, &resp)
		halts = resp.Halts
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal halts: %w", err)
	}

	for i := range halts {
		halts[i].Symbol = model.NormalizeSymbol(halts[i].Symbol)
	}

	c.logger.Debug("fetched halts", "count", len(halts))
	return halts, nil
}
