// Package export moves a profile's data across the storage boundary: a JSON
// bundle for backup/transfer between installations, and a CSV session log
// for spreadsheets.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ozgurcan/studyr/internal/model"
)

// Bundle is the backup payload: the profile identity plus its full UserData.
type Bundle struct {
	App        string             `json:"app"`
	ExportedAt string             `json:"exportedAt"`
	Profile    model.Profile      `json:"profile"`
	Data       *model.RawUserData `json:"data"`
}

const appName = "studyr"

// EncodeBundle serializes a profile and its data for export.
func EncodeBundle(profile model.Profile, data model.UserData) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode bundle data: %w", err)
	}
	b := struct {
		App        string          `json:"app"`
		ExportedAt string          `json:"exportedAt"`
		Profile    model.Profile   `json:"profile"`
		Data       json.RawMessage `json:"data"`
	}{
		App:        appName,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Profile:    profile,
		Data:       raw,
	}
	out, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	return out, nil
}

// DecodeBundle parses an exported payload. Both the bundle shape and the
// legacy bare-UserData shape are accepted; anything else is rejected whole,
// so a failed import never leaves partial state behind.
func DecodeBundle(payload []byte) (model.Profile, model.RawUserData, error) {
	var b Bundle
	if err := json.Unmarshal(payload, &b); err == nil && b.Data != nil {
		return b.Profile, *b.Data, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return model.Profile{}, model.RawUserData{}, fmt.Errorf("import: unreadable payload: %w", err)
	}
	if !looksLikeUserData(probe) {
		return model.Profile{}, model.RawUserData{}, errors.New("import: payload is not a studyr export")
	}

	// Old exports shipped the bare UserData object with sessions under
	// "history".
	if history, ok := probe["history"]; ok {
		if _, has := probe["sessions"]; !has {
			probe["sessions"] = history
		}
		delete(probe, "history")
		rewritten, err := json.Marshal(probe)
		if err != nil {
			return model.Profile{}, model.RawUserData{}, fmt.Errorf("import: rewrite legacy payload: %w", err)
		}
		payload = rewritten
	}

	var raw model.RawUserData
	if err := json.Unmarshal(payload, &raw); err != nil {
		return model.Profile{}, model.RawUserData{}, fmt.Errorf("import: decode payload: %w", err)
	}
	return model.Profile{}, raw, nil
}

func looksLikeUserData(probe map[string]json.RawMessage) bool {
	for _, key := range []string{"sessions", "history", "subjects", "tasks", "settings"} {
		if _, ok := probe[key]; ok {
			return true
		}
	}
	return false
}
