package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// GlobalConfig holds run-wide ingestion settings.
type GlobalConfig struct {
	MaxMessagesPerRun  int
	ProcessedLabelName string
}

// SectorConfig selects candidate messages for one sector.
type SectorConfig struct {
	Enabled      bool
	Labels       []string
	Responsibles []string
}

// Settings is the decoded settings document.
type Settings struct {
	Global  GlobalConfig
	Sectors map[Sector]SectorConfig
}

// EnabledSectors returns enabled sectors in catalogue order.
func (s Settings) EnabledSectors() []Sector {
	var out []Sector
	for _, sector := range Sectors {
		if cfg, ok := s.Sectors[sector]; ok && cfg.Enabled {
			out = append(out, sector)
		}
	}
	return out
}

// ConfiguredSectors returns every sector present in the document, sorted.
func (s Settings) ConfiguredSectors() []string {
	out := make([]string, 0, len(s.Sectors))
	for sector := range s.Sectors {
		out = append(out, string(sector))
	}
	sort.Strings(out)
	return out
}

// WithDefaults fills unset global values.
func (s Settings) WithDefaults(maxMessages int, processedLabel string) Settings {
	if s.Global.MaxMessagesPerRun <= 0 {
		s.Global.MaxMessagesPerRun = maxMessages
	}
	if strings.TrimSpace(s.Global.ProcessedLabelName) == "" {
		s.Global.ProcessedLabelName = processedLabel
	}
	if s.Sectors == nil {
		s.Sectors = map[Sector]SectorConfig{}
	}
	return s
}

// Scalar accepts either a bare JSON string or the tagged {"stringValue": "..."}
// form and always decodes to a plain string.
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var plain string
		if err := json.Unmarshal(data, &plain); err != nil {
			return err
		}
		*s = Scalar(plain)
		return nil
	}
	var tagged struct {
		StringValue *string `json:"stringValue"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("scalar: %w", err)
	}
	if tagged.StringValue == nil {
		return fmt.Errorf("scalar: object without stringValue: %s", data)
	}
	*s = Scalar(*tagged.StringValue)
	return nil
}

type sectorDocument struct {
	Enabled      bool     `json:"enabled"`
	Labels       []Scalar `json:"labels"`
	Responsables []Scalar `json:"responsables"`
}

type settingsDocument struct {
	MaxEmailsPerRun    int                       `json:"maxEmailsPerRun"`
	ProcessedLabelName Scalar                    `json:"processedLabelName"`
	Sectors            map[string]sectorDocument `json:"sectors"`
}

// ParseSettings decodes a settings document, coercing tagged scalars at the edge.
func ParseSettings(data []byte) (Settings, error) {
	var doc settingsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	out := Settings{
		Global: GlobalConfig{
			MaxMessagesPerRun:  doc.MaxEmailsPerRun,
			ProcessedLabelName: strings.TrimSpace(string(doc.ProcessedLabelName)),
		},
		Sectors: make(map[Sector]SectorConfig, len(doc.Sectors)),
	}
	for key, raw := range doc.Sectors {
		sector, err := ParseSector(key)
		if err != nil {
			return Settings{}, err
		}
		out.Sectors[sector] = SectorConfig{
			Enabled:      raw.Enabled,
			Labels:       scalarsToStrings(raw.Labels),
			Responsibles: scalarsToStrings(raw.Responsables),
		}
	}
	return out, nil
}

// MarshalSettings encodes settings in the stored document shape.
func MarshalSettings(s Settings) ([]byte, error) {
	doc := struct {
		MaxEmailsPerRun    int                       `json:"maxEmailsPerRun"`
		ProcessedLabelName string                    `json:"processedLabelName"`
		Sectors            map[string]map[string]any `json:"sectors"`
	}{
		MaxEmailsPerRun:    s.Global.MaxMessagesPerRun,
		ProcessedLabelName: s.Global.ProcessedLabelName,
		Sectors:            make(map[string]map[string]any, len(s.Sectors)),
	}
	for sector, cfg := range s.Sectors {
		labels := cfg.Labels
		if labels == nil {
			labels = []string{}
		}
		responsibles := cfg.Responsibles
		if responsibles == nil {
			responsibles = []string{}
		}
		doc.Sectors[string(sector)] = map[string]any{
			"enabled":      cfg.Enabled,
			"labels":       labels,
			"responsables": responsibles,
		}
	}
	return json.Marshal(doc)
}

func scalarsToStrings(in []Scalar) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if trimmed := strings.TrimSpace(string(v)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
