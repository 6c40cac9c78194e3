package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettingsCoercesTaggedScalars(t *testing.T) {
	raw := []byte(`{
		"maxEmailsPerRun": 25,
		"processedLabelName": {"stringValue": "Traité"},
		"sectors": {
			"chr": {"enabled": true, "labels": ["SAP-CHR", {"stringValue": "SAP-CHR-2"}], "responsables": [{"stringValue": "alice"}]},
			"GMS": {"enabled": false, "labels": []}
		}
	}`)

	settings, err := ParseSettings(raw)
	require.NoError(t, err)

	assert.Equal(t, 25, settings.Global.MaxMessagesPerRun)
	assert.Equal(t, "Traité", settings.Global.ProcessedLabelName)
	assert.Equal(t, []string{"SAP-CHR", "SAP-CHR-2"}, settings.Sectors[SectorCHR].Labels)
	assert.Equal(t, []string{"alice"}, settings.Sectors[SectorCHR].Responsibles)
	assert.Equal(t, []Sector{SectorCHR}, settings.EnabledSectors())
	assert.Equal(t, []string{"CHR", "GMS"}, settings.ConfiguredSectors())
}

func TestParseSettingsRejectsUnknownSector(t *testing.T) {
	_, err := ParseSettings([]byte(`{"sectors": {"XYZ": {"enabled": true}}}`))
	assert.Error(t, err)
}

func TestParseSettingsRejectsUntaggedObject(t *testing.T) {
	_, err := ParseSettings([]byte(`{"sectors": {"CHR": {"labels": [{"integerValue": "1"}]}}}`))
	assert.Error(t, err)
}

func TestSettingsRoundTripThroughDocument(t *testing.T) {
	in := Settings{
		Global: GlobalConfig{MaxMessagesPerRun: 10, ProcessedLabelName: "Done"},
		Sectors: map[Sector]SectorConfig{
			SectorRHF: {Enabled: true, Labels: []string{"SAP-RHF"}},
		},
	}
	data, err := MarshalSettings(in)
	require.NoError(t, err)

	out, err := ParseSettings(data)
	require.NoError(t, err)
	assert.Equal(t, in.Global, out.Global)
	assert.Equal(t, []string{"SAP-RHF"}, out.Sectors[SectorRHF].Labels)
	assert.Empty(t, out.Sectors[SectorRHF].Responsibles)
}

func TestWithDefaults(t *testing.T) {
	s := Settings{}.WithDefaults(50, "Traité")
	assert.Equal(t, 50, s.Global.MaxMessagesPerRun)
	assert.Equal(t, "Traité", s.Global.ProcessedLabelName)
	assert.NotNil(t, s.Sectors)
}

func TestParseSector(t *testing.T) {
	sector, err := ParseSector(" chr ")
	require.NoError(t, err)
	assert.Equal(t, SectorCHR, sector)
	assert.Equal(t, "sector_tickets_chr", sector.Partition())

	_, err = ParseSector("nope")
	assert.Error(t, err)
}
