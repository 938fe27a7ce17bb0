package mutation

import (
	"encoding/json"
	"os"

	"aprbot/internal/errors"
	"aprbot/internal/model"
)

// freqFile mirrors the historical frequency JSON: Replacement entries carry
// only target and freq, Insertion and Deletion carry target, source and
// freq. Unknown fields are ignored.
type freqFile struct {
	Replacement []model.FreqEntry `json:"Replacement"`
	Insertion   []model.FreqEntry `json:"Insertion"`
	Deletion    []model.FreqEntry `json:"Deletion"`
}

// LoadHistoricalFrequencies reads the mutation-frequency table from path.
func LoadHistoricalFrequencies(path string) (model.HistoricalFreqs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.HistoricalFreqs{}, errors.New(errors.MissingFile, "frequency table not found: "+path, err)
		}
		return model.HistoricalFreqs{}, errors.New(errors.IOError, "failed to read frequency table: "+path, err)
	}
	return ParseHistoricalFrequencies(data)
}

// ParseHistoricalFrequencies decodes a frequency table from raw JSON. A table
// with none of the three category keys is rejected; individual missing
// categories are simply empty.
func ParseHistoricalFrequencies(data []byte) (model.HistoricalFreqs, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.HistoricalFreqs{}, errors.New(errors.BadSchema, "frequency table is not valid JSON", err)
	}

	_, hasR := raw["Replacement"]
	_, hasI := raw["Insertion"]
	_, hasD := raw["Deletion"]
	if !hasR && !hasI && !hasD {
		return model.HistoricalFreqs{}, errors.New(errors.BadSchema,
			"frequency table has none of Replacement/Insertion/Deletion", nil)
	}

	var file freqFile
	if err := json.Unmarshal(data, &file); err != nil {
		return model.HistoricalFreqs{}, errors.New(errors.BadSchema, "frequency table entries are malformed", err)
	}

	return model.HistoricalFreqs{
		Replacement: file.Replacement,
		Insertion:   file.Insertion,
		Deletion:    file.Deletion,
	}, nil
}

// LookupFreq returns the historical frequency for a mutation key, or 0 when
// the table has no matching entry. Replacement matches on target only;
// Insertion and Deletion match on both target and source. Later entries win,
// matching the order-dependent lookup of the table producer.
func LookupFreq(hist model.HistoricalFreqs, mt model.MutationType) float64 {
	var entries []model.FreqEntry
	switch mt.Category {
	case model.Replacement:
		entries = hist.Replacement
	case model.Insertion:
		entries = hist.Insertion
	case model.Deletion:
		entries = hist.Deletion
	default:
		return 0
	}

	freq := 0.0
	for _, e := range entries {
		if e.TargetNode != mt.TargetNode {
			continue
		}
		if mt.Category == model.Replacement || e.SourceNode == mt.SourceNode {
			freq = e.Freq
		}
	}
	return freq
}
