// Package faults loads spectrum-based fault-localization scores and turns
// them into the ranked location list the rest of the pipeline consumes.
package faults

import (
	"encoding/json"
	"os"
	"sort"
	"strings"

	"aprbot/internal/errors"
	"aprbot/internal/logging"
	"aprbot/internal/model"
)

// Reader parses SBFL score tables.
type Reader struct {
	logger *logging.Logger

	// pathMarker is stripped from the front of incoming file paths to make
	// them repository-relative. Everything up to and including the marker's
	// last byte is removed.
	pathMarker string

	// maxLocations caps the returned list; 0 means unlimited.
	maxLocations int
}

// NewReader creates a fault reader.
func NewReader(logger *logging.Logger, pathMarker string, maxLocations int) *Reader {
	return &Reader{
		logger:       logger.WithComponent("faults"),
		pathMarker:   pathMarker,
		maxLocations: maxLocations,
	}
}

// sbflFile mirrors the SBFL input JSON. Unknown fields are ignored.
type sbflFile struct {
	Data json.RawMessage `json:"data"`
}

type sbflEntry struct {
	File     *string `json:"file"`
	Function string  `json:"function"`
	Line     *int    `json:"line"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
}

// LocalizeFaults reads the SBFL JSON at path and returns locations sorted by
// descending score, ties broken by (file, line) ascending.
func (r *Reader) LocalizeFaults(path string) ([]model.SuspiciousLocation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.MissingFile, "SBFL input not found: "+path, err)
		}
		return nil, errors.New(errors.IOError, "failed to read SBFL input: "+path, err)
	}

	return r.Parse(data)
}

// Parse decodes an SBFL score table from raw JSON.
func (r *Reader) Parse(data []byte) ([]model.SuspiciousLocation, error) {
	var file sbflFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.New(errors.BadSchema, "SBFL input is not valid JSON", err)
	}
	if len(file.Data) == 0 || string(file.Data) == "null" {
		return nil, errors.New(errors.BadSchema, "SBFL input is missing the 'data' key", nil)
	}

	var entries []sbflEntry
	if err := json.Unmarshal(file.Data, &entries); err != nil {
		return nil, errors.New(errors.BadSchema, "SBFL 'data' is not an array", err)
	}

	locations := make([]model.SuspiciousLocation, 0, len(entries))
	dropped := 0
	for _, e := range entries {
		if e.File == nil || e.Line == nil {
			dropped++
			continue
		}
		locations = append(locations, model.SuspiciousLocation{
			FilePath:            r.normalizePath(*e.File),
			LineNumber:          *e.Line,
			FunctionName:        e.Function,
			SuspiciousnessScore: e.Score,
			Reason:              e.Reason,
		})
	}

	if dropped > 0 {
		r.logger.Warn("Dropped SBFL entries missing file or line", map[string]interface{}{
			"dropped": dropped,
		})
	}

	sort.SliceStable(locations, func(i, j int) bool {
		a, b := locations[i], locations[j]
		if a.SuspiciousnessScore != b.SuspiciousnessScore {
			return a.SuspiciousnessScore > b.SuspiciousnessScore
		}
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		return a.LineNumber < b.LineNumber
	})

	if r.maxLocations > 0 && len(locations) > r.maxLocations {
		locations = locations[:r.maxLocations]
	}

	r.logger.Info("Fault localization table loaded", map[string]interface{}{
		"locations": len(locations),
	})

	return locations, nil
}

// normalizePath makes an SBFL path repository-relative by cutting everything
// up to and including the configured marker.
func (r *Reader) normalizePath(path string) string {
	if r.pathMarker == "" {
		return path
	}
	if idx := strings.Index(path, r.pathMarker); idx >= 0 {
		return path[idx+len(r.pathMarker):]
	}
	return path
}
