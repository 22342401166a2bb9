package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Sample is a single window produced by the streaming builder
type Sample struct {
	Start  int         `json:"start"`
	TEnd   time.Time   `json:"t_end"` // timestamp of the target observation
	Inputs [][]float64 `json:"inputs"`
	Target []float64   `json:"target"`
}

// SampleRecord is the persisted form of a prepared window
type SampleRecord struct {
	SampleID  string      `json:"sample_id"`
	Series    string      `json:"series"`
	Split     string      `json:"split"`
	Start     int         `json:"start"`
	TEnd      time.Time   `json:"t_end"`
	SeqLength int         `json:"seq_length"`
	Inputs    [][]float64 `json:"inputs,omitempty"`
	Target    []float64   `json:"target"`
	CreatedAt time.Time   `json:"created_at"`
}

// GenerateSampleID creates a deterministic sample ID.
// Format: hash(series|t_end|seq_length|version), first 16 bytes as hex.
// The split is not part of the key so re-splitting the same series upserts rows.
func GenerateSampleID(series string, tEnd time.Time, seqLength, version int) string {
	data := fmt.Sprintf("%s|%d|%d|%d", series, tEnd.UnixNano(), seqLength, version)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}

// Flatten concatenates the input rows into a single vector
func (r *SampleRecord) Flatten() []float32 {
	return FlattenRows(r.Inputs)
}

// FlattenRows concatenates rows into a float32 vector, row by row
func FlattenRows(rows [][]float64) []float32 {
	if len(rows) == 0 {
		return nil
	}
	out := make([]float32, 0, len(rows)*len(rows[0]))
	for _, row := range rows {
		for _, v := range row {
			out = append(out, float32(v))
		}
	}
	return out
}
