// Package models defines the job records exchanged between the scraper,
// the extraction API, the recommendation model and the on-disk cache.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JobRecord is one job posting extracted from an apply link.
// Any field may be empty when the extractor was unsure.
type JobRecord struct {
	Title        string   `json:"job_title" yaml:"job_title" jsonschema:"Job title as posted"`
	Subdivision  string   `json:"sub_division_of_organization" yaml:"sub_division_of_organization" jsonschema:"Team or division that is hiring"`
	KeySkills    []string `json:"key_skills" yaml:"key_skills" jsonschema:"Skills the posting asks for"`
	Compensation string   `json:"compensation" yaml:"compensation" jsonschema:"Salary or pay range, blank if not stated"`
	Location     string   `json:"location" yaml:"location" jsonschema:"Office location or remote policy"`
	ApplyLink    string   `json:"apply_link" yaml:"apply_link" jsonschema:"URL of the application page"`
}

// ParseJobRecord decodes a JobRecord after validating it against
// JobRecordSchema, which rejects missing fields and nulls.
func ParseJobRecord(data []byte) (*JobRecord, error) {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("decode job record: %w", err)
	}
	if err := jobRecordValidator.Validate(instance); err != nil {
		return nil, fmt.Errorf("job record: %w", err)
	}

	var job JobRecord
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job record: %w", err)
	}
	return &job, nil
}

// JobRecordSet is an ordered list of jobs. Order is completion order after
// extraction and model rank after recommendation.
type JobRecordSet struct {
	Jobs []JobRecord `json:"jobs" yaml:"jobs"`
}

// UnmarshalJSON accepts both {"jobs": [...]} and a bare array of jobs.
func (s *JobRecordSet) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var jobs []JobRecord
		if err := json.Unmarshal(trimmed, &jobs); err != nil {
			return err
		}
		s.Jobs = jobs
		return nil
	}

	type wrapped JobRecordSet
	var w wrapped
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return err
	}
	if w.Jobs == nil {
		return fmt.Errorf("job record set: missing %q", "jobs")
	}
	s.Jobs = w.Jobs
	return nil
}

// ParseJobRecordSet decodes either set form after validating it against
// JobRecordSetSchema.
func ParseJobRecordSet(data []byte) (*JobRecordSet, error) {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("decode job record set: %w", err)
	}
	if items, ok := instance.([]any); ok {
		instance = map[string]any{"jobs": items}
	}
	if err := jobRecordSetValidator.Validate(instance); err != nil {
		return nil, fmt.Errorf("job record set: %w", err)
	}

	var set JobRecordSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode job record set: %w", err)
	}
	return &set, nil
}

// Len returns the number of jobs in the set.
func (s *JobRecordSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Jobs)
}

// ApplyLinks is the shape requested from the scraping API.
type ApplyLinks struct {
	ApplyLinks []string `json:"apply_links"`
}

// ScrapeResult is the cached scrape payload for a seed page.
type ScrapeResult struct {
	Metadata json.RawMessage `json:"metadata,omitempty"`
	JSON     *ApplyLinks     `json:"json"`
}

// Links returns the apply links, or nil when the scrape produced none.
func (r *ScrapeResult) Links() []string {
	if r == nil || r.JSON == nil {
		return nil
	}
	return r.JSON.ApplyLinks
}
