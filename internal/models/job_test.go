package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobRecord(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    *JobRecord
		wantErr bool
	}{
		{
			name: "complete record",
			in: `{"job_title":"Engineer","sub_division_of_organization":"Infra","key_skills":["Go","K8s"],
				"compensation":"$200k","location":"SF","apply_link":"https://x/1"}`,
			want: &JobRecord{
				Title:        "Engineer",
				Subdivision:  "Infra",
				KeySkills:    []string{"Go", "K8s"},
				Compensation: "$200k",
				Location:     "SF",
				ApplyLink:    "https://x/1",
			},
		},
		{
			name: "blank fields allowed",
			in: `{"job_title":"","sub_division_of_organization":"","key_skills":[],
				"compensation":"","location":"","apply_link":""}`,
			want: &JobRecord{KeySkills: []string{}},
		},
		{
			name: "extra keys ignored",
			in: `{"job_title":"SRE","sub_division_of_organization":"","key_skills":["Go"],
				"compensation":"","location":"","apply_link":"","team_size":12}`,
			want: &JobRecord{Title: "SRE", KeySkills: []string{"Go"}},
		},
		{
			name:    "missing field",
			in:      `{"job_title":"Engineer"}`,
			wantErr: true,
		},
		{
			name: "null field",
			in: `{"job_title":null,"sub_division_of_organization":"","key_skills":[],
				"compensation":"","location":"","apply_link":""}`,
			wantErr: true,
		},
		{
			name: "wrong type",
			in: `{"job_title":"a","sub_division_of_organization":"","key_skills":"Go",
				"compensation":"","location":"","apply_link":""}`,
			wantErr: true,
		},
		{
			name:    "not an object",
			in:      `[1,2]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJobRecord([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJobRecordSetUnmarshal(t *testing.T) {
	t.Run("wrapped object", func(t *testing.T) {
		var s JobRecordSet
		require.NoError(t, json.Unmarshal([]byte(`{"jobs":[{"job_title":"A"},{"job_title":"B"}]}`), &s))
		require.Len(t, s.Jobs, 2)
		assert.Equal(t, "B", s.Jobs[1].Title)
	})

	t.Run("bare array", func(t *testing.T) {
		var s JobRecordSet
		require.NoError(t, json.Unmarshal([]byte(`[{"job_title":"A"}]`), &s))
		require.Len(t, s.Jobs, 1)
		assert.Equal(t, "A", s.Jobs[0].Title)
	})

	t.Run("missing jobs key", func(t *testing.T) {
		var s JobRecordSet
		assert.Error(t, json.Unmarshal([]byte(`{"other":[]}`), &s))
	})

	t.Run("nil set has zero length", func(t *testing.T) {
		var s *JobRecordSet
		assert.Equal(t, 0, s.Len())
	})
}

func TestScrapeResultLinks(t *testing.T) {
	var r ScrapeResult
	require.NoError(t, json.Unmarshal([]byte(`{"metadata":{"title":"Jobs"},"json":{"apply_links":["a","b"]}}`), &r))
	assert.Equal(t, []string{"a", "b"}, r.Links())

	var empty *ScrapeResult
	assert.Nil(t, empty.Links())
}

func TestJobRecordSetSchemaPinsLength(t *testing.T) {
	jobs := JobRecordSetSchema(3).Properties["jobs"]
	require.NotNil(t, jobs)
	require.NotNil(t, jobs.MinItems)
	require.NotNil(t, jobs.MaxItems)
	assert.Equal(t, 3, *jobs.MinItems)
	assert.Equal(t, 3, *jobs.MaxItems)

	unpinned := JobRecordSetSchema(0).Properties["jobs"]
	assert.Nil(t, unpinned.MinItems)
	assert.Nil(t, unpinned.MaxItems)
}

func TestJobRecordSchema(t *testing.T) {
	s := JobRecordSchema
	assert.Equal(t, "JobSchema", s.Title)
	assert.Equal(t, "object", s.Type)
	assert.ElementsMatch(t, []string{
		"job_title", "sub_division_of_organization", "key_skills",
		"compensation", "location", "apply_link",
	}, s.Required)

	skills := s.Properties["key_skills"]
	require.NotNil(t, skills)
	assert.Equal(t, "array", skills.Type, "null is not an accepted skills value")
	require.NotNil(t, skills.Items)
	assert.Equal(t, "string", skills.Items.Type)
	assert.Equal(t, "Job title as posted", s.Properties["job_title"].Description)

	data, err := json.Marshal(ApplyLinksSchema)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"apply_links"`)
}

func TestParseJobRecordSet(t *testing.T) {
	const job = `{"job_title":"Backend Engineer","sub_division_of_organization":"","key_skills":null,"compensation":"","location":"Remote","apply_link":"https://x/1"}`
	const good = `{"job_title":"Backend Engineer","sub_division_of_organization":"","key_skills":["Go"],"compensation":"","location":"Remote","apply_link":"https://x/1"}`

	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{"wrapped", `{"jobs":[` + good + `]}`, 1, false},
		{"bare array", `[` + good + `,` + good + `]`, 2, false},
		{"empty list", `{"jobs":[]}`, 0, false},
		{"null field rejected", `{"jobs":[` + job + `]}`, 0, true},
		{"missing field rejected", `[{"job_title":"x"}]`, 0, true},
		{"missing jobs key", `{"results":[]}`, 0, true},
		{"not json", `here are your jobs`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := ParseJobRecordSet([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, set.Jobs, tt.want)
		})
	}
}
