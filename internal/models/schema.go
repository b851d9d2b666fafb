package models

import (
	"fmt"
	"slices"

	"github.com/google/jsonschema-go/jsonschema"
)

// JSON schemas sent to the extraction API and embedded in the
// recommendation prompt. They are inferred from the struct types, so the
// json tags are the single source of field names.
var (
	// JobRecordSchema describes a single JobRecord.
	JobRecordSchema = inferSchema[JobRecord]("JobSchema")
	// ApplyLinksSchema describes the scrape payload for a listings page.
	ApplyLinksSchema = inferSchema[ApplyLinks]("ApplyLinksSchema")

	jobRecordValidator    = resolveSchema(JobRecordSchema)
	jobRecordSetValidator = resolveSchema(JobRecordSetSchema(0))
)

// JobRecordSetSchema describes a ranked list of jobs. When n > 0 the list
// length is pinned to n.
func JobRecordSetSchema(n int) *jsonschema.Schema {
	s := inferSchema[JobRecordSet]("JobSchemas")
	if n > 0 {
		jobs := s.Properties["jobs"]
		jobs.MinItems = &n
		jobs.MaxItems = &n
	}
	return s
}

func inferSchema[T any](title string) *jsonschema.Schema {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("models: infer %s schema: %v", title, err))
	}
	s.Title = title
	tidySchema(s)
	return s
}

// tidySchema drops the null alternative inferred for slices, since a
// missing list must be sent as [], and lets objects carry extra keys.
func tidySchema(s *jsonschema.Schema) {
	if s == nil {
		return
	}
	if i := slices.Index(s.Types, "null"); i >= 0 {
		types := slices.Delete(slices.Clone(s.Types), i, i+1)
		if len(types) == 1 {
			s.Type, s.Types = types[0], nil
		} else {
			s.Types = types
		}
	}
	s.AdditionalProperties = nil
	for _, p := range s.Properties {
		tidySchema(p)
	}
	tidySchema(s.Items)
}

func resolveSchema(s *jsonschema.Schema) *jsonschema.Resolved {
	r, err := s.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("models: resolve %s schema: %v", s.Title, err))
	}
	return r
}
