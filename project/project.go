// Package project models the tenant boundary: a Project carries a
// profile_config document declaring the allowed profile taxonomy,
// language, and feature flags.
package project

import (
	"context"
	"strings"
	"time"

	"github.com/memobase-dev/memobase-go/errs"
	"gopkg.in/yaml.v3"
)

// Language selects the context-pack render template.
type Language string

const (
	LanguageEN Language = "en"
	LanguageZH Language = "zh"
)

// MaxConfigBytes bounds the size of an accepted profile_config document.
const MaxConfigBytes = 64 * 1024

// SubTopic is one leaf of the profile taxonomy.
type SubTopic struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// UnmarshalYAML accepts either a bare string or a {name, description} map,
// matching the document's "sub_topics: [name | {name, description}]" grammar.
func (s *SubTopic) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		s.Name = value.Value
		return nil
	}
	type plain SubTopic
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = SubTopic(p)
	return nil
}

// Topic is one top-level profile topic and its declared sub-topics.
type Topic struct {
	Topic       string     `yaml:"topic"`
	Description string     `yaml:"description,omitempty"`
	SubTopics   []SubTopic `yaml:"sub_topics"`
}

// EventTagDecl declares one event tag name allowed by a project.
type EventTagDecl struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// Config is the parsed profile_config document (§6).
type Config struct {
	Language               Language       `yaml:"language"`
	AdditionalUserProfiles []Topic        `yaml:"additional_user_profiles"`
	OverwriteUserProfiles  []Topic        `yaml:"overwrite_user_profiles"`
	EnableEventSummary     bool           `yaml:"enable_event_summary"`
	ProfileStrictMode      bool           `yaml:"profile_strict_mode"`
	EventTags              []EventTagDecl `yaml:"event_tags"`

	MaxSubtopics           int `yaml:"max_profile_subtopics"`
	MaxPreProfileTokenSize int `yaml:"max_pre_profile_token_size"`
	MaxBufferTokens        int `yaml:"max_buffer_tokens"`
	MaxProcessTokens       int `yaml:"max_process_tokens"`
	MinEventSummaryTokens  int `yaml:"min_event_summary_tokens"`
}

// DefaultTopics is the built-in taxonomy used when a project declares
// neither additional_user_profiles nor overwrite_user_profiles.
func DefaultTopics() []Topic {
	return []Topic{
		{Topic: "basic_info", SubTopics: []SubTopic{{Name: "name"}, {Name: "age"}, {Name: "location"}}},
		{Topic: "psychological", SubTopics: []SubTopic{{Name: "mood"}, {Name: "personality"}}},
		{Topic: "interest", SubTopics: []SubTopic{{Name: "hobby"}, {Name: "travel"}}},
	}
}

// ParseConfig parses a profile_config document, rejecting documents over
// MaxConfigBytes or with invalid YAML.
func ParseConfig(data []byte) (*Config, error) {
	if len(data) > MaxConfigBytes {
		return nil, errs.New(errs.BadRequest, "profile_config exceeds %d bytes", MaxConfigBytes)
	}
	c := &Config{
		Language:               LanguageEN,
		MaxSubtopics:           10,
		MaxPreProfileTokenSize: 300,
		MaxBufferTokens:        1600,
		MaxProcessTokens:       8000,
		MinEventSummaryTokens:  200,
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, errs.Wrap(errs.BadRequest, err, "invalid profile_config")
		}
	}
	if c.Language != LanguageEN && c.Language != LanguageZH {
		c.Language = LanguageEN
	}
	return c, nil
}

// Topics returns the effective taxonomy: overwrite replaces the defaults
// entirely, additional appends to them.
func (c *Config) Topics() []Topic {
	if len(c.OverwriteUserProfiles) > 0 {
		return c.OverwriteUserProfiles
	}
	return append(DefaultTopics(), c.AdditionalUserProfiles...)
}

// Allowed reports whether (topic, subTopic), already normalized, is in the
// project's declared taxonomy. Inputs must already be normalized.
func (c *Config) Allowed(topic, subTopic string) bool {
	for _, t := range c.Topics() {
		if NormalizeTopic(t.Topic) != topic {
			continue
		}
		for _, st := range t.SubTopics {
			if NormalizeTopic(st.Name) == subTopic {
				return true
			}
		}
	}
	return false
}

// AllowedEventTag reports whether name is declared in event_tags.
func (c *Config) AllowedEventTag(name string) bool {
	for _, t := range c.EventTags {
		if t.Name == name {
			return true
		}
	}
	return false
}

// NormalizeTopic lower-cases s and replaces whitespace runs with "_", the
// normalization rule shared by topic and sub_topic values (§4.2).
func NormalizeTopic(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}

// Project is the tenant boundary: a UUID plus its parsed profile_config.
type Project struct {
	ID        string
	Config    *Config
	CreatedAt time.Time
}

// Store persists project identity and profile_config documents.
type Store interface {
	Put(ctx context.Context, projectID string, configDoc []byte) (*Project, error)
	Get(ctx context.Context, projectID string) (*Project, error)
	Delete(ctx context.Context, projectID string) error
}
