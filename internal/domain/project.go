package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Platform identifies a social network a post can be delivered to.
type Platform string

const (
	PlatformLinkedIn Platform = "linkedin"
	PlatformTwitter  Platform = "twitter"
	PlatformTelegram Platform = "telegram"
)

// PostForm tells which of the two generated outputs a platform receives.
type PostForm string

const (
	FormLong  PostForm = "long"
	FormShort PostForm = "short"
)

// Form returns the post form delivered to the platform.
func (p Platform) Form() PostForm {
	if p == PlatformTwitter {
		return FormShort
	}
	return FormLong
}

// ParsePlatforms converts a comma separated list (or already split values) into platforms.
func ParsePlatforms(values ...string) ([]Platform, error) {
	var out []Platform
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			switch Platform(part) {
			case PlatformLinkedIn, PlatformTwitter, PlatformTelegram:
				out = append(out, Platform(part))
			default:
				return nil, fmt.Errorf("unknown platform %q", part)
			}
		}
	}
	return out, nil
}

// PlatformFlags toggles delivery per platform for a project.
type PlatformFlags struct {
	LinkedIn bool `yaml:"linkedin" json:"linkedin"`
	Twitter  bool `yaml:"twitter" json:"twitter"`
	Telegram bool `yaml:"telegram" json:"telegram"`
}

// Enabled reports whether the platform is switched on.
func (f PlatformFlags) Enabled(p Platform) bool {
	switch p {
	case PlatformLinkedIn:
		return f.LinkedIn
	case PlatformTwitter:
		return f.Twitter
	case PlatformTelegram:
		return f.Telegram
	default:
		return false
	}
}

// Project is a tenant configuration read by every pipeline run.
type Project struct {
	ID          string
	DisplayName string
	Description string
	BrandVoice  string
	Hashtags    []string
	Feeds       []string
	Scoring     ScoringConfig
	Templates   TemplateSet
	Schedule    []ScheduleEntry
	Platforms   PlatformFlags

	// QualityThreshold overrides the global minimum quality score when positive.
	QualityThreshold float64
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ScheduleEntry is one cron expression with an optional platform restriction.
type ScheduleEntry struct {
	Cron      string     `yaml:"cron" json:"cron"`
	Platforms []Platform `yaml:"platforms,omitempty" json:"platforms,omitempty"`
}

// RecencyBucket grants Bonus to candidates younger than MaxAgeHours.
type RecencyBucket struct {
	MaxAgeHours float64 `yaml:"maxAgeHours" json:"max_age_hours"`
	Bonus       float64 `yaml:"bonus" json:"bonus"`
}

// ScoringConfig is the per-project relevance weight table.
type ScoringConfig struct {
	BaseScore        float64            `yaml:"baseScore" json:"base_score"`
	Keywords         map[string]float64 `yaml:"keywords" json:"keywords"`
	NegativeKeywords map[string]float64 `yaml:"negativeKeywords" json:"negative_keywords"`
	// ComboBonuses keys are "+"-joined category fragments, e.g. "ai+sales".
	ComboBonuses map[string]float64 `yaml:"comboBonuses" json:"combo_bonuses"`
	Recency      []RecencyBucket    `yaml:"recency" json:"recency"`
}

// DefaultScoring mirrors the weights used when a project leaves them empty.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		BaseScore: 10,
		Recency: []RecencyBucket{
			{MaxAgeHours: 6, Bonus: 5},
			{MaxAgeHours: 24, Bonus: 2},
			{MaxAgeHours: 48, Bonus: 0},
		},
	}
}

// WithDefaults fills unset fields from DefaultScoring.
func (s ScoringConfig) WithDefaults() ScoringConfig {
	def := DefaultScoring()
	if s.BaseScore == 0 {
		s.BaseScore = def.BaseScore
	}
	if len(s.Recency) == 0 {
		s.Recency = def.Recency
	}
	return s
}

// SortedRecency returns the buckets ordered by ascending age threshold.
func (s ScoringConfig) SortedRecency() []RecencyBucket {
	out := append([]RecencyBucket(nil), s.Recency...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MaxAgeHours < out[j].MaxAgeHours })
	return out
}

// Validate rejects weight tables that cannot be applied.
func (s ScoringConfig) Validate() error {
	for key := range s.Keywords {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("keyword %q is blank", key)
		}
	}
	for key := range s.NegativeKeywords {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("negative keyword %q is blank", key)
		}
	}
	for _, b := range s.Recency {
		if b.MaxAgeHours <= 0 {
			return fmt.Errorf("recency bucket threshold must be positive, got %v", b.MaxAgeHours)
		}
	}
	for key := range s.ComboBonuses {
		for _, part := range strings.Split(key, "+") {
			if strings.TrimSpace(part) == "" {
				return fmt.Errorf("combo bonus %q has an empty part", key)
			}
		}
	}
	return nil
}

// TemplateSet holds the fallback templates of a project. Slots: {emoji} {title}
// {short_title} {description} {link} {hashtags}.
type TemplateSet struct {
	Long   []string `yaml:"long" json:"long"`
	Short  []string `yaml:"short" json:"short"`
	Emojis []string `yaml:"emojis" json:"emojis"`
}

// Empty reports whether the set lacks templates for either form.
func (t TemplateSet) Empty() bool {
	return len(t.Long) == 0 || len(t.Short) == 0
}

// AccountType distinguishes personal and organization publish targets.
type AccountType string

const (
	AccountPersonal     AccountType = "personal"
	AccountOrganization AccountType = "organization"
)

// Profile is a publish target with its credentials.
type Profile struct {
	ID             int64
	ProjectID      string
	Platform       Platform
	AccountType    AccountType
	DisplayName    string
	AccessToken    string
	PlatformUserID string
	Active         bool
}

// Label names the target in step logs, e.g. "linkedin_organization".
func (p Profile) Label() string {
	return fmt.Sprintf("%s_%s", p.Platform, p.AccountType)
}
