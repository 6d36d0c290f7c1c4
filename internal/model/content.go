package model

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Well-known content bucket keys. The store accepts any key matching
// BucketKeyPattern; these are the ones the site renders.
const (
	BucketProfile      = "profile"
	BucketProjects     = "projects"
	BucketAchievements = "achievements"
	BucketNotes        = "notes"
	BucketOpenSource   = "opensource"
	BucketSettings     = "settings"
)

// KnownBuckets lists the buckets in the order the site loads them.
var KnownBuckets = []string{
	BucketProfile,
	BucketProjects,
	BucketAchievements,
	BucketNotes,
	BucketOpenSource,
	BucketSettings,
}

// BucketKeyPattern constrains bucket keys after normalization.
var BucketKeyPattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// NormalizeBucketKey trims and lower-cases a key. It does not validate.
func NormalizeBucketKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// ContentBucket is one row of the content table: an opaque JSON document
// addressed by key. Writes always replace Data wholesale.
type ContentBucket struct {
	Key       string          `json:"key" db:"bucket_key"`
	Data      json.RawMessage `json:"data" db:"data"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// ---------------------------------------------------------------------------
// Typed documents
// ---------------------------------------------------------------------------

// SocialLink is an external profile link shown in the site header.
type SocialLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
	Icon  string `json:"icon,omitempty"`
}

// Profile is the document stored under the "profile" bucket.
type Profile struct {
	Name     string       `json:"name"`
	Title    string       `json:"title"`
	Tagline  string       `json:"tagline"`
	Bio      string       `json:"bio"`
	Location string       `json:"location"`
	Email    string       `json:"email"`
	Avatar   string       `json:"avatar,omitempty"`
	Resume   string       `json:"resume,omitempty"`
	Skills   []string     `json:"skills"`
	Socials  []SocialLink `json:"socials"`
}

// Project is one entry of the "projects" bucket.
type Project struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tech        []string `json:"tech"`
	RepoURL     string   `json:"repoUrl,omitempty"`
	LiveURL     string   `json:"liveUrl,omitempty"`
	Image       string   `json:"image,omitempty"`
	Featured    bool     `json:"featured"`
	Year        int      `json:"year,omitempty"`
}

// Achievement is one entry of the "achievements" bucket.
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Issuer      string `json:"issuer,omitempty"`
	Date        string `json:"date,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Note is one entry of the "notes" bucket (long-form writings).
type Note struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Summary     string   `json:"summary,omitempty"`
	Body        string   `json:"body"`
	Tags        []string `json:"tags"`
	PublishedAt string   `json:"publishedAt,omitempty"`
	Draft       bool     `json:"draft"`
}

// OpenSourceContribution is one entry of the "opensource" bucket.
type OpenSourceContribution struct {
	ID          string `json:"id"`
	Project     string `json:"project"`
	RepoURL     string `json:"repoUrl"`
	Title       string `json:"title"`
	PRURL       string `json:"prUrl,omitempty"`
	Status      string `json:"status"` // open, merged, closed
	MergedAt    string `json:"mergedAt,omitempty"`
	Description string `json:"description,omitempty"`
}

// Settings is the document stored under the "settings" bucket.
type Settings struct {
	SiteTitle       string `json:"siteTitle"`
	Theme           string `json:"theme"`
	ShowProjects    bool   `json:"showProjects"`
	ShowAchievement bool   `json:"showAchievements"`
	ShowNotes       bool   `json:"showNotes"`
	ShowOpenSource  bool   `json:"showOpenSource"`
	ContactEnabled  bool   `json:"contactEnabled"`
}

// Portfolio is the fully typed view of every known bucket.
type Portfolio struct {
	Profile      Profile                  `json:"profile"`
	Projects     []Project                `json:"projects"`
	Achievements []Achievement            `json:"achievements"`
	Notes        []Note                   `json:"notes"`
	OpenSource   []OpenSourceContribution `json:"opensource"`
	Settings     Settings                 `json:"settings"`
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// DefaultProfile is served when no profile has been written yet.
func DefaultProfile() Profile {
	return Profile{
		Skills:  []string{},
		Socials: []SocialLink{},
	}
}

// DefaultSettings is served when no settings have been written yet.
func DefaultSettings() Settings {
	return Settings{
		SiteTitle:       "Portfolio",
		Theme:           "dark",
		ShowProjects:    true,
		ShowAchievement: true,
		ShowNotes:       true,
		ShowOpenSource:  true,
		ContactEnabled:  true,
	}
}

// DefaultPortfolio returns the typed defaults for every known bucket.
func DefaultPortfolio() Portfolio {
	return Portfolio{
		Profile:      DefaultProfile(),
		Projects:     []Project{},
		Achievements: []Achievement{},
		Notes:        []Note{},
		OpenSource:   []OpenSourceContribution{},
		Settings:     DefaultSettings(),
	}
}

var nullDocument = json.RawMessage("null")

// DefaultDocument returns the fallback JSON document for a bucket key.
// Unknown keys fall back to JSON null.
func DefaultDocument(key string) json.RawMessage {
	var v any
	switch key {
	case BucketProfile:
		v = DefaultProfile()
	case BucketSettings:
		v = DefaultSettings()
	case BucketProjects, BucketAchievements, BucketNotes, BucketOpenSource:
		return json.RawMessage("[]")
	default:
		return nullDocument
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nullDocument
	}
	return b
}
