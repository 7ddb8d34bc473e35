package db

import (
	"time"

	"gorm.io/datatypes"
)

// Source maps news.sources.
type Source struct {
	SourceID      int64     `gorm:"column:source_id;primaryKey;autoIncrement" json:"id"`
	Name          string    `gorm:"column:name;type:text;not null" json:"name"`
	Slug          string    `gorm:"column:slug;type:text;not null;uniqueIndex:sources_slug_key" json:"slug"`
	APIIdentifier string    `gorm:"column:api_identifier;type:text;not null;default:''" json:"api_identifier"`
	BaseURL       string    `gorm:"column:base_url;type:text;not null;default:''" json:"base_url"`
	CreatedAt     time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()" json:"updated_at"`
}

func (Source) TableName() string { return "news.sources" }

// Category maps news.categories.
type Category struct {
	CategoryID int64     `gorm:"column:category_id;primaryKey;autoIncrement" json:"id"`
	Name       string    `gorm:"column:name;type:text;not null" json:"name"`
	Slug       string    `gorm:"column:slug;type:text;not null;uniqueIndex:categories_slug_key" json:"slug"`
	CreatedAt  time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()" json:"updated_at"`
}

func (Category) TableName() string { return "news.categories" }

// Article maps news.articles. merchant_id is the only upsert identity.
type Article struct {
	ArticleID   int64      `gorm:"column:article_id;primaryKey;autoIncrement"`
	MerchantID  string     `gorm:"column:merchant_id;type:text;not null;uniqueIndex:articles_merchant_id_key"`
	Title       string     `gorm:"column:title;type:varchar(255);not null"`
	Slug        string     `gorm:"column:slug;type:text;not null"`
	Description *string    `gorm:"column:description;type:text"`
	Content     *string    `gorm:"column:content;type:text"`
	Author      *string    `gorm:"column:author;type:text"`
	URL         string     `gorm:"column:url;type:text;not null"`
	Thumbnail   *string    `gorm:"column:thumbnail;type:text"`
	PublishedAt *time.Time `gorm:"column:published_at;type:timestamptz"`
	FetchedAt   time.Time  `gorm:"column:fetched_at;type:timestamptz;not null"`
	SourceID    int64      `gorm:"column:source_id;type:bigint;not null;index"`
	CategoryID  *int64     `gorm:"column:category_id;type:bigint;index"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`

	Source   *Source   `gorm:"foreignKey:SourceID;references:SourceID;constraint:OnDelete:CASCADE"`
	Category *Category `gorm:"foreignKey:CategoryID;references:CategoryID;constraint:OnDelete:SET NULL"`
}

func (Article) TableName() string { return "news.articles" }

// UserPreference maps news.user_preferences.
type UserPreference struct {
	UserID          int64     `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	DefaultSort     string    `gorm:"column:default_sort;type:text;not null;default:published_at"`
	DefaultOrder    string    `gorm:"column:default_order;type:text;not null;default:desc"`
	ArticlesPerPage int       `gorm:"column:articles_per_page;type:integer;not null;default:20"`
	CreatedAt       time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt       time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (UserPreference) TableName() string { return "news.user_preferences" }

// UserPreferredSource maps news.user_preferred_sources.
type UserPreferredSource struct {
	UserID     int64  `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	SourceSlug string `gorm:"column:source_slug;type:text;primaryKey"`
	Position   int    `gorm:"column:position;type:integer;not null;default:0"`
}

func (UserPreferredSource) TableName() string { return "news.user_preferred_sources" }

// UserPreferredCategory maps news.user_preferred_categories.
type UserPreferredCategory struct {
	UserID       int64  `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	CategorySlug string `gorm:"column:category_slug;type:text;primaryKey"`
	Position     int    `gorm:"column:position;type:integer;not null;default:0"`
}

func (UserPreferredCategory) TableName() string { return "news.user_preferred_categories" }

// UserPreferredAuthor maps news.user_preferred_authors.
type UserPreferredAuthor struct {
	UserID     int64  `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	AuthorName string `gorm:"column:author_name;type:text;primaryKey"`
	Position   int    `gorm:"column:position;type:integer;not null;default:0"`
}

func (UserPreferredAuthor) TableName() string { return "news.user_preferred_authors" }

// IngestRun maps news.ingest_runs. One row per source per fetch run; rows of
// the same run share RunUUID.
type IngestRun struct {
	IngestRunID  int64          `gorm:"column:ingest_run_id;primaryKey;autoIncrement"`
	RunUUID      string         `gorm:"column:run_uuid;type:uuid;not null;index"`
	Source       string         `gorm:"column:source;type:text;not null"`
	Status       string         `gorm:"column:status;type:text;not null"`
	StartedAt    time.Time      `gorm:"column:started_at;type:timestamptz;not null"`
	FinishedAt   time.Time      `gorm:"column:finished_at;type:timestamptz;not null"`
	Fetched      int            `gorm:"column:fetched;type:integer;not null;default:0"`
	Inserted     int            `gorm:"column:inserted;type:integer;not null;default:0"`
	Updated      int            `gorm:"column:updated;type:integer;not null;default:0"`
	Failed       int            `gorm:"column:failed;type:integer;not null;default:0"`
	Skipped      int            `gorm:"column:skipped;type:integer;not null;default:0"`
	ErrorMessage *string        `gorm:"column:error_message;type:text"`
	BatchErrors  datatypes.JSON `gorm:"column:batch_errors;type:jsonb"`
	CreatedAt    time.Time      `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (IngestRun) TableName() string { return "news.ingest_runs" }

const (
	IngestRunCompleted = "completed"
	IngestRunFailed    = "failed"
	IngestRunEmpty     = "empty"
)

func autoMigrateModels() []any {
	return []any{
		&Source{},
		&Category{},
		&Article{},
		&UserPreference{},
		&UserPreferredSource{},
		&UserPreferredCategory{},
		&UserPreferredAuthor{},
		&IngestRun{},
	}
}
