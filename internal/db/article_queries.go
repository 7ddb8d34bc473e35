package db

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArticleUpsert is one row handed to UpsertArticleBatch.
type ArticleUpsert struct {
	MerchantID  string
	Title       string
	Slug        string
	Description *string
	Content     *string
	Author      *string
	URL         string
	Thumbnail   *string
	PublishedAt *time.Time
	FetchedAt   time.Time
	SourceID    int64
	CategoryID  *int64
}

// Every column except the identity and created_at is refreshed on conflict.
var articleUpdateColumns = []string{
	"title",
	"slug",
	"description",
	"content",
	"source_id",
	"author",
	"category_id",
	"url",
	"thumbnail",
	"published_at",
	"fetched_at",
	"updated_at",
}

// UpsertArticleBatch writes one batch inside a single transaction and returns
// how many of its merchant ids already existed before the write.
func (p *Pool) UpsertArticleBatch(ctx context.Context, rows []ArticleUpsert) (int, error) {
	if p == nil || p.gdb == nil {
		return 0, fmt.Errorf("database pool is not initialized")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	merchantIDs := make([]string, 0, len(rows))
	models := make([]Article, 0, len(rows))
	for _, row := range rows {
		merchantIDs = append(merchantIDs, row.MerchantID)
		models = append(models, Article{
			MerchantID:  row.MerchantID,
			Title:       row.Title,
			Slug:        row.Slug,
			Description: row.Description,
			Content:     row.Content,
			Author:      row.Author,
			URL:         row.URL,
			Thumbnail:   row.Thumbnail,
			PublishedAt: row.PublishedAt,
			FetchedAt:   row.FetchedAt.UTC(),
			SourceID:    row.SourceID,
			CategoryID:  row.CategoryID,
		})
	}

	existing := 0
	err := p.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := existingMerchantIDs(tx, merchantIDs)
		if err != nil {
			return err
		}
		existing = len(found)

		upsert := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "merchant_id"}},
			DoUpdates: clause.AssignmentColumns(articleUpdateColumns),
		})
		if err := upsert.Create(&models).Error; err != nil {
			return fmt.Errorf("upsert articles: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return existing, nil
}

// ExistingMerchantIDs returns the subset of merchantIDs already stored.
func (p *Pool) ExistingMerchantIDs(ctx context.Context, merchantIDs []string) ([]string, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	return existingMerchantIDs(p.gdb.WithContext(ctx), merchantIDs)
}

func existingMerchantIDs(tx *gorm.DB, merchantIDs []string) ([]string, error) {
	if len(merchantIDs) == 0 {
		return nil, nil
	}
	var found []string
	if err := tx.Model(&Article{}).
		Where("merchant_id IN ?", merchantIDs).
		Pluck("merchant_id", &found).Error; err != nil {
		return nil, fmt.Errorf("lookup existing merchant ids: %w", err)
	}
	return found, nil
}

// ArticleSearch is the storage-level form of a filter specification. Nil
// pointers and empty slices mean the filter is not applied.
type ArticleSearch struct {
	SearchTerm       *string
	Sources          []string
	Categories       []string
	Author           *string
	PreferredAuthors []string
	FromDate         *time.Time
	ToDate           *time.Time
	Sort             string
	Order            string
	PerPage          int
	Page             int
}

// ArticleListItem is an article joined with its source and category.
type ArticleListItem struct {
	ArticleID    int64      `gorm:"column:article_id" json:"id"`
	MerchantID   string     `gorm:"column:merchant_id" json:"merchant_id"`
	Title        string     `gorm:"column:title" json:"title"`
	Slug         string     `gorm:"column:slug" json:"slug"`
	Description  *string    `gorm:"column:description" json:"description,omitempty"`
	Content      *string    `gorm:"column:content" json:"content,omitempty"`
	Author       *string    `gorm:"column:author" json:"author,omitempty"`
	URL          string     `gorm:"column:url" json:"url"`
	Thumbnail    *string    `gorm:"column:thumbnail" json:"thumbnail,omitempty"`
	PublishedAt  *time.Time `gorm:"column:published_at" json:"published_at,omitempty"`
	FetchedAt    time.Time  `gorm:"column:fetched_at" json:"fetched_at"`
	SourceID     int64      `gorm:"column:source_id" json:"source_id"`
	SourceSlug   string     `gorm:"column:source_slug" json:"source_slug"`
	SourceName   string     `gorm:"column:source_name" json:"source_name"`
	CategoryID   *int64     `gorm:"column:category_id" json:"category_id,omitempty"`
	CategorySlug *string    `gorm:"column:category_slug" json:"category_slug,omitempty"`
	CategoryName *string    `gorm:"column:category_name" json:"category_name,omitempty"`
	CreatedAt    time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

// ArticlePage is one page of search results plus pagination totals.
type ArticlePage struct {
	Items    []ArticleListItem `json:"data"`
	Total    int64             `json:"total"`
	Page     int               `json:"current_page"`
	PerPage  int               `json:"per_page"`
	LastPage int               `json:"last_page"`
}

const (
	defaultSearchSort    = "published_at"
	defaultSearchOrder   = "desc"
	defaultSearchPerPage = 20
	maxSearchPerPage     = 100
)

var searchSortColumns = map[string]string{
	"published_at": "a.published_at",
	"created_at":   "a.created_at",
	"title":        "a.title",
}

const articleSearchColumns = `
	a.article_id,
	a.merchant_id,
	a.title,
	a.slug,
	a.description,
	a.content,
	a.author,
	a.url,
	a.thumbnail,
	a.published_at,
	a.fetched_at,
	a.source_id,
	s.slug AS source_slug,
	s.name AS source_name,
	a.category_id,
	c.slug AS category_slug,
	c.name AS category_name,
	a.created_at,
	a.updated_at`

// pageOffset saturates instead of overflowing, so an absurd page reads past
// the end and comes back empty.
func pageOffset(page, perPage int) int {
	if page <= 1 || perPage <= 0 {
		return 0
	}
	return min(page-1, math.MaxInt/perPage) * perPage
}

// SearchArticles runs a filtered, sorted, paginated article query.
func (p *Pool) SearchArticles(ctx context.Context, search ArticleSearch) (*ArticlePage, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	perPage := search.PerPage
	if perPage <= 0 {
		perPage = defaultSearchPerPage
	}
	perPage = min(perPage, maxSearchPerPage)
	page := max(search.Page, 1)

	base := applyArticleFilters(
		p.gdb.WithContext(ctx).
			Table("news.articles AS a").
			Joins("JOIN news.sources s ON s.source_id = a.source_id").
			Joins("LEFT JOIN news.categories c ON c.category_id = a.category_id"),
		search,
	)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count articles: %w", err)
	}

	items := make([]ArticleListItem, 0, perPage)
	if err := base.Session(&gorm.Session{}).
		Select(articleSearchColumns).
		Order(articleSearchOrder(search.Sort, search.Order)).
		Limit(perPage).
		Offset(pageOffset(page, perPage)).
		Scan(&items).Error; err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}

	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	return &ArticlePage{
		Items:    items,
		Total:    total,
		Page:     page,
		PerPage:  perPage,
		LastPage: max(lastPage, 1),
	}, nil
}

func applyArticleFilters(q *gorm.DB, search ArticleSearch) *gorm.DB {
	if search.SearchTerm != nil && strings.TrimSpace(*search.SearchTerm) != "" {
		like := containsPattern(*search.SearchTerm)
		q = q.Where("(a.title ILIKE ? OR a.description ILIKE ? OR a.content ILIKE ?)", like, like, like)
	}
	if len(search.Sources) > 0 {
		q = whereSlugOrID(q, "s.slug", "s.source_id", search.Sources)
	}
	if len(search.Categories) > 0 {
		q = whereSlugOrID(q, "c.slug", "c.category_id", search.Categories)
	}
	if search.Author != nil && strings.TrimSpace(*search.Author) != "" {
		q = q.Where("a.author ILIKE ?", containsPattern(*search.Author))
	}
	if len(search.PreferredAuthors) > 0 {
		parts := make([]string, 0, len(search.PreferredAuthors))
		args := make([]any, 0, len(search.PreferredAuthors))
		for _, author := range search.PreferredAuthors {
			if strings.TrimSpace(author) == "" {
				continue
			}
			parts = append(parts, "a.author ILIKE ?")
			args = append(args, containsPattern(author))
		}
		if len(parts) > 0 {
			q = q.Where("("+strings.Join(parts, " OR ")+")", args...)
		}
	}
	if search.FromDate != nil {
		q = q.Where("a.published_at >= ?", search.FromDate.UTC())
	}
	if search.ToDate != nil {
		// to_date is a calendar day and includes the whole of that day.
		q = q.Where("a.published_at < ?", search.ToDate.UTC().AddDate(0, 0, 1))
	}
	return q
}

// whereSlugOrID matches members given either as slugs or as numeric ids.
func whereSlugOrID(q *gorm.DB, slugColumn, idColumn string, values []string) *gorm.DB {
	slugs := make([]string, 0, len(values))
	ids := make([]int64, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if id, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			ids = append(ids, id)
			continue
		}
		slugs = append(slugs, trimmed)
	}

	switch {
	case len(slugs) > 0 && len(ids) > 0:
		return q.Where("("+slugColumn+" IN ? OR "+idColumn+" IN ?)", slugs, ids)
	case len(ids) > 0:
		return q.Where(idColumn+" IN ?", ids)
	case len(slugs) > 0:
		return q.Where(slugColumn+" IN ?", slugs)
	default:
		return q
	}
}

func articleSearchOrder(sort, order string) string {
	column, ok := searchSortColumns[strings.TrimSpace(sort)]
	direction := strings.ToLower(strings.TrimSpace(order))
	if !ok {
		column = searchSortColumns[defaultSearchSort]
		direction = defaultSearchOrder
	}
	if direction != "asc" && direction != "desc" {
		direction = defaultSearchOrder
	}
	return fmt.Sprintf("%s %s NULLS LAST, a.article_id %s", column, strings.ToUpper(direction), strings.ToUpper(direction))
}

func containsPattern(value string) string {
	escaper := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + escaper.Replace(strings.TrimSpace(value)) + "%"
}
