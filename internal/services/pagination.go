package services

import (
	"math"
	"strings"

	"gorm.io/gorm"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	MaxPage         = math.MaxInt32
)

// sortable maps the public sort keys onto task columns.
var sortable = map[string]string{
	"id":        "id",
	"title":     "title",
	"status":    "status",
	"priority":  "priority",
	"deadline":  "deadline",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// PageRequest carries the query parameters shared by every paged listing.
type PageRequest struct {
	Page    int    `form:"page"`
	Size    int    `form:"size"`
	SortBy  string `form:"sortBy"`
	SortDir string `form:"sortDir"`
}

// Normalize clamps page and size and replaces unknown sort keys with the
// defaults. It never fails.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	// keeps Page*Size inside int for any size up to MaxPageSize
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if _, ok := sortable[p.SortBy]; !ok {
		p.SortBy = "createdAt"
	}
	if strings.EqualFold(p.SortDir, "asc") {
		p.SortDir = "asc"
	} else {
		p.SortDir = "desc"
	}
	return p
}

// OrderClause returns the ORDER BY expression for a normalized request,
// qualifying columns with alias when one is given. The id tiebreaker keeps
// page boundaries stable.
func (p PageRequest) OrderClause(alias string) string {
	col := sortable[p.SortBy]
	if col == "" {
		col = "created_at"
	}
	dir := "DESC"
	if p.SortDir == "asc" {
		dir = "ASC"
	}
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}
	if col == "id" {
		return prefix + "id " + dir
	}
	return prefix + col + " " + dir + ", " + prefix + "id " + dir
}

func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page is the envelope returned by paged endpoints.
type Page[T any] struct {
	Content       []T   `json:"content"`
	PageNumber    int   `json:"pageNumber"`
	PageSize      int   `json:"pageSize"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
	Empty         bool  `json:"empty"`
}

// NewPage derives the envelope flags from (page, size, total).
func NewPage[T any](content []T, req PageRequest, total int64) *Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if req.Size > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(req.Size)))
	}
	return &Page[T]{
		Content:       content,
		PageNumber:    req.Page,
		PageSize:      req.Size,
		TotalElements: total,
		TotalPages:    totalPages,
		First:         req.Page == 0,
		Last:          req.Page >= totalPages-1,
		Empty:         len(content) == 0,
	}
}

// paginate counts the query and applies ordering, offset and limit.
func paginate(query *gorm.DB, req PageRequest, alias string) (*gorm.DB, int64, error) {
	base := query.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	return base.Order(req.OrderClause(alias)).Offset(req.Offset()).Limit(req.Size), total, nil
}
