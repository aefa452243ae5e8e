package services

import (
	"encoding/json"
	"time"

	"github.com/huangang/taskflow/internal/models"
	"github.com/huangang/taskflow/pkg/logger"
	"gorm.io/gorm"
)

const (
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
)

var globalDB *gorm.DB

func InitSystemLogger(db *gorm.DB) {
	globalDB = db
}

// LogEntry carries the request context of an audit record.
type LogEntry struct {
	UserID    *uint
	RequestID string
	IP        string
	UserAgent string
	Extra     interface{}
}

func LogInfo(module, action, message string, e LogEntry) {
	writeLog(LogLevelInfo, module, action, message, e)
}

func LogWarning(module, action, message string, e LogEntry) {
	writeLog(LogLevelWarning, module, action, message, e)
}

func LogError(module, action, message string, e LogEntry) {
	writeLog(LogLevelError, module, action, message, e)
}

func writeLog(level, module, action, message string, e LogEntry) {
	if globalDB == nil {
		return
	}

	var extra string
	if e.Extra != nil {
		if b, err := json.Marshal(e.Extra); err == nil {
			extra = string(b)
		}
	}

	entry := &models.SystemLog{
		Level:     level,
		Module:    module,
		Action:    action,
		Message:   message,
		UserID:    e.UserID,
		RequestID: e.RequestID,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		Extra:     extra,
	}
	if err := globalDB.Create(entry).Error; err != nil {
		logger.Warn().Err(err).Str("module", module).Str("action", action).Msg("failed to write system log")
	}
}

type SystemLogService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db, now: time.Now}
}

type SystemLogListRequest struct {
	Page      int    `form:"page"`
	Size      int    `form:"size"`
	Level     string `form:"level"`
	Module    string `form:"module"`
	Action    string `form:"action"`
	StartDate string `form:"startDate"` // 2006-01-02
	EndDate   string `form:"endDate"`
	Search    string `form:"search"`
}

func (s *SystemLogService) List(req *SystemLogListRequest) (*Page[models.SystemLog], error) {
	page := PageRequest{Page: req.Page, Size: req.Size}.Normalize()

	query := s.db.Model(&models.SystemLog{})
	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ? ESCAPE '!'", "%"+escapeLike(req.Action)+"%")
	}
	if req.StartDate != "" {
		start, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return nil, fieldError("startDate", "must be a date in YYYY-MM-DD format")
		}
		query = query.Where("created_at >= ?", start.UTC())
	}
	if req.EndDate != "" {
		end, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			return nil, fieldError("endDate", "must be a date in YYYY-MM-DD format")
		}
		query = query.Where("created_at < ?", end.AddDate(0, 0, 1).UTC())
	}
	if req.Search != "" {
		query = query.Where("message LIKE ? ESCAPE '!'", "%"+escapeLike(req.Search)+"%")
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, err
	}

	logs := []models.SystemLog{}
	if err := query.Order("created_at DESC, id DESC").Offset(page.Offset()).Limit(page.Size).Find(&logs).Error; err != nil {
		return nil, err
	}

	return NewPage(logs, page, total), nil
}

func (s *SystemLogService) GetModules() ([]string, error) {
	modules := []string{}
	if err := s.db.Model(&models.SystemLog{}).Distinct("module").Order("module").Pluck("module", &modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

// CleanupOldLogs deletes logs older than retentionDays and returns how many
// were removed. A non-positive retention disables cleanup.
func (s *SystemLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -retentionDays).UTC()
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
