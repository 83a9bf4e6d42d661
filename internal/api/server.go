package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ledgereye/internal/auth"
	"github.com/ledgereye/internal/database"
	"github.com/ledgereye/internal/models"
	"github.com/ledgereye/internal/scheduler"
	"github.com/ledgereye/internal/store"

	"github.com/gin-gonic/gin"
)

type Server struct {
	store     *store.Store
	scheduler *scheduler.Scheduler
	router    *gin.Engine
}

func NewServer(st *store.Store, sched *scheduler.Scheduler) *Server {
	server := &Server{
		store:     st,
		scheduler: sched,
		router:    gin.Default(),
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	// Public routes
	s.router.POST("/api/v1/auth/login", s.login)

	// Protected routes (require authentication)
	api := s.router.Group("/api/v1")
	api.Use(auth.AuthMiddleware())

	schedules := api.Group("/schedules")
	{
		schedules.GET("", s.listSchedules)
		schedules.GET("/:id", s.getSchedule)
		schedules.POST("", auth.RequireRole(models.RoleAdmin, models.RoleUser), s.createSchedule)
		schedules.PUT("/:id", auth.RequireRole(models.RoleAdmin, models.RoleUser), s.updateSchedule)
		schedules.DELETE("/:id", auth.RequireRole(models.RoleAdmin), s.deleteSchedule)
		schedules.PUT("/:id/enable", auth.RequireRole(models.RoleAdmin, models.RoleUser), s.enableSchedule)
		schedules.PUT("/:id/disable", auth.RequireRole(models.RoleAdmin, models.RoleUser), s.disableSchedule)
		schedules.POST("/:id/run", auth.RequireRole(models.RoleAdmin, models.RoleUser), s.runSchedule)
		schedules.GET("/:id/history", s.scheduleHistory)
	}
}

func (s *Server) Start(port int) error {
	return s.router.Run(fmt.Sprintf(":%d", port))
}

// scheduleRequest is the create/update payload. time_of_day is "HH:MM";
// day_of_week is the lowercase weekday name; day_of_month is 1-31.
type scheduleRequest struct {
	Name         string   `json:"name" binding:"required"`
	CompanyID    string   `json:"company_id"`
	ReportType   string   `json:"report_type" binding:"required"`
	ExportFormat string   `json:"export_format" binding:"required"`
	Frequency    string   `json:"frequency" binding:"required"`
	TimeOfDay    string   `json:"time_of_day" binding:"required"`
	DayOfWeek    string   `json:"day_of_week,omitempty"`
	DayOfMonth   *int     `json:"day_of_month,omitempty"`
	Recipients   []string `json:"recipients"`
	CCRecipients []string `json:"cc_recipients,omitempty"`
}

var weekdays = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

func (r *scheduleRequest) toSchedule() (*models.ReportSchedule, error) {
	hour, minute, err := parseTimeOfDay(r.TimeOfDay)
	if err != nil {
		return nil, err
	}

	schedule := &models.ReportSchedule{
		Name:         r.Name,
		CompanyID:    r.CompanyID,
		ReportType:   models.ReportType(r.ReportType),
		ExportFormat: models.ExportFormat(r.ExportFormat),
		Frequency:    r.Frequency,
		Hour:         hour,
		Minute:       minute,
		DayOfMonth:   r.DayOfMonth,
		Recipients:   r.Recipients,
		CCRecipients: r.CCRecipients,
		Enabled:      true,
	}

	if r.DayOfWeek != "" {
		day, ok := weekdays[strings.ToLower(r.DayOfWeek)]
		if !ok {
			return nil, fmt.Errorf("unknown day_of_week: %s", r.DayOfWeek)
		}
		schedule.DayOfWeek = &day
	}

	return schedule, nil
}

func parseTimeOfDay(value string) (int, int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, fmt.Errorf("time_of_day must be HH:MM, got %q", value)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

// scheduleView is the list/detail shape the admin UI reads.
type scheduleView struct {
	ScheduleID   string     `json:"schedule_id"`
	Name         string     `json:"name"`
	CompanyID    string     `json:"company_id,omitempty"`
	ReportType   string     `json:"report_type"`
	ExportFormat string     `json:"export_format"`
	Frequency    string     `json:"frequency"`
	TimeOfDay    string     `json:"time_of_day"`
	DayOfWeek    string     `json:"day_of_week,omitempty"`
	DayOfMonth   *int       `json:"day_of_month,omitempty"`
	Recipients   []string   `json:"recipients"`
	CCRecipients []string   `json:"cc_recipients,omitempty"`
	Enabled      bool       `json:"enabled"`
	NextRun      time.Time  `json:"next_run"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	TotalRuns    int64      `json:"total_runs"`
}

func viewOf(schedule *models.ReportSchedule) scheduleView {
	view := scheduleView{
		ScheduleID:   schedule.ID,
		Name:         schedule.Name,
		CompanyID:    schedule.CompanyID,
		ReportType:   string(schedule.ReportType),
		ExportFormat: string(schedule.ExportFormat),
		Frequency:    schedule.Frequency,
		TimeOfDay:    fmt.Sprintf("%02d:%02d", schedule.Hour, schedule.Minute),
		DayOfMonth:   schedule.DayOfMonth,
		Recipients:   schedule.Recipients,
		CCRecipients: schedule.CCRecipients,
		Enabled:      schedule.Enabled,
		NextRun:      schedule.NextRun,
		LastRun:      schedule.LastRun,
		TotalRuns:    schedule.TotalRuns,
	}
	if schedule.DayOfWeek != nil {
		view.DayOfWeek = strings.ToLower(time.Weekday(*schedule.DayOfWeek).String())
	}
	return view
}

type historyView struct {
	ExecutedAt      time.Time `json:"executed_at"`
	ReportType      string    `json:"report_type"`
	ExportFormat    string    `json:"export_format"`
	RecipientsCount int       `json:"recipients_count"`
	Success         bool      `json:"success"`
	ErrorMessage    string    `json:"error_message,omitempty"`
}

func (s *Server) listSchedules(c *gin.Context) {
	schedules, err := s.store.List(c.Query("company_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]scheduleView, 0, len(schedules))
	for i := range schedules {
		views = append(views, viewOf(&schedules[i]))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) getSchedule(c *gin.Context) {
	schedule, err := s.store.Get(c.Param("id"))
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(schedule))
}

func (s *Server) createSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	schedule, err := req.toSchedule()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.Create(schedule); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(schedule))
}

func (s *Server) updateSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	schedule, err := req.toSchedule()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	schedule.ID = c.Param("id")

	updated, err := s.store.Update(schedule)
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(updated))
}

func (s *Server) deleteSchedule(c *gin.Context) {
	if err := s.store.Delete(c.Param("id")); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "schedule deleted successfully"})
}

func (s *Server) enableSchedule(c *gin.Context) {
	if err := s.store.SetEnabled(c.Param("id"), true); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "schedule enabled successfully"})
}

func (s *Server) disableSchedule(c *gin.Context) {
	if err := s.store.SetEnabled(c.Param("id"), false); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "schedule disabled successfully"})
}

func (s *Server) runSchedule(c *gin.Context) {
	record, err := s.scheduler.RunNow(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"executed_at":   record.ExecutedAt,
		"success":       record.Success,
		"error_message": record.ErrorMessage,
	})
}

func (s *Server) scheduleHistory(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	records, total, err := s.store.History(c.Param("id"), page, pageSize)
	if err != nil {
		s.storeError(c, err)
		return
	}

	items := make([]historyView, 0, len(records))
	for _, r := range records {
		items = append(items, historyView{
			ExecutedAt:      r.ExecutedAt,
			ReportType:      string(r.ReportType),
			ExportFormat:    string(r.ExportFormat),
			RecipientsCount: len(r.Recipients),
			Success:         r.Success,
			ErrorMessage:    r.ErrorMessage,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"items":     items,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (s *Server) login(c *gin.Context) {
	var loginReq struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&loginReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := database.GetDB().Where("username = ?", loginReq.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	if !user.CheckPassword(loginReq.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := auth.GenerateToken(&user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// storeError maps store errors onto HTTP status codes.
func (s *Server) storeError(c *gin.Context, err error) {
	var invalid *store.InvalidScheduleError
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
