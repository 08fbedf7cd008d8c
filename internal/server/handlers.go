package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"diet-ledger/internal/ledger"
	"diet-ledger/internal/models"
	"diet-ledger/internal/report"
	"diet-ledger/internal/target"
)

// DayView is the full read model of one date.
type DayView struct {
	Date       string             `json:"date"`
	Entries    []models.MealEntry `json:"entries"`
	BySlot     []models.SlotGroup `json:"by_slot"`
	Aggregate  models.Totals      `json:"aggregate"`
	MacroSplit models.MacroSplit  `json:"macro_split"`
	Profile    models.Profile     `json:"profile"`
	Target     target.Summary     `json:"target"`
	Progress   float64            `json:"progress"`
}

type addEntryRequest struct {
	MealSlot string  `json:"meal_slot" binding:"required"`
	FoodName string  `json:"food_name" binding:"required"`
	Grams    float64 `json:"grams"`
}

type editEntryRequest struct {
	MealSlot *string  `json:"meal_slot"`
	Grams    *float64 `json:"grams"`
}

type deleteEntriesRequest struct {
	IDs []string `json:"ids"`
}

func (s *DietServer) dayView(date string) DayView {
	p := s.profiles.Get()
	entries := s.ledger.Entries(date)
	agg := ledger.Sum(entries)
	sum := target.Summarize(p)
	return DayView{
		Date:       date,
		Entries:    entries,
		BySlot:     s.ledger.BySlot(date),
		Aggregate:  agg,
		MacroSplit: target.MacroSplit(agg),
		Profile:    p,
		Target:     sum,
		Progress:   target.Progress(agg.EnergyKcal, sum.DailyKcal),
	}
}

// snapshot is the read-only view of date handed to the advisor.
func (s *DietServer) snapshot(date string) models.Snapshot {
	view := s.dayView(date)
	return models.Snapshot{
		Date:       view.Date,
		Entries:    view.Entries,
		Aggregate:  view.Aggregate,
		Profile:    view.Profile,
		TargetKcal: view.Target.DailyKcal,
	}
}

func (s *DietServer) resolveDate(c *gin.Context) (string, bool) {
	date, err := models.ParseDate(c.Param("date"), s.now())
	if err != nil {
		s.writeError(c, err)
		return "", false
	}
	return date, true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrUnknownFood), errors.Is(err, models.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidGrams),
		errors.Is(err, models.ErrInvalidMealSlot),
		errors.Is(err, models.ErrInvalidDate),
		errors.Is(err, models.ErrInvalidProfile):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNothingToAdvise):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrAdvisoryUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *DietServer) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// withWarning adds a "warning" field when err is a persistence failure.
// The in-memory change already happened, so the request still succeeds.
func (s *DietServer) withWarning(body gin.H, err error) (gin.H, bool) {
	if err == nil {
		return body, true
	}
	if errors.Is(err, models.ErrPersistence) {
		s.log.Warn("%v", err)
		body["warning"] = err.Error()
		return body, true
	}
	return nil, false
}

func (s *DietServer) listFoods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"foods": s.catalog.List()})
}

func (s *DietServer) getFood(c *gin.Context) {
	food, err := s.catalog.Lookup(c.Param("name"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, food)
}

func (s *DietServer) getDay(c *gin.Context) {
	date, ok := s.resolveDate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.dayView(date))
}

func (s *DietServer) addEntry(c *gin.Context) {
	date, ok := s.resolveDate(c)
	if !ok {
		return
	}
	var req addEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	slot, err := models.ParseMealSlot(req.MealSlot)
	if err != nil {
		s.writeError(c, err)
		return
	}

	entry, err := s.ledger.Add(slot, date, req.FoodName, req.Grams)
	body, ok := s.withWarning(gin.H{"entry": entry}, err)
	if !ok {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, body)
}

func (s *DietServer) editEntry(c *gin.Context) {
	var req editEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var slot *models.MealSlot
	if req.MealSlot != nil {
		parsed, err := models.ParseMealSlot(*req.MealSlot)
		if err != nil {
			s.writeError(c, err)
			return
		}
		slot = &parsed
	}

	entry, err := s.ledger.Edit(c.Param("id"), slot, req.Grams)
	body, ok := s.withWarning(gin.H{"entry": entry}, err)
	if !ok {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (s *DietServer) deleteEntries(c *gin.Context) {
	var req deleteEntriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	removed, err := s.ledger.Delete(req.IDs...)
	body, ok := s.withWarning(gin.H{"removed": removed}, err)
	if !ok {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (s *DietServer) clearDay(c *gin.Context) {
	date, ok := s.resolveDate(c)
	if !ok {
		return
	}
	removed, err := s.ledger.ClearDay(date)
	body, ok := s.withWarning(gin.H{"date": date, "removed": removed}, err)
	if !ok {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (s *DietServer) getProfile(c *gin.Context) {
	c.JSON(http.StatusOK, s.profiles.Get())
}

func (s *DietServer) updateProfile(c *gin.Context) {
	var p models.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sex, err := models.ParseSex(string(p.Sex))
	if err != nil {
		s.writeError(c, err)
		return
	}
	p.Sex = sex

	err = s.profiles.Update(p)
	body, ok := s.withWarning(gin.H{"profile": s.profiles.Get(), "target": target.Summarize(s.profiles.Get())}, err)
	if !ok {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (s *DietServer) getTarget(c *gin.Context) {
	p := s.profiles.Get()
	c.JSON(http.StatusOK, gin.H{
		"profile":         p,
		"target":          target.Summarize(p),
		"floor_kcal":      target.FloorKcal,
		"activity_levels": models.ActivityLevels,
		"goal_presets":    target.GoalPresets,
	})
}

func (s *DietServer) advise(c *gin.Context) {
	date, ok := s.resolveDate(c)
	if !ok {
		return
	}
	advice, err := s.advisor.Advise(c.Request.Context(), s.snapshot(date))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "advice": advice})
}

func (s *DietServer) exportReport(c *gin.Context) {
	date, ok := s.resolveDate(c)
	if !ok {
		return
	}
	view := s.dayView(date)
	f, err := report.Build(report.Day{
		Date:     view.Date,
		Entries:  view.Entries,
		Totals:   view.Aggregate,
		Profile:  view.Profile,
		Target:   view.Target,
		Progress: view.Progress,
	})
	if err != nil {
		s.writeError(c, fmt.Errorf("build report: %w", err))
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(date)))
	c.Status(http.StatusOK)
	if err := f.Write(c.Writer); err != nil {
		s.log.Error("write report for %s: %v", date, err)
	}
}
