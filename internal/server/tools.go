// internal/server/tools.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/gin-gonic/gin"

	"diet-ledger/internal/models"
	"diet-ledger/internal/target"
)

type AddEntryParams struct {
	Date     string  `json:"date,omitempty" description:"Day of the entry (YYYY-MM-DD, defaults to today)"`
	MealSlot string  `json:"meal_slot" description:"Morning, Noon, Evening or Snack"`
	FoodName string  `json:"food_name" description:"Exact food name from the catalog"`
	Grams    float64 `json:"grams" description:"Amount eaten in grams"`
}

type GetDayParams struct {
	Date string `json:"date,omitempty" description:"Day to show (YYYY-MM-DD, defaults to today)"`
}

type EditEntryParams struct {
	ID       string   `json:"id" description:"Id of the entry to change"`
	MealSlot *string  `json:"meal_slot,omitempty" description:"New meal slot"`
	Grams    *float64 `json:"grams,omitempty" description:"New amount in grams"`
}

type DeleteEntriesParams struct {
	IDs []string `json:"ids" description:"Entry ids to delete"`
}

type toolHandler func(context.Context, *protocol.CallToolRequest) (*protocol.CallToolResult, error)

func (s *DietServer) tools() map[string]toolHandler {
	return map[string]toolHandler{
		"add_entry":      s.handleAddEntry,
		"edit_entry":     s.handleEditEntry,
		"get_day":        s.handleGetDay,
		"get_advice":     s.handleGetAdvice,
		"delete_entries": s.handleDeleteEntries,
		"clear_day":      s.handleClearDay,
		"daily_target":   s.handleDailyTarget,
	}
}

// handleMCP serves tools/call style requests over plain HTTP POST.
func (s *DietServer) handleMCP(c *gin.Context) {
	var request protocol.CallToolRequest
	if err := json.NewDecoder(c.Request.Body).Decode(&request); err != nil {
		c.String(http.StatusBadRequest, "Invalid JSON: %v", err)
		return
	}

	handler, ok := s.tools()[request.Name]
	if !ok {
		c.String(http.StatusBadRequest, "Unknown tool: %s", request.Name)
		return
	}

	result, err := handler(c.Request.Context(), &request)
	if err != nil {
		s.log.Debug("tool %s failed: %v", request.Name, err)
		c.String(statusFor(err), "Tool execution failed: %v", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// extractParams round-trips the request arguments through JSON into dst.
func extractParams(req *protocol.CallToolRequest, dst interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}
	if err := json.Unmarshal(jsonBytes, dst); err != nil {
		return fmt.Errorf("failed to unmarshal parameters: %w", err)
	}
	return nil
}

func (s *DietServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}

// toolResult keeps persistence failures as warnings, like the REST handlers.
func (s *DietServer) toolResult(body map[string]interface{}, err error) (*protocol.CallToolResult, error) {
	if err != nil {
		if !errors.Is(err, models.ErrPersistence) {
			return nil, err
		}
		s.log.Warn("%v", err)
		body["warning"] = err.Error()
	}
	return s.createJSONResponse(body)
}

func (s *DietServer) handleAddEntry(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params AddEntryParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	date, err := models.ParseDate(params.Date, s.now())
	if err != nil {
		return nil, err
	}
	slot, err := models.ParseMealSlot(params.MealSlot)
	if err != nil {
		return nil, err
	}

	entry, err := s.ledger.Add(slot, date, params.FoodName, params.Grams)
	return s.toolResult(map[string]interface{}{"entry": entry}, err)
}

func (s *DietServer) handleEditEntry(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params EditEntryParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	var slot *models.MealSlot
	if params.MealSlot != nil {
		parsed, err := models.ParseMealSlot(*params.MealSlot)
		if err != nil {
			return nil, err
		}
		slot = &parsed
	}

	entry, err := s.ledger.Edit(params.ID, slot, params.Grams)
	return s.toolResult(map[string]interface{}{"entry": entry}, err)
}

func (s *DietServer) handleGetDay(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params GetDayParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	date, err := models.ParseDate(params.Date, s.now())
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(s.dayView(date))
}

func (s *DietServer) handleGetAdvice(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params GetDayParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	date, err := models.ParseDate(params.Date, s.now())
	if err != nil {
		return nil, err
	}
	advice, err := s.advisor.Advise(ctx, s.snapshot(date))
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(map[string]interface{}{"date": date, "advice": advice})
}

func (s *DietServer) handleDeleteEntries(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params DeleteEntriesParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	removed, err := s.ledger.Delete(params.IDs...)
	return s.toolResult(map[string]interface{}{"removed": removed}, err)
}

func (s *DietServer) handleClearDay(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params GetDayParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	date, err := models.ParseDate(params.Date, s.now())
	if err != nil {
		return nil, err
	}
	removed, err := s.ledger.ClearDay(date)
	return s.toolResult(map[string]interface{}{"date": date, "removed": removed}, err)
}

func (s *DietServer) handleDailyTarget(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	p := s.profiles.Get()
	return s.createJSONResponse(map[string]interface{}{
		"profile": p,
		"target":  target.Summarize(p),
	})
}
