package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Wjlljw/pdf-translator/internal/service"
	"github.com/Wjlljw/pdf-translator/pkg/log"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 500
	heartbeat       = 15 * time.Second
)

type currentRunResponse struct {
	Status      service.RunStatus  `json:"status"`
	LastRun     *service.RunReport `json:"last_run,omitempty"`
	NextTrigger *time.Time         `json:"next_trigger,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "pdf-translator",
		"time":    time.Now().UTC(),
	})
}

func (s *Server) handleListRuns(c echo.Context) error {
	if s.runs == nil {
		return success(c, []*service.RunReport{})
	}
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultRunLimit, 1, maxRunLimit)
	if err != nil {
		return fail(c, http.StatusBadRequest, "limit "+err.Error())
	}
	reports, err := service.LoadReports(c.Request().Context(), s.runs, limit)
	if err != nil {
		log.Error("load run reports: %v", err)
		return internalError(c, "Failed to load run reports")
	}
	return success(c, reports)
}

func (s *Server) handleGetRun(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if s.runs == nil {
		return fail(c, http.StatusNotFound, "run not found")
	}
	reports, err := service.LoadReports(c.Request().Context(), s.runs, 0)
	if err != nil {
		log.Error("load run reports: %v", err)
		return internalError(c, "Failed to load run reports")
	}
	for _, r := range reports {
		if r.RunID == id {
			return success(c, r)
		}
	}
	return fail(c, http.StatusNotFound, "run not found")
}

func (s *Server) handleCurrentRun(c echo.Context) error {
	resp := currentRunResponse{Status: s.hub.Status()}
	if s.scheduler != nil {
		resp.LastRun = s.scheduler.Last()
		if info, err := s.scheduler.Trigger(time.Now()); err == nil {
			resp.NextTrigger = &info.Next
		}
	}
	if resp.LastRun == nil && s.runs != nil {
		if last, err := service.LoadReports(c.Request().Context(), s.runs, 1); err == nil && len(last) > 0 {
			resp.LastRun = last[0]
		}
	}
	return success(c, resp)
}

// handleStartRun starts a scheduled-style run in the background. A run that
// is already in progress is joined rather than duplicated.
func (s *Server) handleStartRun(c echo.Context) error {
	if s.scheduler == nil {
		return fail(c, http.StatusConflict, "runs can only be triggered in schedule mode")
	}
	if st := s.hub.Status(); st.Running {
		return successWithStatus(c, http.StatusAccepted, st)
	}

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		if _, err := s.scheduler.RunOnce(s.base); err != nil {
			log.Error("run triggered over HTTP failed: %v", err)
		}
	}()
	return successWithStatus(c, http.StatusAccepted, map[string]any{"started": true})
}

// handleProgress streams hub events as server-sent events. The first event
// is a status snapshot.
func (s *Server) handleProgress(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	events, unsubscribe := s.hub.Subscribe(64)
	defer unsubscribe()

	if err := writeEvent(w, "status", s.hub.Status()); err != nil {
		return nil
	}

	ctx := c.Request().Context()
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			w.Flush()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeEvent(w, string(ev.Type), ev); err != nil {
				return nil
			}
		}
	}
}

func writeEvent(w *echo.Response, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	w.Flush()
	return nil
}

func parsePositiveInt(raw string, defaultValue, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
