package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cory-johannsen/boxcars/internal/conductor"
	"github.com/cory-johannsen/boxcars/internal/game/dataset"
	"github.com/cory-johannsen/boxcars/internal/game/player"
)

type mapRequest struct {
	Map string `json:"map" binding:"required"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type moveRequest struct {
	Delta int `json:"delta"`
}

type moveStopRequest struct {
	To int `json:"to"`
}

type reorderRequest struct {
	TargetID string `json:"targetId" binding:"required"`
}

// stopPatch edits one stop. ClearCity wins over CityID.
type stopPatch struct {
	CityID      *int  `json:"cityId"`
	ClearCity   bool  `json:"clearCity"`
	Unreachable *bool `json:"unreachable"`
}

func bind(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func intParam(c *gin.Context, name string) (int, error) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errBadRequest, name)
	}
	return n, nil
}

func boolQuery(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(c.Query(name))
	return v
}

func (s *Server) getState(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.State())
}

func (s *Server) newGame(c *gin.Context) {
	var req mapRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	m, err := dataset.ParseMapID(req.Map)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.svc.NewGame(c.Request.Context(), m); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.svc.State())
}

func (s *Server) switchMap(c *gin.Context) {
	var req mapRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	m, err := dataset.ParseMapID(req.Map)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.svc.SwitchMap(c.Request.Context(), m); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.svc.State())
}

func (s *Server) export(c *gin.Context) {
	data, err := s.svc.Export()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="boxcars-game.json"`)
	c.Data(http.StatusOK, "application/json", data)
}

func (s *Server) importGame(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if err := s.svc.Import(c.Request.Context(), data); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.svc.State())
}

func (s *Server) regions(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Dataset().Regions())
}

func (s *Server) cities(c *gin.Context) {
	ds := s.svc.Dataset()
	if region := c.Query("region"); region != "" {
		c.JSON(http.StatusOK, ds.CitiesInRegion(region))
		return
	}
	c.JSON(http.StatusOK, ds.CitiesByName())
}

func (s *Server) payout(c *gin.Context) {
	from, errFrom := strconv.Atoi(c.Query("from"))
	to, errTo := strconv.Atoi(c.Query("to"))
	if errFrom != nil || errTo != nil {
		s.fail(c, fmt.Errorf("%w: from and to must be city ids", errBadRequest))
		return
	}
	v, ok := s.svc.Dataset().Payout(from, to)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "payout": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"from": from, "to": to, "payout": v})
}

func (s *Server) summaries(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Summaries())
}

func (s *Server) addPlayer(c *gin.Context) {
	var req nameRequest
	if c.Request.ContentLength != 0 {
		if err := bind(c, &req); err != nil {
			s.fail(c, err)
			return
		}
	}
	p, err := s.svc.AddPlayer(c.Request.Context(), req.Name)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) getPlayer(c *gin.Context) {
	p, err := s.svc.Player(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) updatePlayer(c *gin.Context) {
	var u conductor.PlayerUpdate
	if err := bind(c, &u); err != nil {
		s.fail(c, err)
		return
	}
	s.respondPlayer(c)(s.svc.UpdatePlayer(c.Request.Context(), c.Param("id"), u))
}

func (s *Server) respondPlayer(c *gin.Context) func(*player.Player, error) {
	return func(p *player.Player, err error) {
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func (s *Server) removePlayer(c *gin.Context) {
	if err := s.svc.RemovePlayer(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) movePlayer(c *gin.Context) {
	var req moveRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.svc.MovePlayer(c.Request.Context(), c.Param("id"), req.Delta); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.svc.State())
}

func (s *Server) reorderPlayer(c *gin.Context) {
	var req reorderRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.svc.ReorderPlayer(c.Request.Context(), c.Param("id"), req.TargetID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.svc.State())
}

func (s *Server) addStop(c *gin.Context) {
	s.respondPlayer(c)(s.svc.AddStop(c.Request.Context(), c.Param("id")))
}

func (s *Server) patchStop(c *gin.Context) {
	i, err := intParam(c, "index")
	if err != nil {
		s.fail(c, err)
		return
	}
	var req stopPatch
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	var p *player.Player
	switch {
	case req.ClearCity:
		p, err = s.svc.SetStopCity(ctx, id, i, nil)
	case req.CityID != nil:
		p, err = s.svc.SetStopCity(ctx, id, i, player.CityRef(*req.CityID))
	}
	if err == nil && req.Unreachable != nil {
		p, err = s.svc.SetStopUnreachable(ctx, id, i, *req.Unreachable)
	}
	if err == nil && p == nil {
		p, err = s.svc.Player(id)
	}
	s.respondPlayer(c)(p, err)
}

func (s *Server) deleteStop(c *gin.Context) {
	i, err := intParam(c, "index")
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondPlayer(c)(s.svc.DeleteStop(c.Request.Context(), c.Param("id"), i))
}

func (s *Server) moveStop(c *gin.Context) {
	i, err := intParam(c, "index")
	if err != nil {
		s.fail(c, err)
		return
	}
	var req moveStopRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	s.respondPlayer(c)(s.svc.MoveStop(c.Request.Context(), c.Param("id"), i, req.To))
}

func (s *Server) candidates(c *gin.Context) {
	cities, err := s.svc.HomeCandidates(c.Param("id"), c.Query("region"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cities)
}

func (s *Server) respondRoll(c *gin.Context, st conductor.RollStatus, err error) {
	if err != nil {
		s.fail(c, err)
		return
	}
	if st.Prompt != nil {
		c.JSON(http.StatusAccepted, st)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) startRoll(c *gin.Context) {
	st, err := s.svc.StartRoll(c.Param("id"))
	s.respondRoll(c, st, err)
}

func (s *Server) listPrompts(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Prompts())
}

func (s *Server) getPrompt(c *gin.Context) {
	p, err := s.svc.Prompt(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) answerPrompt(c *gin.Context) {
	var a conductor.Answer
	if err := bind(c, &a); err != nil {
		s.fail(c, err)
		return
	}
	st, err := s.svc.Answer(c.Param("id"), a)
	s.respondRoll(c, st, err)
}

func (s *Server) cancelPrompt(c *gin.Context) {
	if err := s.svc.CancelRoll(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listSaves(c *gin.Context) {
	saves, err := s.svc.Saves(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": s.svc.ActiveSave(), "saves": saves})
}

func (s *Server) removeSave(c *gin.Context) {
	if err := s.svc.RemoveSave(c.Request.Context(), c.Param("key")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Stats(boolQuery(c, "includeUnreachable")))
}

func (s *Server) statsCSV(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="boxcars-stats.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(s.svc.StatsCSV(boolQuery(c, "includeUnreachable"))))
}
