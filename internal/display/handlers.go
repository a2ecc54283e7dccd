package display

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/roman-kulish/wifi-heatmap/internal/heatmap"
	"github.com/roman-kulish/wifi-heatmap/internal/render"
	"github.com/roman-kulish/wifi-heatmap/internal/wifi"
)

type errorResponse struct {
	Error string `json:"error"`
}

// networkView is a scan result with its derived values
type networkView struct {
	wifi.Network
	Quality int       `json:"quality"`
	Zone    wifi.Zone `json:"zone"`
	Channel int       `json:"channel"`
	Band    wifi.Band `json:"band"`
}

// sessionView is the body of GET /api/session and of every stream message
type sessionView struct {
	heatmap.Snapshot
	Summary heatmap.Summary `json:"summary"`
}

type startRequest struct {
	BSSID string `json:"bssid" binding:"required"`
}

type startResponse struct {
	ID    string `json:"id"`
	BSSID string `json:"bssid"`
}

func newSessionView(s heatmap.Snapshot) sessionView {
	return sessionView{Snapshot: s, Summary: heatmap.Summarize(s.Points)}
}

// networks handles GET /api/networks
func (s *Server) networks(c *gin.Context) {
	networks, err := s.lister.Networks(c.Request.Context())
	if err != nil {
		s.logger.Warn(fmt.Sprintf("listing networks: %s", err.Error()))
		c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}

	views := make([]networkView, len(networks))
	for i, n := range networks {
		views[i] = networkView{
			Network: n,
			Quality: n.SignalQuality(),
			Zone:    n.Zone(),
			Channel: n.Channel(),
			Band:    n.Band(),
		}
	}

	c.JSON(http.StatusOK, views)
}

// session handles GET /api/session
func (s *Server) session(c *gin.Context) {
	c.JSON(http.StatusOK, newSessionView(s.recorder.Snapshot()))
}

// startRecording handles POST /api/recording
func (s *Server) startRecording(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	// the session outlives the request
	id, err := s.recorder.Start(context.WithoutCancel(c.Request.Context()), req.BSSID)
	if errors.Is(err, heatmap.ErrNoTarget) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, startResponse{ID: id, BSSID: req.BSSID})
}

// stopRecording handles DELETE /api/recording
func (s *Server) stopRecording(c *gin.Context) {
	s.recorder.Stop()
	c.JSON(http.StatusOK, newSessionView(s.recorder.Snapshot()))
}

// heatmapImage handles GET /api/heatmap.png, ?format=jpeg for a JPEG
func (s *Server) heatmapImage(c *gin.Context) {
	if s.renderer == nil {
		c.JSON(http.StatusNotFound, errorResponse{Error: "rendering disabled"})
		return
	}

	img, err := s.renderer.Render(s.recorder.Snapshot())
	if err != nil {
		s.logger.Error(fmt.Sprintf("rendering heatmap: %s", err.Error()))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	format := render.Format(c.DefaultQuery("format", string(render.PNG)))

	var buf bytes.Buffer
	if err = render.Encode(&buf, img, format); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	c.Data(http.StatusOK, render.ContentType(format), buf.Bytes())
}

// stream handles GET /api/stream: a websocket that receives the session on connect and
// again after every change.
func (s *Server) stream(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("websocket upgrade: %s", err.Error()))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	updates := s.recorder.Watch(ctx)

	// the client only ever closes; reading surfaces that
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debug(fmt.Sprintf("websocket read: %s", err.Error()))
				}
				return
			}
		}
	}()

	for {
		if err = s.send(conn, s.recorder.Snapshot()); err != nil {
			s.logger.Debug(fmt.Sprintf("websocket write: %s", err.Error()))
			return
		}

		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(writeTimeout))
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
		}
	}
}

func (s *Server) send(conn *websocket.Conn, snap heatmap.Snapshot) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	s.logger.Debug("stream update", slog.String("session", snap.ID), slog.Int("points", len(snap.Points)))

	return conn.WriteJSON(newSessionView(snap))
}
