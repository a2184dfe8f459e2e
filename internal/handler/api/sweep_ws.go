package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"MHIRebal/internal/domain/models"
	xhttp "MHIRebal/pkg/http"
	xlogger "MHIRebal/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait = 10 * time.Second
	wsReadLimit = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Frame types on /ws/sweep.
const (
	frameCell   = "cell"
	frameReport = "report"
	frameError  = "error"
	frameAbort  = "abort"
)

type wsFrame struct {
	Type   string              `json:"type"`
	Cell   *models.SweepCell   `json:"cell,omitempty"`
	Report *models.SweepReport `json:"report,omitempty"`
	Errors any                 `json:"errors,omitempty"`
}

// SweepStream upgrades to a websocket. The client sends one SweepRequest,
// then receives a frame per finished cell and a final report. Sending
// {"type":"abort"} or closing the socket cancels the sweep between cells.
func (h *RebalanceHandler) SweepStream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)

	req := &models.SweepRequest{}
	if err := conn.ReadJSON(req); err != nil {
		h.writeFrame(conn, wsFrame{Type: frameError, Errors: []xhttp.ValidationError{{Code: "ERR_BIND", Message: err.Error()}}})
		return nil
	}
	if verr := xhttp.ValidateRequest(c.Request().Context(), req); verr != nil {
		h.writeFrame(conn, wsFrame{Type: frameError, Errors: verr})
		return nil
	}
	params, appErr := h.sweepParams(req)
	if appErr != nil {
		h.writeFrame(conn, wsFrame{Type: frameError, Errors: []*xhttp.AppError{appErr}})
		return nil
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	go h.watchAbort(conn, cancel)

	progress := make(chan models.SweepCell)
	type result struct {
		rep *models.SweepReport
		err error
	}
	done := make(chan result, 1)
	go func() {
		rep, err := h.sweeper.Run(ctx, params, progress)
		close(progress)
		done <- result{rep, err}
	}()

	for cell := range progress {
		if !h.writeFrame(conn, wsFrame{Type: frameCell, Cell: &cell}) {
			cancel()
		}
	}
	res := <-done
	if res.err != nil {
		h.logger.Warn("streamed sweep failed", xlogger.Error(res.err))
		h.writeFrame(conn, wsFrame{Type: frameError, Errors: []*xhttp.AppError{toAppError(res.err)}})
		return nil
	}
	h.writeFrame(conn, wsFrame{Type: frameReport, Report: res.rep})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"), time.Now().Add(wsWriteWait))
	return nil
}

// watchAbort reads client frames until the socket closes. Any read error or
// an abort frame cancels the running sweep.
func (h *RebalanceHandler) watchAbort(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f wsFrame
		if json.Unmarshal(data, &f) == nil && f.Type == frameAbort {
			h.logger.Info("sweep aborted by client")
			return
		}
	}
}

func (h *RebalanceHandler) writeFrame(conn *websocket.Conn, f wsFrame) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(f); err != nil {
		h.logger.Debug("websocket write failed", xlogger.String("type", f.Type), xlogger.Error(err))
		return false
	}
	return true
}
