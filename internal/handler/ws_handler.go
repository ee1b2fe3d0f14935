package handler

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/proctor"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/session"
	"github.com/stemsi/exstem-proctor/internal/validator"
	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

// sendBuffer bounds the messages queued for one browser.
const sendBuffer = 32

var (
	errClientGone = errors.New("proctor client disconnected")
	errClientSlow = errors.New("proctor client send buffer full")
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams session events to the browser and feeds the browser's
// camera and microphone into the session's relay.
type WSHandler struct {
	sessions *service.SessionService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// wsClient is the browser end of a relay. All writes go through send so
// only the writer goroutine touches the connection.
type wsClient struct {
	send chan any
	done chan struct{}
	once sync.Once
}

func (cl *wsClient) RequestMedia(c proctor.Constraints) error {
	return cl.enqueue(ws.MediaRequest{Event: ws.EventRequestMedia, Constraints: c})
}

func (cl *wsClient) ReleaseMedia() error {
	return cl.enqueue(ws.MediaRelease{Event: ws.EventReleaseMedia})
}

func (cl *wsClient) enqueue(v any) error {
	select {
	case <-cl.done:
		return errClientGone
	default:
	}
	select {
	case cl.send <- v:
		return nil
	case <-cl.done:
		return errClientGone
	default:
		return errClientSlow
	}
}

func (cl *wsClient) close() {
	cl.once.Do(func() { close(cl.done) })
}

// Stream godoc
// WS /ws/v1/sessions/:id/stream?token=...
// Open this before the preflight check: media requests travel over it.
func (h *WSHandler) Stream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	// Resolve before upgrading so failures are plain HTTP errors.
	entry, err := h.sessions.Get(c.Param("id"), claims.UserID)
	if err != nil {
		failErr(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	ws.Prepare(conn)

	wsLog := h.log.With().
		Str("session_id", entry.Controller.ID()).
		Str("user_id", claims.UserID).
		Logger()

	client := &wsClient{send: make(chan any, sendBuffer), done: make(chan struct{})}
	events, unsubscribe := entry.Controller.Subscribe()
	defer unsubscribe()
	if entry.Relay != nil {
		entry.Relay.Attach(client)
		defer entry.Relay.Detach(client)
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(conn, client, events, wsLog)
	}()

	wsLog.Info().Msg("Proctor stream connected")
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}
		h.dispatch(entry, client, &msg, wsLog)
	}

	client.close()
	<-writerDone
}

func (h *WSHandler) writeLoop(conn *websocket.Conn, client *wsClient, events <-chan session.Event, log zerolog.Logger) {
	ping := time.NewTicker(ws.PingPeriod)
	defer ping.Stop()
	// Unblocks the reader when the session closes first.
	defer conn.Close()

	for {
		var err error
		select {
		case <-client.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(ws.WriteWait))
			return
		case v := <-client.send:
			err = ws.WriteTyped(conn, v)
		case e, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"), time.Now().Add(ws.WriteWait))
				client.close()
				return
			}
			err = ws.WriteTyped(conn, ws.SessionMessage{Event: ws.EventSession, Session: e})
		case <-ping.C:
			err = ws.WritePing(conn)
		}
		if err != nil {
			log.Debug().Err(err).Msg("Write failed")
			client.close()
			return
		}
	}
}

func (h *WSHandler) dispatch(entry *session.Entry, client *wsClient, msg *ws.RequestEnvelope, log zerolog.Logger) {
	ctrl := entry.Controller
	var err error

	switch msg.Action {
	case ws.ActionPing:
		_ = client.enqueue(ws.PongResponse{Event: ws.EventPong})
		return

	case ws.ActionMediaGrant:
		if entry.Relay != nil {
			entry.Relay.PushGrant(proctor.Grant{Video: msg.Video, Audio: msg.Audio})
		}
		return

	case ws.ActionFrame:
		if entry.Relay == nil {
			return
		}
		frame, ferr := proctor.DecodeFrame(msg.Width, msg.Height, msg.Data, msg.Faces)
		if ferr != nil {
			log.Debug().Err(ferr).Msg("Rejected frame")
			h.reject(client, response.ErrInvalidPayload, ferr.Error())
			return
		}
		entry.Relay.PushFrame(frame)
		return

	case ws.ActionAudio:
		if entry.Relay != nil {
			entry.Relay.PushAudio(msg.Bins)
		}
		return

	case ws.ActionAnswer:
		if msg.QID == "" {
			h.reject(client, response.ErrValidation, "q_id is required")
			return
		}
		err = ctrl.SetAnswer(msg.QID, msg.Value)

	case ws.ActionFullscreen:
		if msg.Active == nil {
			h.reject(client, response.ErrValidation, "active is required")
			return
		}
		err = ctrl.FullscreenChanged(*msg.Active)

	case ws.ActionVisibility:
		if msg.Hidden == nil {
			h.reject(client, response.ErrValidation, "hidden is required")
			return
		}
		err = ctrl.TabVisibility(*msg.Hidden)

	case ws.ActionViolation:
		if !validator.ValidViolationType(msg.Type) {
			h.reject(client, response.ErrValidation, "invalid violation type")
			return
		}
		err = ctrl.AddViolation(model.ViolationType(msg.Type), msg.Message)

	case ws.ActionSubmit:
		// The completed event carries the result.
		_, err = ctrl.Submit(msg.Answers)

	default:
		log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		h.reject(client, response.ErrInvalidPayload, "unknown action: "+string(msg.Action))
		return
	}

	if err != nil {
		_, code := errorCode(err)
		h.reject(client, code, response.GetMessage(code))
		return
	}
	_ = client.enqueue(ws.AckResponse{Event: ws.EventAck, Action: msg.Action})
}

func (h *WSHandler) reject(client *wsClient, code response.ErrCode, msg string) {
	_ = client.enqueue(ws.ErrorResponse{Event: ws.EventError, Code: string(code), Error: msg})
}
