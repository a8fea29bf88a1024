package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/ulugbekw/imtihon/internal/dto"
	"github.com/ulugbekw/imtihon/internal/repository"
	"github.com/ulugbekw/imtihon/internal/service"
	"github.com/ulugbekw/imtihon/internal/ws"
)

// WSController is the push-channel side of the session gateway: one
// bidirectional websocket per test carrying join/leave from participants
// and participant_joined/participant_left/test_force_end to everyone.
type WSController struct {
	hub        *ws.Hub
	presence   service.PresenceTracker
	scheduler  service.DeadlineScheduler
	authorizer service.Authorizer
	testRepo   repository.TestRepository
	userRepo   repository.UserRepository
}

func NewWSController(
	hub *ws.Hub,
	presence service.PresenceTracker,
	scheduler service.DeadlineScheduler,
	authorizer service.Authorizer,
	testRepo repository.TestRepository,
	userRepo repository.UserRepository,
) *WSController {
	return &WSController{
		hub:        hub,
		presence:   presence,
		scheduler:  scheduler,
		authorizer: authorizer,
		testRepo:   testRepo,
		userRepo:   userRepo,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type clientMessage struct {
	Type string `json:"type"` // join, leave, heartbeat
}

// HandleTestSocket godoc
// @Summary WebSocket channel for a test
// @Description Participants send {"type":"join"} and {"type":"leave"}; observers receive a presence snapshot on attach. All parties receive participant_joined, participant_left and test_force_end events.
// @Tags WebSocket
// @Param test_id path int true "Test ID"
// @Param user_id query int true "Authenticated user id"
// @Router /ws/tests/{test_id} [get]
func (h *WSController) HandleTestSocket(c *gin.Context) {
	testID64, err := strconv.ParseUint(c.Param("test_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid test id"})
		return
	}
	userID64, err := strconv.ParseUint(c.Query("user_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid user id"})
		return
	}
	testID, userID := uint(testID64), uint(userID64)

	canObserve, obsErr := h.authorizer.CanObserve(userID, testID)
	canSubmit, subErr := h.authorizer.CanSubmit(userID, testID)
	if obsErr != nil || subErr != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Test or user not found"})
		return
	}
	if !canObserve && !canSubmit {
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Message: "You have no access to this test"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws: upgrade failed")
		return
	}

	h.hub.AddConnection(testID, conn)
	joined := false
	defer func() {
		h.hub.RemoveConnection(testID, conn)
		// Disconnect implies leave; leaving twice is a no-op.
		if joined {
			h.presence.Leave(testID, userID)
		}
	}()

	// Any access to a live test guarantees its deadline is armed.
	if test, err := h.testRepo.FindByID(testID); err == nil {
		h.scheduler.EnsureArmed(service.TimedTest{
			ID:        test.ID,
			StartAt:   test.StartAt,
			EndAt:     test.EndAt,
			ClosedOut: test.ClosedOutAt != nil,
		})
	}

	// Observers attaching mid-session get the current membership so no
	// prior join is missed.
	if canObserve {
		h.hub.Send(conn, ws.Message{Type: ws.EventPresenceSnapshot, Data: h.presence.Snapshot(testID)})
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			// Expected on disconnect; never escalated.
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Warn().Err(err).Uint("testID", testID).Msg("ws: unreadable client message, ignored")
			continue
		}

		switch msg.Type {
		case "join":
			if !canSubmit {
				continue
			}
			displayName := ""
			if user, err := h.userRepo.FindByID(userID); err == nil {
				displayName = user.Name
			}
			if err := h.presence.Join(testID, userID, displayName); err != nil {
				h.hub.Send(conn, ws.Message{Type: "error", Data: dto.ErrorResponse{Message: err.Error()}})
				continue
			}
			joined = true
		case "leave":
			h.presence.Leave(testID, userID)
			joined = false
		case "heartbeat":
			// Keepalive only.
		default:
			log.Warn().Str("type", msg.Type).Uint("testID", testID).Msg("ws: unknown client message type")
		}
	}
}
