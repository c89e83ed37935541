package httpserver

import (
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/charades/internal/domain"
	apperrors "github.com/pscheid92/charades/internal/platform/errors"
)

const maxRoomIDLength = 20

// handleWebSocket admits the caller into a room and hands the upgraded socket to the
// coordinator. Admission is released when the client terminates.
func (s *Server) handleWebSocket(c echo.Context) error {
	ctx := c.Request().Context()
	roomID := c.Param("room_id")
	if roomID == "" || len(roomID) > maxRoomIDLength {
		return apperrors.ValidationError("invalid room id")
	}

	userID, ok := s.sessionUserID(c)
	if !ok {
		s.countRejected("unauthenticated")
		return apperrors.UnauthorizedError("no user session")
	}

	if _, err := s.rooms.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return apperrors.NotFoundError("room not found").WithContext("room_id", roomID)
		}
		return apperrors.InternalError("failed to load room", err).WithContext("room_id", roomID)
	}

	// Only durable members are announced and cached, so nobody else may hold a socket.
	member, err := s.rooms.IsMember(ctx, roomID, userID)
	if err != nil {
		return apperrors.InternalError("failed to check room membership", err).WithContext("room_id", roomID)
	}
	if !member {
		s.countRejected("not_member")
		return apperrors.ForbiddenError("not a member of this room").WithContext("room_id", roomID).WithContext("user_id", userID)
	}

	ip := c.RealIP()
	admitted, reason := s.limits.Acquire(ip)
	if !admitted {
		s.countRejected(string(reason))
		if reason == LimitReasonGlobal {
			return apperrors.UnavailableError("server at connection capacity", nil)
		}
		return apperrors.RateLimitedError("too many connections").WithContext("reason", string(reason))
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the error response
		s.limits.Release(ip)
		s.countRejected("upgrade_failed")
		slog.InfoContext(ctx, "WebSocket upgrade failed", "room_id", roomID, "user_id", userID, "error", err)
		return nil
	}

	client := s.attacher.Attach(conn, userID, roomID)
	go func() {
		<-client.Done()
		s.limits.Release(ip)
	}()
	return nil
}

func (s *Server) countRejected(reason string) {
	if s.wsMetrics != nil {
		s.wsMetrics.ConnectionsRejected.WithLabelValues(reason).Inc()
	}
}
