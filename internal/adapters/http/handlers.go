package http

import (
	"net/http"

	"github.com/dkeye/babel/internal/app"
	"github.com/dkeye/babel/internal/app/orch"
	"github.com/dkeye/babel/internal/domain"
	"github.com/dkeye/babel/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type handlers struct {
	orch *orch.Orchestrator
}

type RoomsResponse struct {
	Rooms []domain.RoomInfo `json:"rooms"`
}

type MembersResponse struct {
	Room    domain.RoomID       `json:"room"`
	Members []protocol.UserInfo `json:"members"`
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, RoomsResponse{Rooms: h.orch.Registry.List()})
}

func (h *handlers) roomMembers(c *gin.Context) {
	id, err := domain.NewRoomID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	members := h.orch.Registry.Members(id, "")
	if len(members) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": app.ErrRoomNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, MembersResponse{
		Room: id,
		Members: lo.Map(members, func(p app.Peer, _ int) protocol.UserInfo {
			return protocol.UserInfo{ID: p.ID, Name: p.Name, Status: p.Status}
		}),
	})
}

func (h *handlers) stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Stats.Snapshot())
}
