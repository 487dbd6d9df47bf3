package handlers

import (
	"log"
	"net/http"
	"strings"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/database"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/models"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/search"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/staging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PropertyHandler は物件とルームのAPIハンドラー
type PropertyHandler struct {
	db     *database.GormDB
	search *search.SearchClient
}

func NewPropertyHandler(db *database.GormDB, searchClient *search.SearchClient) *PropertyHandler {
	return &PropertyHandler{
		db:     db,
		search: searchClient,
	}
}

type createPropertyRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type createRoomRequest struct {
	Name     string `json:"name"`
	RoomType string `json:"room_type"`
}

// ListProperties は物件一覧を返す
// GET /api/v1/properties
func (h *PropertyHandler) ListProperties(c *gin.Context) {
	properties, err := h.db.GetProperties()
	if err != nil {
		log.Printf("PropertyHandler: failed to list properties: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, properties)
}

// CreateProperty は物件を新規作成する
// POST /api/v1/properties
func (h *PropertyHandler) CreateProperty(c *gin.Context) {
	var req createPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(c, &staging.ValidationError{Field: "name", Reason: "name must not be empty"})
		return
	}

	property := &models.Property{
		ID:      uuid.NewString(),
		Name:    strings.TrimSpace(req.Name),
		Address: strings.TrimSpace(req.Address),
	}
	if err := h.db.CreateProperty(property); err != nil {
		log.Printf("PropertyHandler: failed to create property: %v", err)
		respondError(c, err)
		return
	}

	if h.search != nil {
		if err := h.search.IndexProperty(property); err != nil {
			log.Printf("PropertyHandler: failed to index property %s: %v", property.ID, err)
		}
	}

	log.Printf("PropertyHandler: created property %s (%s)", property.ID, property.Name)
	c.JSON(http.StatusCreated, property)
}

// reindexProperty は検索インデックス上の物件ドキュメントを最新化する
func (h *PropertyHandler) reindexProperty(propertyID string) {
	if h.search == nil {
		return
	}
	property, err := h.db.GetPropertyByID(propertyID)
	if err != nil {
		log.Printf("PropertyHandler: failed to reload property %s for indexing: %v", propertyID, err)
		return
	}
	if err := h.search.IndexProperty(property); err != nil {
		log.Printf("PropertyHandler: failed to index property %s: %v", propertyID, err)
	}
}

// GetProperty は物件詳細(ルームと画像込み)を返す
// GET /api/v1/properties/:id
func (h *PropertyHandler) GetProperty(c *gin.Context) {
	property, err := h.db.GetPropertyByID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, property)
}

// CreateRoom は物件にルームを追加する
// POST /api/v1/properties/:id/rooms
func (h *PropertyHandler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		respondError(c, &staging.ValidationError{Field: "name", Reason: "name must not be empty"})
		return
	}
	if strings.TrimSpace(req.RoomType) == "" {
		respondError(c, &staging.ValidationError{Field: "room_type", Reason: "room_type must not be empty"})
		return
	}

	room := &models.Room{
		ID:       uuid.NewString(),
		Name:     strings.TrimSpace(req.Name),
		RoomType: strings.TrimSpace(req.RoomType),
	}
	if err := h.db.CreateRoom(c.Param("id"), room); err != nil {
		log.Printf("PropertyHandler: failed to create room: %v", err)
		respondError(c, err)
		return
	}

	h.reindexProperty(c.Param("id"))

	log.Printf("PropertyHandler: created room %s in property %s", room.ID, room.PropertyID)
	c.JSON(http.StatusCreated, room)
}

// GetRoom はルーム詳細(画像込み)を返す
// GET /api/v1/rooms/:id
func (h *PropertyHandler) GetRoom(c *gin.Context) {
	room, err := h.db.GetRoomByID(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// DeleteRoom は空のルームを削除する。画像が残っている場合は409を返す
// DELETE /api/v1/rooms/:id
func (h *PropertyHandler) DeleteRoom(c *gin.Context) {
	roomID := c.Param("id")
	room, err := h.db.GetRoomByID(roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.db.DeleteRoom(roomID); err != nil {
		respondError(c, err)
		return
	}
	h.reindexProperty(room.PropertyID)

	log.Printf("PropertyHandler: deleted room %s", roomID)
	c.JSON(http.StatusOK, gin.H{"message": "room deleted"})
}

// SearchProperties は物件を全文検索する
// GET /api/v1/search?q=...
func (h *PropertyHandler) SearchProperties(c *gin.Context) {
	if h.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search is not configured"})
		return
	}
	query := c.Query("q")
	results, err := h.search.Search(query, 50)
	if err != nil {
		log.Printf("PropertyHandler: search failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "results": results})
}
