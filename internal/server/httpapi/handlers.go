package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/telegraph-app/telegraph/internal/common"
)

// statusFromError maps service errors onto HTTP status codes. Every error in
// the taxonomy has exactly one code; anything unrecognized is a 500.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, common.ErrorInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorInvalidRecipient):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrorNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrVersionConflict), errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrRefreshTokenExpired):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) abortWithError(c *gin.Context, err error) {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err.Error())
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) getHealth(c *gin.Context) {
	status := "starting"
	if s.ready.Load() {
		status = "ready"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

type registerRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phone_number"`
}

func (s *Server) postRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	user, err := s.users.Register(c.Request.Context(), req.Username, req.Password, req.PhoneNumber)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	s.logger.Info(c.Request.Context(), "registered", "username", user.UserName)
	c.JSON(http.StatusCreated, gin.H{"username": user.UserName})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) postLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	pair, err := s.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) postTokenRefresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	pair, err := s.users.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

type createImageRequest struct {
	Image    []byte `json:"image"`
	EditTime int    `json:"edit_time"`
	Hops     int    `json:"hops"`
	NextUser string `json:"next_user"`
}

func (s *Server) postImage(c *gin.Context) {
	var req createImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	id, err := s.relay.CreateImage(c.Request.Context(), callerName(c), req.Image, req.EditTime, req.Hops, req.NextUser)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"image_id": id})
}

type passImageRequest struct {
	Image    []byte `json:"image"`
	NextUser string `json:"next_user"`
}

func (s *Server) postImagePass(c *gin.Context) {
	var req passImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	hopsLeft, err := s.relay.AdvanceImage(c.Request.Context(), callerName(c), c.Param("id"), req.Image, req.NextUser)
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"hops_left": hopsLeft})
}

type imageSummaryResponse struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	HopsLeft  int       `json:"hops_left"`
	EditTime  int       `json:"edit_time"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) getImages(c *gin.Context) {
	summaries, err := s.relay.QueryActionable(c.Request.Context(), callerName(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	resp := make([]imageSummaryResponse, 0, len(summaries))
	for _, item := range summaries {
		resp = append(resp, imageSummaryResponse{
			ID:        item.ID,
			Owner:     item.Owner,
			HopsLeft:  item.HopsLeft,
			EditTime:  item.EditTime,
			Status:    item.Status,
			CreatedAt: item.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"images": resp})
}

func (s *Server) getImage(c *gin.Context) {
	payload, err := s.relay.FetchPayload(c.Request.Context(), callerName(c), c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"image": payload})
}

func (s *Server) getImageURL(c *gin.Context) {
	if s.archive == nil || !s.archive.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": "archive disabled"})
		return
	}

	url, err := s.archive.PresignedGetURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (s *Server) postImageSeen(c *gin.Context) {
	if err := s.visibility.Acknowledge(c.Request.Context(), c.Param("id"), callerName(c)); err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

type addFriendRequest struct {
	Friend string `json:"friend"`
}

func (s *Server) postFriend(c *gin.Context) {
	var req addFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	if err := s.friends.Add(c.Request.Context(), callerName(c), req.Friend); err != nil {
		s.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{})
}

func (s *Server) getFriends(c *gin.Context) {
	list, err := s.friends.List(c.Request.Context(), callerName(c))
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if list == nil {
		list = []string{}
	}

	c.JSON(http.StatusOK, gin.H{"friends": list})
}
