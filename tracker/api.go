package tracker

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tdjsnelling/sqtracker-sub000/consts"
	"github.com/tdjsnelling/sqtracker-sub000/store"
)

// AdminAPI handles the internal REST api for the site web application to
// manage the user and torrent sets the gateway enforces against
type AdminAPI struct {
	t *Tracker
}

// StatusResp is the generic response for API mutations
type StatusResp struct {
	Err     string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func errResponse(c *gin.Context, code int, msg string) {
	c.JSON(code, StatusResp{Err: msg})
}

// PingRequest represents a JSON ping request
type PingRequest struct {
	Ping string `json:"ping"`
}

// PingResponse represents a JSON ping response
type PingResponse struct {
	Pong string `json:"pong"`
}

// ping will echo back the value provided in the ping field
func (a *AdminAPI) ping(c *gin.Context) {
	var req PingRequest
	if err := c.BindJSON(&req); err != nil {
		errResponse(c, http.StatusBadRequest, "Malformed request")
		return
	}
	c.JSON(http.StatusOK, PingResponse{Pong: req.Ping})
}

// UserAddRequest is the JSON payload to register a new user with the gateway
type UserAddRequest struct {
	UserID        uint32 `json:"user_id"`
	UID           string `json:"uid"`
	EmailVerified bool   `json:"email_verified"`
	IsBanned      bool   `json:"is_banned"`
}

func (a *AdminAPI) userAdd(c *gin.Context) {
	var req UserAddRequest
	if err := c.BindJSON(&req); err != nil {
		errResponse(c, http.StatusBadRequest, "Malformed request")
		return
	}
	user := store.User{
		UserID:        req.UserID,
		UID:           req.UID,
		EmailVerified: req.EmailVerified,
		IsBanned:      req.IsBanned,
	}
	if !user.Valid() {
		errResponse(c, http.StatusBadRequest, "Invalid user")
		return
	}
	if err := a.t.store.UserAdd(user); err != nil {
		if errors.Cause(err) == consts.ErrDuplicate {
			errResponse(c, http.StatusConflict, "User already exists")
			return
		}
		log.Errorf("Failed to add user: %s", err)
		errResponse(c, http.StatusInternalServerError, "Failed to add user")
		return
	}
	c.JSON(http.StatusCreated, StatusResp{Message: "User added"})
}

func (a *AdminAPI) userDelete(c *gin.Context) {
	uid := c.Param("uid")
	var user store.User
	if err := a.t.store.UserGetByUID(&user, uid); err != nil {
		errResponse(c, http.StatusNotFound, "Unknown user")
		return
	}
	if err := a.t.store.UserDelete(user); err != nil {
		log.Errorf("Failed to delete user: %s", err)
		errResponse(c, http.StatusInternalServerError, "Failed to delete user")
		return
	}
	// A cached entry must not outlive the row or the deleted user could
	// keep announcing until the TTL expires
	a.t.cache.Invalidate(uid)
	c.JSON(http.StatusOK, StatusResp{Message: "User deleted"})
}

// TorrentAddRequest is the JSON payload to register a torrent, the info hash
// in its 40 character hex form
type TorrentAddRequest struct {
	InfoHash    string `json:"info_hash"`
	IsFreeleech bool   `json:"is_freeleech"`
}

func (a *AdminAPI) torrentAdd(c *gin.Context) {
	var req TorrentAddRequest
	if err := c.BindJSON(&req); err != nil {
		errResponse(c, http.StatusBadRequest, "Malformed request")
		return
	}
	var ih store.InfoHash
	if err := store.InfoHashFromHex(&ih, req.InfoHash); err != nil {
		errResponse(c, http.StatusBadRequest, "Invalid info_hash")
		return
	}
	t := store.NewTorrent(ih)
	t.IsFreeleech = req.IsFreeleech
	if err := a.t.store.TorrentAdd(t); err != nil {
		if errors.Cause(err) == consts.ErrDuplicate {
			errResponse(c, http.StatusConflict, "Torrent already exists")
			return
		}
		log.Errorf("Failed to add torrent: %s", err)
		errResponse(c, http.StatusInternalServerError, "Failed to add torrent")
		return
	}
	c.JSON(http.StatusCreated, StatusResp{Message: "Torrent added"})
}

// TorrentUpdateRequest is the JSON payload for mutating torrent flags
type TorrentUpdateRequest struct {
	IsFreeleech bool `json:"is_freeleech"`
}

func (a *AdminAPI) torrentUpdate(c *gin.Context) {
	var ih store.InfoHash
	if err := store.InfoHashFromHex(&ih, c.Param("info_hash")); err != nil {
		errResponse(c, http.StatusBadRequest, "Invalid info_hash")
		return
	}
	var req TorrentUpdateRequest
	if err := c.BindJSON(&req); err != nil {
		errResponse(c, http.StatusBadRequest, "Malformed request")
		return
	}
	var t store.Torrent
	if err := a.t.store.TorrentGet(&t, ih, false); err != nil {
		errResponse(c, http.StatusNotFound, "Unknown torrent")
		return
	}
	t.IsFreeleech = req.IsFreeleech
	if err := a.t.store.TorrentUpdate(t); err != nil {
		log.Errorf("Failed to update torrent: %s", err)
		errResponse(c, http.StatusInternalServerError, "Failed to update torrent")
		return
	}
	c.JSON(http.StatusOK, StatusResp{Message: "Torrent updated"})
}

func (a *AdminAPI) torrentDelete(c *gin.Context) {
	var ih store.InfoHash
	if err := store.InfoHashFromHex(&ih, c.Param("info_hash")); err != nil {
		errResponse(c, http.StatusBadRequest, "Invalid info_hash")
		return
	}
	dropRow := c.Query("drop") == "true"
	if err := a.t.store.TorrentDelete(ih, dropRow); err != nil {
		log.Errorf("Failed to delete torrent: %s", err)
		errResponse(c, http.StatusInternalServerError, "Failed to delete torrent")
		return
	}
	c.JSON(http.StatusOK, StatusResp{Message: "Torrent deleted"})
}
