package tracker

import (
	"bytes"
	"net/http"
	"time"

	"github.com/chihaya/bencode"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	ginlogrus "github.com/toorop/gin-logrus"
)

// Denial reasons sent to peer clients. These are part of the protocol
// surface: torrent clients display them verbatim to the user.
const (
	msgNotRegistered   = "not registered"
	msgUnverifiedEmail = "email must be verified"
	msgBannedUser      = "account is banned"
	msgUnknownTorrent  = "cannot announce a torrent that has not been uploaded"
	msgMalformed       = "malformed announce request"
	msgInternalError   = "tracker internal error"
)

// responseError generates a bencoded error response for the torrent client to
// parse and display to the user
func responseError(message string) []byte {
	var buf bytes.Buffer
	if err := bencode.NewEncoder(&buf).Encode(bencode.Dict{
		"failure reason": message,
	}); err != nil {
		log.Errorf("Failed to encode error response: %s", err)
	}
	return buf.Bytes()
}

// responseDenied is like responseError but includes empty ipv4/ipv6 peer
// lists, sent when a policy gate turns a leech request away
func responseDenied(message string) []byte {
	var buf bytes.Buffer
	if err := bencode.NewEncoder(&buf).Encode(bencode.Dict{
		"failure reason": message,
		"peers":          bencode.List{},
		"peers6":         bencode.List{},
	}); err != nil {
		log.Errorf("Failed to encode denial response: %s", err)
	}
	return buf.Bytes()
}

// oops writes a bencoded failure to the torrent client. Policy failures are
// http 200 on purpose, clients only parse the body when the request itself
// succeeded at the http layer.
func oops(c *gin.Context, message string) {
	c.Data(http.StatusOK, gin.MIMEPlain, responseError(message))
	c.Abort()
}

// denied writes a policy gate denial with empty peer lists
func denied(c *gin.Context, message string) {
	c.Data(http.StatusOK, gin.MIMEPlain, responseDenied(message))
	c.Abort()
}

// fiveHundred surfaces an upstream or storage failure. These are the only
// non-bencoded-200 responses the gateway produces; peer clients retry on
// their own schedule.
func fiveHundred(c *gin.Context, message string) {
	c.Data(http.StatusBadGateway, gin.MIMEPlain, responseError(message))
	c.Abort()
}

// newRouter creates and returns a newly configured router instance using
// the default middleware handlers.
func newRouter() *gin.Engine {
	router := gin.New()
	router.Use(ginlogrus.Logger(log.StandardLogger()), gin.Recovery())
	return router
}

func noRoute(c *gin.Context) {
	c.Data(http.StatusNotFound, gin.MIMEPlain, []byte("nope"))
}

// NewBitTorrentHandler configures a router to handle the public announce and
// scrape routes. The uid path segment identifies the announcing user and is
// stripped before anything is forwarded upstream.
func NewBitTorrentHandler(tkr *Tracker) *gin.Engine {
	r := newRouter()
	h := BitTorrentHandler{
		tracker: tkr,
	}
	r.GET("/sq/:uid/announce", h.announce)
	r.GET("/sq/:uid/scrape", h.scrape)
	r.NoRoute(noRoute)
	return r
}

// NewAPIHandler configures a router to handle internal API requests made by
// the site web application
func NewAPIHandler(tkr *Tracker) *gin.Engine {
	r := newRouter()
	h := AdminAPI{
		t: tkr,
	}
	r.POST("/ping", h.ping)
	r.POST("/user", h.userAdd)
	r.DELETE("/user/:uid", h.userDelete)
	r.POST("/torrent", h.torrentAdd)
	r.PATCH("/torrent/:info_hash", h.torrentUpdate)
	r.DELETE("/torrent/:info_hash", h.torrentDelete)
	r.NoRoute(noRoute)
	return r
}

// BitTorrentHandler is the public facing tracker request handler
type BitTorrentHandler struct {
	tracker *Tracker
}

// HTTPOpts is used to configure a http.Server instance
type HTTPOpts struct {
	ListenAddr     string
	Handler        http.Handler
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxHeaderBytes int
}

// DefaultHTTPOpts returns a default set of options for http.Server instances
func DefaultHTTPOpts() *HTTPOpts {
	return &HTTPOpts{
		ListenAddr:     ":34000",
		Handler:        nil,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
}

// NewHTTPServer will configure and return a *http.Server suitable for serving
// requests. This should be used over the default ListenAndServe options as
// they do not set certain parameters, notably timeouts, which can negatively
// effect performance.
func NewHTTPServer(opts *HTTPOpts) *http.Server {
	return &http.Server{
		Addr:           opts.ListenAddr,
		Handler:        opts.Handler,
		ReadTimeout:    opts.ReadTimeout,
		WriteTimeout:   opts.WriteTimeout,
		MaxHeaderBytes: opts.MaxHeaderBytes,
	}
}
