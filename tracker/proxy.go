package tracker

import (
	"bytes"
	"io/ioutil"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chihaya/bencode"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// newClient returns a http.Client with reasonable default configuration
// values, notably actual timeout values. The upstream engine is expected on
// the local network so these are deliberately tight.
func newClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Dial: (&net.Dialer{
				Timeout: time.Second * 5,
			}).Dial,
			TLSHandshakeTimeout: time.Second * 5,
		},
		Timeout: time.Second * 5,
	}
}

// clientIP returns the true originating peer address. The first
// X-Forwarded-For entry wins, then the socket remote address. The ip query
// parameter the client supplied is never trusted, peers behind the reverse
// proxy must not be able to pick their tracker-visible address.
func clientIP(c *gin.Context) string {
	forwarded := c.Request.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}

// upstreamQuery rebuilds the announce query for the upstream engine,
// overriding the ip parameter with the address we derived ourselves
func upstreamQuery(q *query, realIP string) string {
	vals := url.Values{}
	for k, v := range q.Params {
		vals.Set(k, v)
	}
	if len(q.InfoHashes) > 1 {
		// Scrape requests may carry several info hashes; the params map
		// only retains the last one
		vals.Del("info_hash")
		for _, ih := range q.InfoHashes {
			vals.Add("info_hash", ih)
		}
	}
	if realIP != "" {
		vals.Set("ip", realIP)
	}
	return vals.Encode()
}

func (t *Tracker) upstreamURL(path string, rawQuery string) string {
	return strings.TrimRight(t.upstream.String(), "/") + path + "?" + rawQuery
}

// forwardAnnounce proxies an allowed announce to the upstream tracker engine
// and rewrites the response before handing it back to the peer. The
// interval keys are forced down so peers report in often enough for the
// accounting to stay current.
func (t *Tracker) forwardAnnounce(c *gin.Context, ann *announceRequest) {
	u := t.upstreamURL("/announce", upstreamQuery(ann.raw, clientIP(c)))
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, u, nil)
	if err != nil {
		log.Errorf("Failed to build upstream announce request: %s", err)
		fiveHundred(c, msgInternalError)
		return
	}
	resp, err := t.client.Do(req)
	if err != nil {
		log.Errorf("Upstream announce failed: %s", err)
		fiveHundred(c, "upstream tracker unreachable")
		return
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warnf("Failed to close upstream response body: %s", err.Error())
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Errorf("Upstream announce returned status %d", resp.StatusCode)
		fiveHundred(c, "upstream tracker error")
		return
	}
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		log.Errorf("Failed to read upstream announce response: %s", err)
		fiveHundred(c, "upstream tracker error")
		return
	}
	decoded, err := bencode.NewDecoder(bytes.NewReader(body)).Decode()
	if err != nil {
		log.Errorf("Failed to decode upstream announce response: %s", err)
		fiveHundred(c, "upstream tracker returned malformed response")
		return
	}
	dict, ok := decoded.(bencode.Dict)
	if !ok {
		log.Errorf("Upstream announce response was not a dict")
		fiveHundred(c, "upstream tracker returned malformed response")
		return
	}
	dict["interval"] = t.annInterval
	dict["min interval"] = t.annInterval

	var buf bytes.Buffer
	if err := bencode.NewEncoder(&buf).Encode(dict); err != nil {
		log.Errorf("Failed to re-encode upstream announce response: %s", err)
		fiveHundred(c, msgInternalError)
		return
	}
	c.Data(http.StatusOK, gin.MIMEPlain, buf.Bytes())
}

// scrape is the handler for the /sq/:uid/scrape endpoint. Scrapes carry no
// progress to account for, the uid segment is stripped and the upstream
// response passes through unmodified.
func (h *BitTorrentHandler) scrape(c *gin.Context) {
	q, err := queryStringParser(c.Request.URL.RawQuery)
	if err != nil {
		log.Debugf("Failed to parse scrape from %s: %s", c.Request.RemoteAddr, err)
		oops(c, msgMalformed)
		return
	}
	u := h.tracker.upstreamURL("/scrape", upstreamQuery(q, ""))
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, u, nil)
	if err != nil {
		log.Errorf("Failed to build upstream scrape request: %s", err)
		fiveHundred(c, msgInternalError)
		return
	}
	resp, err := h.tracker.client.Do(req)
	if err != nil {
		log.Errorf("Upstream scrape failed: %s", err)
		fiveHundred(c, "upstream tracker unreachable")
		return
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warnf("Failed to close upstream response body: %s", err.Error())
		}
	}()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		log.Errorf("Failed to read upstream scrape response: %s", err)
		fiveHundred(c, "upstream tracker error")
		return
	}
	c.Data(resp.StatusCode, gin.MIMEPlain, body)
}
