package tracker

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type query struct {
	InfoHashes []string
	Params     map[string]string
}

// queryStringParser transforms a raw url query into a query struct.
// The standard library parser cannot be used here since the info_hash value
// is raw binary that is not always valid UTF-8 once unescaped.
// Taken from Chihaya.
func queryStringParser(qStr string) (*query, error) {
	var (
		keyStart, keyEnd int
		valStart, valEnd int
		firstInfoHash    string

		onKey       = true
		hasInfoHash = false

		q = &query{
			InfoHashes: nil,
			Params:     make(map[string]string),
		}
	)

	for i, length := 0, len(qStr); i < length; i++ {
		separator := qStr[i] == '&' || qStr[i] == ';' || qStr[i] == '?'
		if separator || i == length-1 {
			if onKey {
				keyStart = i + 1
				continue
			}
			if i == length-1 && !separator {
				if qStr[i] == '=' {
					continue
				}
				valEnd = i
			}
			keyStr, err := url.QueryUnescape(qStr[keyStart : keyEnd+1])
			if err != nil {
				return nil, err
			}
			valStr, err := url.QueryUnescape(qStr[valStart : valEnd+1])
			if err != nil {
				return nil, err
			}
			q.Params[strings.ToLower(keyStr)] = valStr

			if keyStr == "info_hash" {
				if hasInfoHash {
					// Multiple info hashes
					if q.InfoHashes == nil {
						q.InfoHashes = []string{firstInfoHash}
					}
					q.InfoHashes = append(q.InfoHashes, valStr)
				} else {
					firstInfoHash = valStr
					hasInfoHash = true
				}
			}
			onKey = true
			keyStart = i + 1
		} else if qStr[i] == '=' {
			onKey = false
			valStart = i + 1
		} else if onKey {
			keyEnd = i
		} else {
			valEnd = i
		}
	}

	return q, nil
}

// Uint64 is a helper to obtain a uint of any length from a query. After being
// called, you can safely cast the uint64 to your desired length.
func (q *query) Uint64(key string) (uint64, error) {
	str, exists := q.Params[key]
	if !exists {
		return 0, errors.New("value does not exist for key: " + key)
	}
	return strconv.ParseUint(str, 10, 64)
}
