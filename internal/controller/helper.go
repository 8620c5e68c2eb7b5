package controller

import (
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Identity arrives via proxy-set headers; the gateway in front of this
// service authenticates and strips anything client-supplied.
const headerPrefix = "Vr-"

func (c controller) mustHeader(r *http.Request, key string) (string, error) {
	value := r.Header.Get(headerPrefix + key)
	if value == "" {
		return "", fmt.Errorf("%s was not provided", key)
	}

	return value, nil
}

func (c controller) getUserID(r *http.Request) (string, error) {
	return c.mustHeader(r, "User-Id")
}

func (c controller) generateTimeBasedID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36)
}
