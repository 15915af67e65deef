package database

import (
	"net/url"
	"strings"
)

// ConstructDatabaseURL combines a server URL with a database name.
// The name replaces any path already on the URL, and sslmode=disable is added unless set.
// Unparseable URLs are returned unchanged.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return baseURL
	}

	u.Path = "/" + databaseName
	query := u.Query()
	if query.Get("sslmode") == "" {
		query.Set("sslmode", "disable")
	}
	u.RawQuery = query.Encode()

	return u.String()
}
