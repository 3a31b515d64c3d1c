package internal

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const defaultInspectLimit = 200

type InspectRow struct {
	Key       string `json:"key"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	EntityID  string `json:"entityId"`
	Detail    string `json:"detail"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

type RowMapper func(key string, val []byte) InspectRow

type inspectPage struct {
	Prefix string       `json:"prefix"`
	Items  []InspectRow `json:"items"`
}

// InspectHandler lists raw Badger entries under ?prefix= (default "job:").
// Mounted only when the process runs at debug level.
func InspectHandler(db *badger.DB, mapper RowMapper) http.HandlerFunc {
	if mapper == nil {
		mapper = DefaultMapper
	}
	return func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "job:"
		}
		limit := defaultInspectLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}

		page := inspectPage{Prefix: prefix, Items: []InspectRow{}}
		err := db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)) && len(page.Items) < limit; it.Next() {
				item := it.Item()
				err := item.Value(func(val []byte) error {
					row := mapper(string(item.Key()), val)
					if exp := item.ExpiresAt(); exp > 0 {
						row.ExpiresAt = time.Unix(int64(exp), 0).UTC().Format(time.RFC3339)
					}
					page.Items = append(page.Items, row)
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(page)
	}
}

// DefaultMapper splits "namespace:...:id" keys; a "seconds.nanos" second-to-last
// segment is read as a unix timestamp, as in the due index.
func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Type:      parts[0],
		Timestamp: "-",
		EntityID:  parts[len(parts)-1],
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}
	if len(parts) >= 3 {
		if ts, ok := parseStamp(parts[len(parts)-2]); ok {
			row.Timestamp = ts.Format(time.RFC3339)
		}
	}
	return row
}

func parseStamp(s string) (time.Time, bool) {
	secPart, nanoPart, ok := strings.Cut(s, ".")
	if !ok {
		return time.Time{}, false
	}
	seconds, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	nanos, err := strconv.ParseInt(nanoPart, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(seconds, nanos).UTC(), true
}
